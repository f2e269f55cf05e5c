package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pacoapp/tesp/client"
	"github.com/pacoapp/tesp/event"
	"github.com/pacoapp/tesp/internal/meta"
	"github.com/pacoapp/tesp/serveraddr"
	"github.com/pacoapp/tesp/storage"
)

var (
	// The host to listen for http requests on
	listenHost string

	// The port to listen for http requests on
	httpPort string
)

func init() {
	flags := RelayCmd.Flags()

	flags.StringVar(&listenHost, "listen", "127.0.0.1", "The host to listen for HTTP requests on")
	flags.StringVar(&httpPort, "http-port", "", "The port to listen for HTTP requests on (default from config)")
}

var RelayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Accept events over HTTP and forward them over TESP",
	Long: `Accept events over HTTP and forward them over TESP

Events POSTed as JSON to /events are queued and uploaded to the TESP server
in the background. Prometheus metrics are served on /metrics.

Usage
	tesp relay --http-port 7365
`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, log, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		if httpPort == "" {
			httpPort = conf.HTTPPort
		}

		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		store := storage.NewInmemoryStore()
		defer store.Close()

		c := newClient(conf, log, client.WithMetrics(client.NewMetrics(registry)))
		defer c.Close()

		uploader := client.NewUploader(c, store, client.UploaderOptions{
			Rate:  conf.UploadRate,
			Burst: conf.UploadBurst,
			Log:   log.Named("uploader"),
		})

		router := setupRouter(conf.DebugHTTP, log)
		registerRoutes(router, store, registry, c.Addr(), conf.Host)

		s := &http.Server{
			Addr:    net.JoinHostPort(listenHost, httpPort),
			Handler: router,
		}

		// Initializing the server in a goroutine so that
		// it won't block the graceful shutdown handling below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
				signalStop()
			}
		}()

		uploadDone := make(chan struct{})
		go func() {
			defer close(uploadDone)
			uploader.Run(ctx)
		}()

		log.Info("Listening",
			zap.String("listen", listenHost),
			zap.String("httpPort", httpPort),
			zap.String("tesp", c.Addr()))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error("Http server forced to shutdown", zap.Error(err))
		}

		<-uploadDone

		if pending, err := store.Pending(shutdownCtx); err == nil && len(pending) > 0 {
			log.Warn("Exiting with events not uploaded", zap.Int("pending", len(pending)))
		}

		log.Info("Exiting")
		return nil
	},
}

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping", "/metrics"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}

func registerRoutes(r *gin.Engine, store storage.Store, gatherer prometheus.Gatherer, tespAddr, serverHost string) {
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	r.GET("/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"tesp":       tespAddr,
			"companion":  serveraddr.BuildURL(serverHost, "/events"),
			"connection": serveraddr.SelectConnectionKind(serverHost).String(),
			"build":      meta.GetInfo(),
		})
	})

	r.POST("/events", func(c *gin.Context) {
		ev := &event.Event{}
		if err := c.ShouldBindJSON(ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		key, err := store.Add(c.Request.Context(), ev)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"key": key})
	})

	r.GET("/events/pending", func(c *gin.Context) {
		pending, err := store.Pending(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"pending": len(pending), "total": store.Len()})
	})
}

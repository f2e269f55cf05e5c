package env_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/pacoapp/tesp/internal/env"
)

var _ = Describe("env / Config", func() {
	var (
		ctx context.Context
		dir string
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		dir, err = os.MkdirTemp("", "tesp-env")
		Expect(err).To(Succeed())

		for _, name := range []string{"TESP_HOST", "TESP_PORT", "TESP_CHUNK_TIMEOUT", "TESP_DEBUG"} {
			Expect(os.Unsetenv(name)).To(Succeed())
		}
	})

	AfterEach(func() {
		os.Unsetenv("TESP_HOST")
		os.Unsetenv("TESP_PORT")
		os.RemoveAll(dir)
	})

	writeFile := func(contents string) string {
		path := filepath.Join(dir, "tesp.toml")
		Expect(os.WriteFile(path, []byte(contents), 0o600)).To(Succeed())
		return path
	}

	It("falls back to defaults", func() {
		conf, err := env.LoadConfig(ctx, "")
		Expect(err).To(Succeed())
		Expect(conf.Host).To(Equal(env.DefaultHost))
		Expect(conf.Port).To(Equal(env.DefaultPort))
		Expect(conf.ConnectTimeout).To(Equal(5 * time.Second))
		Expect(conf.ChunkTimeout).To(Equal(5 * time.Second))
		Expect(conf.HTTPPort).To(Equal(env.DefaultHTTPPort))
	})

	It("reads the config file", func() {
		path := writeFile(`
host = "collector.example"
port = 9000
chunk_timeout = "250ms"
debug = true
`)

		conf, err := env.LoadConfig(ctx, path)
		Expect(err).To(Succeed())
		Expect(conf.Host).To(Equal("collector.example"))
		Expect(conf.Port).To(Equal(9000))
		Expect(conf.ChunkTimeout).To(Equal(250 * time.Millisecond))
		Expect(conf.ConnectTimeout).To(Equal(5 * time.Second))
		Expect(conf.Debug).To(BeTrue())
	})

	It("lets the environment override the file", func() {
		path := writeFile(`
host = "collector.example"
port = 9000
`)
		Expect(os.Setenv("TESP_PORT", "9100")).To(Succeed())

		conf, err := env.LoadConfig(ctx, path)
		Expect(err).To(Succeed())
		Expect(conf.Host).To(Equal("collector.example"))
		Expect(conf.Port).To(Equal(9100))
	})

	It("fails on a missing config file", func() {
		_, err := env.LoadConfig(ctx, filepath.Join(dir, "missing.toml"))
		Expect(err).To(HaveOccurred())
	})

	It("rejects invalid values", func() {
		Expect(os.Setenv("TESP_PORT", "70000")).To(Succeed())

		_, err := env.LoadConfig(ctx, "")
		Expect(err).To(MatchError(ContainSubstring("port 70000 out of range")))
	})

	Describe("Validate()", func() {
		It("requires positive timeouts", func() {
			conf := env.Config{Host: "h", Port: 1, ConnectTimeout: time.Second}
			Expect(conf.Validate()).To(MatchError(ContainSubstring("chunk timeout")))

			conf.ChunkTimeout = time.Second
			Expect(conf.Validate()).To(Succeed())
		})
	})
})

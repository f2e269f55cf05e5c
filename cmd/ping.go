package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pacoapp/tesp/protocol"
)

var PingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the TESP server answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, log, err := setup(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		c := newClient(conf, log)
		defer c.Close()

		start := time.Now()
		if err := c.Send(cmd.Context(), &protocol.Ping{}); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), conf.ConnectTimeout+conf.ChunkTimeout)
		defer cancel()

		resp, err := c.Receive(ctx)
		if err != nil {
			return err
		}

		if err := protocol.ErrorOrNil(resp); err != nil {
			return err
		}

		if _, ok := resp.(*protocol.Pong); !ok {
			log.Warn("Unexpected reply to PING", zap.Stringer("code", resp.Code()))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s from %s in %s\n", resp.Code(), c.Addr(), time.Since(start))
		return nil
	},
}

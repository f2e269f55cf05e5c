package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/pacoapp/tesp/client"
	"github.com/pacoapp/tesp/event"
	"github.com/pacoapp/tesp/storage"
)

var SendCmd = &cobra.Command{
	Use:   "send [file...]",
	Short: "Upload events read from JSON files",
	Long: `Upload events read from JSON files, or stdin when no file is given.

Each input holds one event object or an array of them.

Usage
	tesp send events.json
	cat event.json | tesp send
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer signalStop()

		conf, log, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		store := storage.NewInmemoryStore()
		defer store.Close()

		if len(args) == 0 {
			args = []string{"-"}
		}

		for _, name := range args {
			events, err := readEvents(name)
			if err != nil {
				return err
			}

			for _, ev := range events {
				if _, err := store.Add(ctx, ev); err != nil {
					return err
				}
			}
		}

		c := newClient(conf, log)
		defer c.Close()

		uploader := client.NewUploader(c, store, client.UploaderOptions{
			Rate:  conf.UploadRate,
			Burst: conf.UploadBurst,
			Log:   log.Named("uploader"),
		})

		sent, err := uploader.Flush(ctx)
		log.Info("Upload finished",
			zap.Int("sent", sent),
			zap.Int("total", store.Len()))

		return err
	},
}

func readEvents(name string) ([]*event.Event, error) {
	var (
		data []byte
		err  error
	)

	if name == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: not valid JSON", name)
	}

	var events []*event.Event

	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		ev := &event.Event{}
		if err := json.Unmarshal(data, ev); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return append(events, ev), nil
	}

	for i, item := range doc.Array() {
		ev := &event.Event{}
		if err := json.Unmarshal([]byte(item.Raw), ev); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		events = append(events, ev)
	}

	return events, nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/specs/internal/events"
	"github.com/alfredjeanlab/specs/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch [topic]",
	Short: "Stream change events from the server",
	Long: `Print change events published by the server as they happen. The topic
defaults to every specs event (specs.>); NATS wildcards are accepted.

Requires a NATS URL from --nats, SPECS_NATS_URL or the active remote.`,
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	// Events come straight from NATS, not through a client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = os.Getenv("SPECS_NATS_URL")
		}
		if natsURL == "" {
			natsURL = currentRemote().NATSURL
		}
		if natsURL == "" {
			return fmt.Errorf("no NATS URL configured (use --nats or SPECS_NATS_URL)")
		}
		topic := "specs.>"
		if len(args) == 1 {
			topic = args[0]
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return watchNATS(ctx, cmd.OutOrStdout(), natsURL, topic)
	},
}

// watchNATS prints every payload received on topic until ctx is done.
func watchNATS(ctx context.Context, w io.Writer, natsURL, topic string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			printEvent(w, msg)
		}
	}
}

// printEvent writes one event as "time topic payload", with the topic
// prefix trimmed and the payload compacted when it is valid JSON.
func printEvent(w io.Writer, msg events.Message) {
	ts := ui.RenderMuted(time.Now().Format("15:04:05"))
	topic := ui.RenderAccent(strings.TrimPrefix(msg.Topic, events.Prefix))
	var buf bytes.Buffer
	if err := json.Compact(&buf, msg.Data); err != nil {
		fmt.Fprintf(w, "%s %s %s\n", ts, topic, msg.Data)
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", ts, topic, buf.Bytes())
}

func init() {
	watchCmd.Flags().String("nats", "", "NATS server URL")
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"imgresize/internal/app"
	"imgresize/internal/event"
	"imgresize/internal/journal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newHandleCmd() *cobra.Command {
	var (
		bucket      string
		object      string
		contentType string
		eventFile   string
	)

	cmd := &cobra.Command{
		Use:   "handle",
		Short: "Handle a single upload event and exit",
		Example: `  imgresize handle --bucket media --object photos/cat.jpg --content-type image/jpeg
  imgresize handle --event notification.json
  cat notification.json | imgresize handle --event -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := readEvents(cmd.InOrStdin(), eventFile, event.UploadEvent{
				Bucket:      bucket,
				Key:         object,
				ContentType: contentType,
			})
			if err != nil {
				return err
			}
			if len(events) == 0 {
				_, log, err := setup(cmd)
				if err != nil {
					return err
				}
				defer log.Sync()
				log.Info("No object created events in payload, nothing to do", zap.String("event", eventFile))
				return nil
			}

			return runApp(cmd, func(ctx context.Context, a *app.App) error {
				for _, ev := range events {
					res, err := a.HandleOne(ctx, ev)
					if err != nil {
						return fmt.Errorf("failed to handle %s: %w", ev, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", ev, res.Outcome, res.Paths.ResizedKey)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket of the uploaded object")
	cmd.Flags().StringVar(&object, "object", "", "Key of the uploaded object")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type of the uploaded object")
	cmd.Flags().StringVar(&eventFile, "event", "", "Event payload file, or - for stdin")

	return cmd
}

// readEvents decodes the event payload when one is given, otherwise uses the
// flag event. A payload without object-created records yields no events.
func readEvents(stdin io.Reader, eventFile string, fromFlags event.UploadEvent) ([]event.UploadEvent, error) {
	if eventFile == "" {
		if err := fromFlags.Validate(); err != nil {
			return nil, fmt.Errorf("either --event or --bucket and --object are required: %w", err)
		}
		return []event.UploadEvent{fromFlags}, nil
	}

	var (
		data []byte
		err  error
	)
	if eventFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(eventFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %w", err)
	}

	events, err := event.Decode(data)
	if errors.Is(err, event.ErrNoEvents) {
		return nil, nil
	}
	return events, err
}

func newListenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Process bucket upload notifications until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Listen(ctx)
			})
		},
	}

	cmd.Flags().String("bucket", "", "Bucket to listen on (required)")
	cmd.Flags().String("prefix", "", "Only handle keys with this prefix")
	cmd.Flags().String("suffix", "", "Only handle keys with this suffix")
	cmd.Flags().Int("concurrency", 4, "Number of concurrent workers")
	cmd.Flags().Bool("show-progress", true, "Show a periodic status line on a terminal")

	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an HTTP webhook that handles upload notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Serve(ctx)
			})
		},
	}

	cmd.Flags().String("addr", ":8080", "Webhook listen address")

	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently handled events from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			if cfg.Journal == "" {
				return fmt.Errorf("no journal configured")
			}

			store, err := journal.NewSQLiteStore(cfg.Journal)
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			defer func() {
				if err := store.Close(); err != nil {
					log.Error("Error closing journal", zap.Error(err))
				}
			}()

			entries, err := store.List(limit)
			if err != nil {
				return fmt.Errorf("failed to list journal: %w", err)
			}

			return printEntries(cmd.OutOrStdout(), entries, asJSON)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")

	return cmd
}

func printEntries(w io.Writer, entries []*journal.Entry, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UPDATED\tSTATUS\tATTEMPTS\tOBJECT\tRESIZED\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s/%s\t%s\t%s\n",
			e.UpdatedAt.Format(time.RFC3339),
			e.Status,
			e.Attempts,
			e.Bucket, e.Key,
			e.ResizedKey,
			e.Detail,
		)
	}
	return tw.Flush()
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/uprename/internal/config"
	"github.com/vango-dev/uprename/internal/errors"
	"github.com/vango-dev/uprename/internal/server"
	"github.com/vango-dev/uprename/pkg/upload"
)

type processOptions struct {
	root         string
	trailerWidth int
	dryRun       bool
	json         bool
	verbose      bool
}

func processCmd() *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process BODY_FILE",
		Short: "Relocate the uploads described by a saved request body",
		Long: `Run one batch over a request body saved to a file.

Staged paths in the body are resolved below --root. With --dry-run
nothing is moved and the planned destinations are printed instead.

Examples:
  uprename process body.bin
  uprename process body.bin --dry-run
  uprename process body.bin --root=/srv/chroot --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.root, "root", "r", "/", "Directory staged paths are resolved against")
	cmd.Flags().IntVar(&opts.trailerWidth, "trailer-width", upload.DefaultTrailerWidth, "Bytes between the size value and the next record")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "Print destinations without moving anything")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the batch summary as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log every record to stderr")

	return cmd
}

func runProcess(ctx context.Context, out io.Writer, bodyFile string, opts processOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := os.ReadFile(bodyFile)
	if err != nil {
		return errors.New("E301").Wrap(err)
	}

	layout := upload.DefaultLayout.WithTrailerWidth(opts.trailerWidth)
	if err := layout.Validate(); err != nil {
		return errors.New("E105").
			WithSuggestion("Pass a positive --trailer-width").
			Wrap(err)
	}

	var relocator upload.Relocator = planRelocator{}
	if !opts.dryRun {
		relocator, err = server.NewRelocator(ctx, config.StorageConfig{
			Backend: config.BackendFS,
			Root:    opts.root,
		})
		if err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.verbose {
		logger = newLogger(os.Stderr, slog.LevelDebug, "text")
	}

	p := upload.NewProcessor(relocator,
		upload.WithLayout(layout),
		upload.WithLogger(logger),
	)
	batch := p.Process(ctx, body)

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		summary := upload.Summarize(batch)
		summary.DryRun = opts.dryRun
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		printBatch(out, batch, opts.dryRun)
	}

	if me := batch.Malformed(); me != nil {
		return errors.New("E300").
			WithLocation(bodyFile, me.Offset).
			WithDetail(fmt.Sprintf("Scanning stopped at the %s field: %s.", me.Field, me.Reason)).
			WithSuggestion("Check that the body was saved unmodified from the upload module")
	}
	if batch.Failed() > 0 {
		return errors.New("E302").
			WithDetail(fmt.Sprintf("%d of %d uploads could not be moved.", batch.Failed(), len(batch.Outcomes)))
	}
	return nil
}

func printBatch(out io.Writer, batch *upload.Batch, dryRun bool) {
	verb := "moved"
	if dryRun {
		verb = "would move"
	}

	for _, o := range batch.Outcomes {
		switch o.Kind {
		case upload.KindMoved:
			success(out, "%s %s → %s", verb, o.From, o.To)
		case upload.KindSkipped:
			warn(out, "skipped %q: %s", o.Name, o.Reason)
		case upload.KindFailed:
			errorMsg(out, "failed %q: %s", o.Name, o.Reason)
		}
	}

	fmt.Fprintln(out)
	info(out, "%d %s, %d skipped, %d failed", batch.Moved(), verb, batch.Skipped(), batch.Failed())
}

// planRelocator computes destinations without touching storage. Its moved
// outcomes are plans; callers mark the summary as a dry run.
type planRelocator struct{}

func (planRelocator) Relocate(_ context.Context, rec upload.FileRecord) upload.Outcome {
	var o upload.Outcome
	if len(rec.Name) == 0 || len(rec.StagedPath) == 0 {
		o = upload.Skipped(upload.ReasonMissingNameOrPath)
	} else if dst, err := upload.DestinationFor(rec); err != nil {
		o = upload.Failed(err.Error())
	} else {
		o = upload.Moved(rec.StagedPathString(), dst)
	}
	o.Name = rec.NameString()
	o.Checksum = rec.ChecksumString()
	if size, err := rec.Size(); err == nil {
		o.Size = size
	}
	return o
}

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vango-dev/treediff/internal/errors"
	"github.com/vango-dev/treediff/internal/loader"
	"github.com/vango-dev/treediff/internal/watch"
)

func (a *app) watchCmd() *cobra.Command {
	opts := &diffOptions{}
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch OLD NEW",
		Short: "Re-run diff whenever a snapshot changes",
		Long: `Print the patches between two snapshot files, then print them again
every time either file is saved. Decode and reconciliation errors are shown
and watching continues. Stop with Ctrl+C.

Examples:
  treediff watch old.json new.json
  treediff watch --order=apply before.yaml after.yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runWatch(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, debounce, args[0], args[1])
		},
	}

	opts.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", 100*time.Millisecond, "Wait this long after a change before diffing")

	return cmd
}

func (a *app) runWatch(ctx context.Context, out, errOut io.Writer, o *diffOptions, debounce time.Duration, oldRef, newRef string) error {
	for _, ref := range []string{oldRef, newRef} {
		if ref == loader.StdinRef || strings.HasPrefix(ref, "s3://") {
			return errors.New(errors.CodeUsage).
				WithDetail(fmt.Sprintf("watch needs local files, got %q.", ref)).
				WithSuggestion("Use 'treediff diff' for standard input and S3 snapshots.")
		}
	}
	if o.order != "display" && o.order != "apply" {
		return errors.New(errors.CodeUsage).
			WithDetail(fmt.Sprintf("Unknown --order %q.", o.order))
	}

	l, err := a.newLoader(ctx, o.format)
	if err != nil {
		return err
	}

	w, err := watch.NewWatcher(watch.WatcherConfig{
		Paths:    []string{oldRef, newRef},
		Debounce: debounce,
		Logger:   a.logger,
	})
	if err != nil {
		return errors.New(errors.CodeWatchFailed).Wrap(err)
	}

	rerun := func() {
		patches, err := a.diff(ctx, l, o, oldRef, newRef)
		if err != nil {
			errors.Fprint(errOut, err)
			return
		}
		if err := printPatches(out, o, patches); err != nil {
			errors.Fprint(errOut, err)
		}
	}

	if !o.json && !o.binary {
		info(out, "Watching %s and %s", oldRef, newRef)
		fmt.Fprintln(out)
	}
	rerun()

	w.OnChange(func(changes []watch.Change) {
		names := make([]string, 0, len(changes))
		for _, c := range changes {
			names = append(names, filepath.Base(c.Path))
			a.logger.Debug("snapshot changed", zap.String("path", c.Path), zap.Stringer("op", c.Op))
		}
		if !o.json && !o.binary {
			fmt.Fprintln(out)
			fmt.Fprintln(out, gray(fmt.Sprintf("── %s  %s changed", time.Now().Format("15:04:05"), strings.Join(names, ", "))))
			for _, c := range changes {
				if c.Op == watch.OpRemove || c.Op == watch.OpRename {
					warn(out, "%s was removed; waiting for it to come back", filepath.Base(c.Path))
				}
			}
		}
		rerun()
	})

	err = w.Start(ctx)
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return errors.New(errors.CodeWatchFailed).Wrap(err)
	}
	return nil
}

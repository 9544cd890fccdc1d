package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vango-dev/treediff/internal/errors"
	"github.com/vango-dev/treediff/internal/loader"
	"github.com/vango-dev/treediff/pkg/protocol"
	"github.com/vango-dev/treediff/pkg/server"
	"github.com/vango-dev/treediff/pkg/vdom"
)

// diffOptions are the flags shared by diff and watch.
type diffOptions struct {
	root          string
	format        string
	ignoreProps   []string
	skipEvents    bool
	parallelDepth int
	workers       int

	json     bool
	binary   bool
	order    string
	exitCode bool
}

func (o *diffOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.root, "root", "", "Key to start reconciliation from (default from treediff.json, or \"root\")")
	f.StringVarP(&o.format, "format", "f", "", "Snapshot format: json or yaml (default: detect)")
	f.StringSliceVar(&o.ignoreProps, "ignore-prop", nil, "Prop name to leave out of the comparison (repeatable)")
	f.BoolVar(&o.skipEvents, "skip-events", false, "Ignore event handler props such as onClick")
	f.IntVar(&o.parallelDepth, "parallel-depth", -1, "Diff children concurrently above this depth")
	f.IntVar(&o.workers, "workers", -1, "Goroutines per parallel level, 0 for no limit")
	f.BoolVar(&o.json, "json", false, "Print patches as JSON")
	f.BoolVar(&o.binary, "binary", false, "Print the wire frames as hex, one per line")
	f.StringVar(&o.order, "order", "display", "Patch order for text output: display or apply")
	cmd.MarkFlagsMutuallyExclusive("json", "binary")
}

func (a *app) diffCmd() *cobra.Command {
	opts := &diffOptions{}

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Print the patches turning one snapshot into another",
		Long: `Load two snapshots, reconcile them and print the patches.

OLD and NEW are local files, "-" for standard input, s3://bucket/key
references, or keys under s3.bucket/s3.prefix from treediff.json.

Text output is sorted by action and key unless --order=apply is given;
--json and --binary always use application order.

Examples:
  treediff diff old.json new.json
  treediff diff --json old.yaml new.yaml
  treediff diff --binary s3://snapshots/v1.json s3://snapshots/v2.json
  cat new.json | treediff diff old.json -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDiff(cmd.Context(), cmd.OutOrStdout(), opts, args[0], args[1])
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.exitCode, "exit-code", false, "Exit with status 1 when the snapshots differ")

	return cmd
}

// reconcileOptions merges the command line into the configured options.
func (a *app) reconcileOptions(o *diffOptions) vdom.Options {
	opts := a.cfg.DiffOptions()
	if o.root != "" {
		opts.RootKey = o.root
	}
	opts.IgnoreProps = append(opts.IgnoreProps, o.ignoreProps...)
	if o.skipEvents {
		opts.SkipEventHandlers = true
	}
	if o.parallelDepth >= 0 {
		opts.ParallelDepth = o.parallelDepth
	}
	if o.workers >= 0 {
		opts.Workers = o.workers
	}
	return opts
}

// newLoader builds a loader, with S3 access when the config or one of refs
// needs it.
func (a *app) newLoader(ctx context.Context, format string, refs ...string) (*loader.Loader, error) {
	f, err := loader.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	opts := []loader.Option{
		loader.WithFormat(f),
		loader.WithLogger(a.logger),
		loader.WithStdin(a.stdin),
	}

	needS3 := a.cfg.S3.Bucket != ""
	for _, ref := range refs {
		if strings.HasPrefix(ref, "s3://") {
			needS3 = true
		}
	}
	if needS3 {
		client, err := loader.NewS3Client(ctx, a.cfg.S3)
		if err != nil {
			return nil, errors.New(errors.CodeSourceFetch).Wrap(err)
		}
		opts = append(opts, loader.WithS3(client, a.cfg.S3.Bucket, a.cfg.S3.Prefix))
	}
	return loader.New(opts...), nil
}

func (a *app) runDiff(ctx context.Context, out io.Writer, o *diffOptions, oldRef, newRef string) error {
	if o.order != "display" && o.order != "apply" {
		return errors.New(errors.CodeUsage).
			WithDetail(fmt.Sprintf("Unknown --order %q.", o.order)).
			WithSuggestion("Use --order=display or --order=apply.")
	}

	l, err := a.newLoader(ctx, o.format, oldRef, newRef)
	if err != nil {
		return err
	}
	patches, err := a.diff(ctx, l, o, oldRef, newRef)
	if err != nil {
		return err
	}

	if err := printPatches(out, o, patches); err != nil {
		return err
	}
	if o.exitCode && len(patches) > 0 {
		return errChanges
	}
	return nil
}

// diff loads both snapshots and reconciles them. Errors point into the
// snapshot at fault.
func (a *app) diff(ctx context.Context, l *loader.Loader, o *diffOptions, oldRef, newRef string) ([]vdom.Patch, error) {
	prev, err := l.Load(ctx, oldRef)
	if err != nil {
		return nil, err
	}
	next, err := l.Load(ctx, newRef)
	if err != nil {
		return nil, err
	}

	opts := a.reconcileOptions(o)
	patches, err := vdom.NewReconciler(opts).Reconcile(prev.Tree, next.Tree)
	if err != nil {
		return nil, loader.Explain(err, prev, next)
	}

	a.logger.Debug("reconciled",
		zap.String("old", prev.Name),
		zap.String("new", next.Name),
		zap.String("root", opts.RootKey),
		zap.Int("patches", len(patches)),
	)
	return patches, nil
}

func printPatches(out io.Writer, o *diffOptions, patches []vdom.Patch) error {
	switch {
	case o.json:
		if patches == nil {
			patches = []vdom.Patch{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(server.ReconcileResponse{
			Patches: patches,
			Count:   len(patches),
			Summary: vdom.Count(patches),
		})

	case o.binary:
		frames, err := protocol.EncodePatchFrames(1, patches)
		if err != nil {
			return errors.FromReconcile(err)
		}
		for _, f := range frames {
			fmt.Fprintln(out, hex.EncodeToString(f.Encode()))
		}
		return nil

	default:
		if o.order == "display" {
			patches = vdom.SortForDisplay(patches)
		}
		printText(out, patches)
		return nil
	}
}

var opColors = map[vdom.PatchOp]*color.Color{
	vdom.PatchCreate:  color.New(color.FgGreen, color.Bold),
	vdom.PatchRemove:  color.New(color.FgRed, color.Bold),
	vdom.PatchReplace: color.New(color.FgMagenta, color.Bold),
	vdom.PatchUpdate:  color.New(color.FgYellow, color.Bold),
	vdom.PatchMove:    color.New(color.FgCyan, color.Bold),
}

// printText prints one line per patch followed by a summary.
func printText(out io.Writer, patches []vdom.Patch) {
	if len(patches) == 0 {
		fmt.Fprintln(out, "No changes")
		return
	}

	for _, p := range patches {
		line := p.String()
		op := p.Op.String()
		rest := strings.TrimPrefix(line, op)
		if c, ok := opColors[p.Op]; ok {
			op = c.Sprintf("%-7s", op)
		}
		fmt.Fprintf(out, "%s%s\n", op, rest)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, gray(summarize(patches)))
}

// summarize renders counts like "4 patches: 1 create, 1 move, 2 update".
func summarize(patches []vdom.Patch) string {
	counts := vdom.Count(patches)
	ops := make([]vdom.PatchOp, 0, len(counts))
	for op := range counts {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].String() < ops[j].String() })

	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		parts = append(parts, fmt.Sprintf("%d %s", counts[op], strings.ToLower(op.String())))
	}

	noun := "patches"
	if len(patches) == 1 {
		noun = "patch"
	}
	return fmt.Sprintf("%d %s: %s", len(patches), noun, strings.Join(parts, ", "))
}

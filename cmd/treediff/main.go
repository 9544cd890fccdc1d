package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vango-dev/treediff/internal/config"
	"github.com/vango-dev/treediff/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errChanges makes diff --exit-code exit with status 1 without printing an
// error.
var errChanges = stderrors.New("snapshots differ")

// annotationNoConfig marks commands that run without loading treediff.json.
const annotationNoConfig = "treediff/no-config"

// app holds the state shared by all commands.
type app struct {
	configPath string
	noColor    bool
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
	stdin  io.Reader
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code: 0 on success, 1
// when diff --exit-code found changes and 2 on errors.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	switch {
	case err == nil:
		return 0
	case stderrors.Is(err, errChanges):
		return 1
	default:
		errors.Fprint(stderr, err)
		return 2
	}
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "treediff",
		Short: "Compute minimal patches between keyed tree snapshots",
		Long: `treediff compares two snapshots of a keyed UI tree and prints the
patches (CREATE, REMOVE, REPLACE, UPDATE, MOVE) that turn the old one into
the new one. Children lists are reconciled by key with the fewest moves.

Snapshots are JSON or YAML objects mapping keys to nodes, read from local
files, standard input (-) or S3.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to treediff.json (default: nearest in working directory)")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error (default from treediff.json)")

	rootCmd.AddCommand(
		a.diffCmd(),
		a.watchCmd(),
		a.serveCmd(),
		initCmd(),
		explainCmd(),
		versionCmd(),
	)
	return rootCmd
}

// setup loads the configuration and builds the logger before any command
// runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.noColor {
		color.NoColor = true
		errors.DisableColors()
	}
	a.stdin = cmd.InOrStdin()
	if cmd.Annotations[annotationNoConfig] != "" {
		return nil
	}

	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return err
	}

	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
		if err := a.cfg.Validate(); err != nil {
			return err
		}
	}

	a.logger, err = a.cfg.NewLogger()
	if err != nil {
		return errors.New(errors.CodeInvalidConfig).Wrap(err)
	}
	a.logger.Debug("config loaded", zap.String("path", a.cfg.Path()))
	return nil
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", green("✓"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", yellow("⚠"), fmt.Sprintf(format, args...))
}

// Command treediff-bench measures reconciliation over the WebSocket endpoint.
//
// It starts an in-process server, connects a number of clients and has each
// one send reconcile requests at a fixed rate. Every request moves one item
// of a keyed list and relabels another with a unique token; a request counts
// as complete once the UPDATE carrying the token has been decoded from the
// returned Patches frames.
package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/treediff/internal/errors"
)

const gib = int64(1024 * 1024 * 1024)

type profile struct {
	Name          string
	Clients       int
	Duration      time.Duration
	RPS           float64
	ListSize      int
	PayloadBytes  int
	MaxProcs      int
	MemLimitBytes int64
}

var profiles = map[string]profile{
	"fast": {
		Name:         "fast",
		Clients:      20,
		Duration:     10 * time.Second,
		RPS:          5,
		ListSize:     50,
		PayloadBytes: 24,
	},
	"standard": {
		Name:         "standard",
		Clients:      100,
		Duration:     30 * time.Second,
		RPS:          10,
		ListSize:     200,
		PayloadBytes: 24,
	},
	"stress": {
		Name:          "stress",
		Clients:       300,
		Duration:      60 * time.Second,
		RPS:           20,
		ListSize:      1000,
		PayloadBytes:  24,
		MaxProcs:      4,
		MemLimitBytes: 2 * gib,
	},
}

type benchConfig struct {
	Profile        string
	Clients        int
	Duration       time.Duration
	RPS            float64
	ListSize       int
	PayloadBytes   int
	MaxProcs       int
	MemLimitBytes  int64
	JSONOutput     string
	RequestTimeout time.Duration
}

// benchFlags holds the raw command line; -1 and "" mean "from the profile".
type benchFlags struct {
	profile  string
	clients  int
	duration time.Duration
	rps      float64
	list     int
	payload  int
	maxProcs int
	memLimit string
	json     string
}

func main() {
	if err := rootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		errors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &benchFlags{}

	cmd := &cobra.Command{
		Use:   "treediff-bench",
		Short: "Load-test reconciliation over WebSocket",
		Long: `Start an in-process treediff server and drive it with concurrent
WebSocket clients. A summary goes to stderr and a JSON report to --json.

Examples:
  treediff-bench --profile=fast
  treediff-bench --clients=50 --list=500 --duration=20s --json=report.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config()
			if err != nil {
				return err
			}

			if cfg.MaxProcs > 0 {
				runtime.GOMAXPROCS(cfg.MaxProcs)
			}
			if cfg.MemLimitBytes > 0 {
				debug.SetMemoryLimit(cfg.MemLimitBytes)
			}
			debug.SetGCPercent(100)

			report, err := runBench(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			writeSummary(stderr, report)
			return writeJSON(stdout, cfg.JSONOutput, report)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.profile, "profile", "standard", "Profile: fast, standard or stress")
	flags.IntVar(&f.clients, "clients", -1, "Number of concurrent WebSocket clients")
	flags.DurationVar(&f.duration, "duration", 0, "Benchmark duration, e.g. 30s")
	flags.Float64Var(&f.rps, "rps", -1, "Target requests/sec per client")
	flags.IntVar(&f.list, "list", -1, "Items in each client's keyed list")
	flags.IntVar(&f.payload, "payload-bytes", -1, "Bytes of token per request")
	flags.IntVar(&f.maxProcs, "max-procs", -1, "GOMAXPROCS cap (0 to leave unchanged)")
	flags.StringVar(&f.memLimit, "mem-limit", "", "GOMEMLIMIT (e.g. 2GiB)")
	flags.StringVar(&f.json, "json", "-", "JSON report path ('-' for stdout)")

	return cmd
}

func usageError(format string, args ...any) *errors.Error {
	return errors.New(errors.CodeUsage).WithDetail(fmt.Sprintf(format, args...))
}

// config resolves the flags against the chosen profile.
func (f *benchFlags) config() (benchConfig, error) {
	name := strings.ToLower(strings.TrimSpace(f.profile))
	if name == "" {
		name = "standard"
	}

	base, ok := profiles[name]
	if !ok {
		return benchConfig{}, usageError("Unknown profile %q; use fast, standard or stress.", name)
	}

	cfg := benchConfig{
		Profile:       base.Name,
		Clients:       base.Clients,
		Duration:      base.Duration,
		RPS:           base.RPS,
		ListSize:      base.ListSize,
		PayloadBytes:  base.PayloadBytes,
		MaxProcs:      base.MaxProcs,
		MemLimitBytes: base.MemLimitBytes,
		JSONOutput:    strings.TrimSpace(f.json),
	}

	if f.clients != -1 {
		cfg.Clients = f.clients
	}
	if f.duration != 0 {
		cfg.Duration = f.duration
	}
	if f.rps != -1 {
		cfg.RPS = f.rps
	}
	if f.list != -1 {
		cfg.ListSize = f.list
	}
	if f.payload != -1 {
		cfg.PayloadBytes = f.payload
	}
	if f.maxProcs != -1 {
		cfg.MaxProcs = f.maxProcs
	}
	if f.memLimit != "" {
		limit, err := parseBytes(f.memLimit)
		if err != nil {
			return benchConfig{}, usageError("Invalid --mem-limit: %v.", err)
		}
		cfg.MemLimitBytes = limit
	}
	if cfg.JSONOutput == "" {
		cfg.JSONOutput = "-"
	}

	switch {
	case cfg.Clients <= 0:
		return benchConfig{}, usageError("--clients must be > 0.")
	case cfg.Duration <= 0:
		return benchConfig{}, usageError("--duration must be > 0.")
	case cfg.RPS <= 0:
		return benchConfig{}, usageError("--rps must be > 0.")
	case cfg.ListSize < 2:
		return benchConfig{}, usageError("--list must be >= 2.")
	case cfg.PayloadBytes <= 0:
		return benchConfig{}, usageError("--payload-bytes must be > 0.")
	case cfg.MaxProcs < 0:
		return benchConfig{}, usageError("--max-procs must be >= 0.")
	case cfg.MemLimitBytes < 0:
		return benchConfig{}, usageError("--mem-limit must be >= 0.")
	}

	cfg.RequestTimeout = requestTimeout(cfg.RPS)
	return cfg, nil
}

func requestTimeout(rps float64) time.Duration {
	if rps <= 0 {
		return 0
	}
	period := time.Duration(float64(time.Second) / rps)
	timeout := period * 10
	if timeout < 2*time.Second {
		timeout = 2 * time.Second
	}
	return timeout
}

var errBadSize = stderrors.New("invalid size")

// parseBytes parses sizes such as "512MiB" or "2GB".
func parseBytes(input string) (int64, error) {
	s := strings.TrimSpace(input)
	i := strings.IndexFunc(s, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	if i == -1 {
		i = len(s)
	}
	if i == 0 {
		return 0, fmt.Errorf("%w %q", errBadSize, input)
	}

	value, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q", errBadSize, input)
	}

	multipliers := map[string]float64{
		"": 1, "b": 1,
		"kb": 1e3, "mb": 1e6, "gb": 1e9, "tb": 1e12,
		"kib": 1 << 10, "mib": 1 << 20, "gib": 1 << 30, "tib": 1 << 40,
	}
	suffix := strings.ToLower(strings.TrimSpace(s[i:]))
	m, ok := multipliers[suffix]
	if !ok {
		return 0, fmt.Errorf("%w: unknown suffix %q", errBadSize, suffix)
	}
	return int64(value*m + 0.5), nil
}

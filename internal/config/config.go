package config

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vango-dev/treediff/internal/errors"
	"github.com/vango-dev/treediff/pkg/vdom"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "treediff.json"

	// DefaultPort is the default server port.
	DefaultPort = 7420

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultMaxBodyBytes caps the size of a reconcile request.
	DefaultMaxBodyBytes = 8 << 20

	// DefaultLogLevel is used when log.level is empty.
	DefaultLogLevel = "info"
)

// Config represents the complete treediff.json configuration.
type Config struct {
	// RootKey is the key reconciliation starts from (default "root").
	RootKey string `json:"rootKey,omitempty"`

	Diff   DiffConfig   `json:"diff,omitempty"`
	Server ServerConfig `json:"server,omitempty"`
	S3     S3Config     `json:"s3,omitempty"`
	Log    LogConfig    `json:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// DiffConfig tunes the reconciler.
type DiffConfig struct {
	// IgnoreProps lists prop names that never produce UPDATEs.
	IgnoreProps []string `json:"ignoreProps,omitempty"`

	// SkipEventHandlers ignores props named like onClick.
	SkipEventHandlers bool `json:"skipEventHandlers,omitempty"`

	// ParallelDepth enables concurrent diffing of children above this depth.
	ParallelDepth int `json:"parallelDepth,omitempty" validate:"min=0"`

	// Workers caps the goroutines per parallel level; 0 means no cap.
	Workers int `json:"workers,omitempty" validate:"min=0"`
}

// ServerConfig contains the HTTP and WebSocket server settings.
type ServerConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty" validate:"min=1,max=65535"`

	// MaxBodyBytes caps request bodies and WebSocket messages.
	MaxBodyBytes int64 `json:"maxBodyBytes,omitempty" validate:"min=0"`

	// Timeouts are Go durations such as "10s".
	ReadTimeout     string `json:"readTimeout,omitempty" validate:"omitempty,duration"`
	WriteTimeout    string `json:"writeTimeout,omitempty" validate:"omitempty,duration"`
	ShutdownTimeout string `json:"shutdownTimeout,omitempty" validate:"omitempty,duration"`
}

// S3Config locates snapshots kept in object storage.
type S3Config struct {
	Region string `json:"region,omitempty"`

	// Bucket and Prefix resolve bare snapshot keys.
	Bucket string `json:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty"`

	// Endpoint overrides the service endpoint (MinIO, localstack).
	Endpoint     string `json:"endpoint,omitempty" validate:"omitempty,url"`
	UsePathStyle bool   `json:"usePathStyle,omitempty"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level       string `json:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Development bool   `json:"development,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		RootKey: vdom.DefaultRootKey,
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			MaxBodyBytes:    DefaultMaxBodyBytes,
			ReadTimeout:     "10s",
			WriteTimeout:    "10s",
			ShutdownTimeout: "5s",
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for treediff.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeMissingConfig).
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Run 'treediff init' to write one with the defaults")
		}
		return nil, errors.New(errors.CodeInvalidConfig).Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		e := errors.New(errors.CodeInvalidConfig).
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
		if offset, ok := jsonOffset(err); ok {
			line, col := errors.Position(data, offset)
			e.WithSource(path, data, line, col)
		}
		return nil, e
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func jsonOffset(err error) (int64, bool) {
	var se *json.SyntaxError
	if stderrors.As(err, &se) {
		return se.Offset, true
	}
	var te *json.UnmarshalTypeError
	if stderrors.As(err, &te) {
		return te.Offset, true
	}
	return 0, false
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.CodeInvalidConfig).Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeInvalidConfig).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.RootKey == "" {
		c.RootKey = vdom.DefaultRootKey
	}

	// Server
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "10s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "5s"
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
	return v
}

// Validate checks if the configuration is valid. The first failing field
// decides the error code.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return errors.New(errors.CodeInvalidConfig).Wrap(err)
	}

	fe := verrs[0]
	field := fe.StructNamespace()
	switch field {
	case "Config.Server.Port":
		return errors.New(errors.CodeInvalidPort).
			WithDetail("Port must be between 1 and 65535, got " + strconv.Itoa(c.Server.Port))
	case "Config.Diff.ParallelDepth", "Config.Diff.Workers":
		return errors.New(errors.CodeInvalidDiffOpts).
			WithDetail(fe.Field() + " must not be negative")
	case "Config.Log.Level":
		return errors.New(errors.CodeInvalidLogLevel).
			WithDetail("Unknown log level " + strconv.Quote(c.Log.Level))
	}
	return errors.New(errors.CodeInvalidConfig).
		WithDetail(fieldMessage(fe)).
		Wrap(err)
}

// fieldMessage formats a single field validation error.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "duration":
		return fe.Namespace() + " must be a duration such as \"10s\""
	case "url":
		return fe.Namespace() + " must be a URL"
	case "min":
		return fe.Namespace() + " must be at least " + fe.Param()
	default:
		return fe.Namespace() + " is invalid"
	}
}

// DiffOptions returns the reconciler options described by the config.
func (c *Config) DiffOptions() vdom.Options {
	return vdom.Options{
		RootKey:           c.RootKey,
		IgnoreProps:       append([]string(nil), c.Diff.IgnoreProps...),
		SkipEventHandlers: c.Diff.SkipEventHandlers,
		ParallelDepth:     c.Diff.ParallelDepth,
		Workers:           c.Diff.Workers,
	}
}

// Address returns the host:port string the server listens on.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// ReadTimeout returns the server read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 10*time.Second)
}

// WriteTimeout returns the server write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 10*time.Second)
}

// ShutdownTimeout returns how long shutdown waits for open requests.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 5*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || s == "" {
		return def
	}
	return d
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing treediff.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.CodeMissingConfig).
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or the nearest parent holding treediff.json. Without one the defaults are
// returned.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return New(), nil
	}

	return Load(root)
}

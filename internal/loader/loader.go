package loader

import (
	"context"
	"io"
	"os"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/vango-dev/treediff/internal/errors"
)

// DefaultMaxBytes caps the size of a snapshot.
const DefaultMaxBytes = 64 << 20

// Loader reads snapshots from local files or S3.
type Loader struct {
	client   ObjectAPI
	bucket   string
	prefix   string
	format   Format
	maxBytes int64
	stdin    io.Reader
	logger   *zap.Logger
}

// StdinRef is the reference that reads a snapshot from standard input.
const StdinRef = "-"

// Option configures a Loader.
type Option func(*Loader)

// WithS3 enables s3:// references and resolves bare keys that are not local
// files under bucket/prefix.
func WithS3(client ObjectAPI, bucket, prefix string) Option {
	return func(l *Loader) {
		l.client = client
		l.bucket = bucket
		l.prefix = prefix
	}
}

// WithFormat forces a format instead of detecting it.
func WithFormat(f Format) Option {
	return func(l *Loader) { l.format = f }
}

// WithMaxBytes sets the snapshot size limit.
func WithMaxBytes(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// WithStdin sets the reader used for StdinRef.
func WithStdin(r io.Reader) Option {
	return func(l *Loader) { l.stdin = r }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		maxBytes: DefaultMaxBytes,
		stdin:    os.Stdin,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.String("component", "loader"))
	return l
}

// Load reads and decodes the snapshot named by ref: "s3://bucket/key", a
// local path, or a key under the configured bucket and prefix.
func (l *Loader) Load(ctx context.Context, ref string) (*Snapshot, error) {
	start := time.Now()

	name, data, err := l.read(ctx, ref)
	if err != nil {
		return nil, err
	}

	snap, err := Decode(name, data, l.format)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("snapshot loaded",
		zap.String("source", name),
		zap.Stringer("format", snap.Format),
		zap.Int("bytes", len(data)),
		zap.Int("nodes", len(snap.Tree)),
		zap.Duration("duration", time.Since(start)),
	)
	return snap, nil
}

func (l *Loader) read(ctx context.Context, ref string) (string, []byte, error) {
	if ref == StdinRef {
		data, err := l.readAll("<stdin>", l.stdin)
		return "<stdin>", data, err
	}

	if bucket, key, ok := parseS3URL(ref); ok {
		if l.client == nil {
			return ref, nil, errors.New(errors.CodeSourceFetch).
				WithDetail("S3 is not configured for " + ref).
				WithSuggestion("Set s3.region (and s3.endpoint when not using AWS) in treediff.json")
		}
		data, err := fetchS3(ctx, l.client, bucket, key, l.maxBytes)
		return ref, data, err
	}

	data, err := l.readFile(ref)
	if err == nil {
		return ref, data, nil
	}
	if !os.IsNotExist(err) {
		if e, ok := err.(*errors.Error); ok {
			return ref, nil, e
		}
		return ref, nil, errors.New(errors.CodeSourceNotFound).Wrap(err)
	}

	if l.client != nil && l.bucket != "" {
		key := path.Join(l.prefix, ref)
		data, err := fetchS3(ctx, l.client, l.bucket, key, l.maxBytes)
		return "s3://" + l.bucket + "/" + key, data, err
	}

	return ref, nil, errors.New(errors.CodeSourceNotFound).
		WithDetail("No file " + ref).
		Wrap(err)
}

func (l *Loader) readFile(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return l.readAll(name, f)
}

func (l *Loader) readAll(name string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxBytes {
		return nil, tooLarge(name, l.maxBytes)
	}
	return data, nil
}

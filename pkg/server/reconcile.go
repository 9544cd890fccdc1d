package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vango-dev/treediff/internal/errors"
	"github.com/vango-dev/treediff/internal/loader"
	"github.com/vango-dev/treediff/pkg/vdom"
)

// ReconcileRequest is the body of POST /v1/reconcile and of WebSocket text
// messages. Old and New are snapshots; a missing or null snapshot is empty.
type ReconcileRequest struct {
	Old  json.RawMessage `json:"old"`
	New  json.RawMessage `json:"new"`
	Root string          `json:"root,omitempty"`
}

// ReconcileResponse is the body of a successful POST /v1/reconcile.
type ReconcileResponse struct {
	Patches []vdom.Patch         `json:"patches"`
	Count   int                  `json:"count"`
	Summary map[vdom.PatchOp]int `json:"summary"`
}

// Reconcile decodes both snapshots of req and returns the patches turning
// the old one into the new one. Errors are *errors.Error values.
func (s *Server) Reconcile(ctx context.Context, req *ReconcileRequest) ([]vdom.Patch, error) {
	opts := s.config.DiffOptions
	if req.Root != "" {
		opts.RootKey = req.Root
	}

	_, span := s.tracer.Start(ctx, "treediff.reconcile",
		trace.WithAttributes(attribute.String("treediff.root", rootKey(opts))),
	)
	defer span.End()

	start := time.Now()
	patches, status, err := s.reconcile(req, opts)
	elapsed := time.Since(start)

	s.metrics.reconciliations.WithLabelValues(status).Inc()
	s.metrics.duration.Observe(elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Debug("reconcile failed",
			zap.String("status", status),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.recordPatches(patches)
	span.SetAttributes(attribute.Int("treediff.patches", len(patches)))
	s.logger.Debug("reconciled",
		zap.Int("patches", len(patches)),
		zap.Duration("duration", elapsed),
	)
	return patches, nil
}

func (s *Server) reconcile(req *ReconcileRequest, opts vdom.Options) ([]vdom.Patch, string, error) {
	prev, err := decodeSnapshot("old", req.Old)
	if err != nil {
		return nil, statusInvalid, err
	}
	next, err := decodeSnapshot("new", req.New)
	if err != nil {
		return nil, statusInvalid, err
	}
	s.metrics.nodes.Observe(float64(len(next.Tree)))

	patches, err := vdom.NewReconciler(opts).Reconcile(prev.Tree, next.Tree)
	if err != nil {
		status := statusError
		switch {
		case stderrors.Is(err, vdom.ErrDuplicateKey):
			status = statusDuplicate
		case stderrors.Is(err, vdom.ErrMalformedTree):
			status = statusMalformed
		}
		return nil, status, loader.Explain(err, prev, next)
	}
	return patches, statusOK, nil
}

var jsonNull = []byte("null")

func decodeSnapshot(name string, raw json.RawMessage) (*loader.Snapshot, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, jsonNull) {
		raw = nil
	}
	snap, err := loader.Decode(name, raw, loader.FormatJSON)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func rootKey(opts vdom.Options) string {
	if opts.RootKey == "" {
		return vdom.DefaultRootKey
	}
	return opts.RootKey
}

// isRequestError reports whether err was caused by the request rather than
// by the snapshots' structure.
func isRequestError(err error) bool {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return false
	}
	switch e.Code {
	case errors.CodeSnapshotSyntax, errors.CodeInvalidNode, errors.CodeBadRequest, errors.CodeTooLarge:
		return true
	}
	return false
}

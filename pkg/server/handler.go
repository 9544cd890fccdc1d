package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vango-dev/treediff/internal/errors"
	"github.com/vango-dev/treediff/pkg/vdom"
)

// handleReconcile serves POST /v1/reconcile. With ?sort=display the patches
// are ordered for reading instead of application.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, decodeError(err, s.config.MaxBodyBytes))
		return
	}

	patches, err := s.Reconcile(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("sort") == "display" {
		patches = vdom.SortForDisplay(patches)
	}
	if patches == nil {
		patches = []vdom.Patch{}
	}

	writeJSON(w, http.StatusOK, ReconcileResponse{
		Patches: patches,
		Count:   len(patches),
		Summary: vdom.Count(patches),
	})
}

// decodeError turns a request body decoding failure into a diagnostic.
func decodeError(err error, limit int64) *errors.Error {
	var mbe *http.MaxBytesError
	if stderrors.As(err, &mbe) {
		return errors.New(errors.CodeTooLarge).
			WithDetail("The request body exceeds " + strconv.FormatInt(limit, 10) + " bytes.")
	}
	return errors.New(errors.CodeBadRequest).Wrap(err)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

// Package server exposes reconciliation over HTTP and WebSocket.
//
// Routes:
//
//	POST /v1/reconcile  JSON {"old": snapshot, "new": snapshot, "root": key}
//	GET  /v1/ws         WebSocket, JSON requests in, binary frames out
//	GET  /metrics       Prometheus metrics
//	GET  /healthz       liveness
//
// A successful POST answers {"patches": [...], "count": n, "summary": {...}}.
// Failures answer {"error": {...}} with the diagnostic code: 400 for
// undecodable requests, 413 for oversized bodies and 422 for snapshots that
// cannot be reconciled.
//
// On the WebSocket the server sends a Hello frame with the connection id,
// then answers every text message with Patches frames (see pkg/protocol) or
// an Error frame. Requests on one connection are numbered from 1 and the
// number is the Seq of the answering frames.
//
// Usage:
//
//	srv := server.New(&server.Config{Address: ":7420"}, server.WithLogger(logger))
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/rand/v2"
	"net"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/treediff/internal/errors"
	"github.com/vango-dev/treediff/pkg/protocol"
	"github.com/vango-dev/treediff/pkg/server"
	"github.com/vango-dev/treediff/pkg/vdom"
)

type benchCounters struct {
	requestsSent     atomic.Uint64
	requestsComplete atomic.Uint64
	requestBytes     atomic.Uint64
	patchBytes       atomic.Uint64
	patchFrames      atomic.Uint64
	patchesTotal     atomic.Uint64
}

type benchErrors struct {
	handshakeFailures   atomic.Uint64
	requestWriteFailure atomic.Uint64
	frameDecodeFailures atomic.Uint64
	patchDecodeFailures atomic.Uint64
	serverErrorFrames   atomic.Uint64
	tokenMissing        atomic.Uint64
	totalErrors         atomic.Uint64
}

type patchOpCounts struct {
	counts [256]atomic.Uint64
}

func (p *patchOpCounts) add(op vdom.PatchOp) {
	p.counts[uint8(op)].Add(1)
}

func (p *patchOpCounts) snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	for i := range p.counts {
		count := p.counts[i].Load()
		if count == 0 {
			continue
		}
		out[vdom.PatchOp(uint8(i)).String()] = count
	}
	return out
}

// runBench serves on a loopback port, runs the clients for cfg.Duration and
// returns the report.
func runBench(ctx context.Context, cfg benchConfig) (benchReport, error) {
	srv := server.New(&server.Config{
		MaxBodyBytes: 256 << 20,
		WriteTimeout: cfg.RequestTimeout,
	})

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return benchReport{}, errors.New(errors.CodeServeFailed).Wrap(err)
	}

	serveCtx, stopServer := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(serveCtx, ln) }()
	defer func() {
		stopServer()
		<-served
	}()

	wsURL := "ws://" + ln.Addr().String() + "/v1/ws"

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	samplesCh := make(chan time.Duration, sampleBuffer(cfg.Clients))
	var samples []time.Duration
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for rtt := range samplesCh {
			samples = append(samples, rtt)
		}
	}()

	var counters benchCounters
	var errCounts benchErrors
	var patchOps patchOpCounts

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	beforeMetrics := readRuntimeMetrics()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(cfg.Clients)
	for i := 0; i < cfg.Clients; i++ {
		go func(clientID int) {
			defer wg.Done()
			if err := runClient(runCtx, wsURL, clientID, cfg, &counters, &errCounts, &patchOps, samplesCh); err != nil {
				errCounts.totalErrors.Add(1)
			}
		}(i)
	}

	wg.Wait()
	close(samplesCh)
	<-collectorDone

	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)
	afterMetrics := readRuntimeMetrics()

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	return buildReport(cfg, elapsed, samples, &counters, &errCounts, &patchOps, before, after, beforeMetrics, afterMetrics), nil
}

func sampleBuffer(clients int) int {
	buf := clients * 4
	if buf < 1024 {
		buf = 1024
	}
	return buf
}

// workload is one client's keyed list. Each step moves one item and relabels
// another, so the expected patches are a MOVE and an UPDATE.
type workload struct {
	rng    *rand.Rand
	keys   []string
	labels map[string]string
	prev   json.RawMessage
}

func newWorkload(clientID, size int) *workload {
	w := &workload{
		rng:    rand.New(rand.NewPCG(uint64(clientID), 0x7d1ff)),
		keys:   make([]string, size),
		labels: make(map[string]string, size),
	}
	for i := range w.keys {
		key := "c" + strconv.Itoa(clientID) + "-" + strconv.Itoa(i)
		w.keys[i] = key
		w.labels[key] = "Item " + strconv.Itoa(i)
	}
	w.prev = w.encode()
	return w
}

func (w *workload) encode() json.RawMessage {
	tree := make(vdom.Tree, len(w.keys)+1)
	tree[vdom.DefaultRootKey] = vdom.Node{
		Type:     "Ul",
		Children: append([]string(nil), w.keys...),
	}
	for _, key := range w.keys {
		tree[key] = vdom.Node{Type: "Li", Props: vdom.Props{"label": w.labels[key]}}
	}
	data, _ := json.Marshal(tree)
	return data
}

// next advances the list and returns the request and the key whose label
// became token.
func (w *workload) next(token string) ([]byte, string) {
	from := w.rng.IntN(len(w.keys))
	to := w.rng.IntN(len(w.keys) - 1)
	if to >= from {
		to++
	}
	key := w.keys[from]
	w.keys = append(w.keys[:from], w.keys[from+1:]...)
	w.keys = append(w.keys[:to], append([]string{key}, w.keys[to:]...)...)

	target := w.keys[w.rng.IntN(len(w.keys))]
	w.labels[target] = token

	next := w.encode()
	req, _ := json.Marshal(server.ReconcileRequest{Old: w.prev, New: next})
	w.prev = next
	return req, target
}

func runClient(
	ctx context.Context,
	wsURL string,
	clientID int,
	cfg benchConfig,
	counters *benchCounters,
	errCounts *benchErrors,
	patchOps *patchOpCounts,
	samples chan<- time.Duration,
) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		errCounts.handshakeFailures.Add(1)
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		errCounts.handshakeFailures.Add(1)
		return fmt.Errorf("hello read: %w", err)
	}
	frame, err := protocol.DecodeFrame(msg)
	if err != nil || frame.Type != protocol.FrameHello {
		errCounts.handshakeFailures.Add(1)
		return fmt.Errorf("hello: unexpected frame")
	}

	wl := newWorkload(clientID, cfg.ListSize)
	period := time.Duration(float64(time.Second) / cfg.RPS)
	var seq uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		seq++
		token := makeToken(clientID, seq, cfg.PayloadBytes)
		req, target := wl.next(token)

		start := time.Now()
		if err := conn.WriteMessage(websocket.TextMessage, req); err != nil {
			errCounts.requestWriteFailure.Add(1)
			return fmt.Errorf("request write: %w", err)
		}
		counters.requestsSent.Add(1)
		counters.requestBytes.Add(uint64(len(req)))

		_ = conn.SetReadDeadline(time.Now().Add(cfg.RequestTimeout))
		found, err := waitForToken(conn, target, token, counters, errCounts, patchOps)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if isTimeout(err) {
				errCounts.tokenMissing.Add(1)
			}
			return fmt.Errorf("wait for patches: %w", err)
		}
		if !found {
			errCounts.tokenMissing.Add(1)
			return fmt.Errorf("token not observed in patches")
		}

		rtt := time.Since(start)
		counters.requestsComplete.Add(1)
		samples <- rtt

		if sleep := period - time.Since(start); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// waitForToken reads frames until one request's patches are complete and
// reports whether they relabel target to token.
func waitForToken(
	conn *websocket.Conn,
	target, token string,
	counters *benchCounters,
	errCounts *benchErrors,
	patchOps *patchOpCounts,
) (bool, error) {
	asm := protocol.NewAssembler(nil)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return false, err
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			errCounts.frameDecodeFailures.Add(1)
			return false, err
		}

		switch frame.Type {
		case protocol.FramePatches:
			counters.patchFrames.Add(1)
			counters.patchBytes.Add(uint64(len(msg)))
			pf, err := asm.Add(frame)
			if err != nil {
				errCounts.patchDecodeFailures.Add(1)
				return false, err
			}
			if pf == nil {
				continue
			}
			found := false
			for _, p := range pf.Patches {
				patchOps.add(p.Op)
				counters.patchesTotal.Add(1)
				if p.Op == vdom.PatchUpdate && p.Target == target && p.Props["label"] == token {
					found = true
				}
			}
			return found, nil

		case protocol.FrameError:
			errCounts.serverErrorFrames.Add(1)
			em, err := protocol.DecodeErrorMessage(frame.Payload)
			if err != nil {
				return false, err
			}
			return false, em
		}
	}
}

// makeToken returns a label unique to clientID and seq, padded to
// payloadBytes.
func makeToken(clientID int, seq uint64, payloadBytes int) string {
	if payloadBytes <= 0 {
		return ""
	}
	seed := (uint64(clientID) << 32) ^ seq
	base := strconv.FormatUint(seed, 36)
	if len(base) >= payloadBytes {
		return base[len(base)-payloadBytes:]
	}
	return base + strings.Repeat("x", payloadBytes-len(base))
}

func isTimeout(err error) bool {
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

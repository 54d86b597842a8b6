package engine

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-drift/viewtree/pkg/errors"
)

// debugServer manages the HTTP server for tree inspection.
type debugServer struct {
	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
}

// StartDebugServer starts the HTTP debug server on the specified port.
// Returns the actual port (useful when port=0 for ephemeral allocation).
func (h *Host) StartDebugServer(port int) (int, error) {
	h.debug.mu.Lock()
	defer h.debug.mu.Unlock()

	if h.debug.server != nil {
		// Already running - return current port
		return h.debug.listener.Addr().(*net.TCPAddr).Port, nil
	}

	// Bind listener first to fail fast on port conflicts
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return 0, fmt.Errorf("debug server listen: %w", err)
	}

	server := &http.Server{Handler: h.DebugHandler()}
	h.debug.server = server
	h.debug.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			// Server failed - clear state so it can be restarted
			h.debug.mu.Lock()
			if h.debug.server == server {
				h.debug.server = nil
				h.debug.listener = nil
			}
			h.debug.mu.Unlock()
			errors.Logger().Error("debug server failed", "err", err)
		}
	}()

	return listener.Addr().(*net.TCPAddr).Port, nil
}

// StopDebugServer gracefully shuts down the debug server.
func (h *Host) StopDebugServer() {
	h.debug.mu.Lock()
	server := h.debug.server
	h.debug.server = nil
	h.debug.listener = nil
	h.debug.mu.Unlock()

	if server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}

// DebugHandler returns the debug endpoints:
//
//	/health               liveness
//	/debug                roots, view counts and queue state
//	/shadow-tree?root=    shadow tree of a root as JSON
//	/native-tree?root=    mounted native views of a root as JSON
//	/wireframe.png?root=  wireframe of a root
//	/frames               frame trace (limit, min_ms, batched_ms, skipped)
//	/runtime              runtime samples (window, limit)
//
// Without a root parameter the lowest root tag is used.
func (h *Host) DebugHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/debug", h.handleDebug)
	mux.HandleFunc("/shadow-tree", h.handleShadowTree)
	mux.HandleFunc("/native-tree", h.handleNativeTree)
	mux.HandleFunc("/wireframe.png", h.handleWireframe)
	mux.HandleFunc("/frames", h.handleFrameTimeline)
	mux.HandleFunc("/runtime", h.handleRuntime)
	return mux
}

// handleHealth returns a simple health check response.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleDebug returns diagnostic info about the host state.
func (h *Host) handleDebug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info := struct {
		Roots          []int   `json:"roots"`
		ShadowNodes    int     `json:"shadowNodes"`
		NativeViews    int     `json:"nativeViews"`
		PendingBatches int     `json:"pendingBatches"`
		NonBatched     int     `json:"nonBatched"`
		Illegal        bool    `json:"illegal,omitempty"`
		LastLayoutMs   float64 `json:"lastLayoutMs"`
	}{
		Roots:          h.RootTags(),
		ShadowNodes:    h.Len(),
		NativeViews:    h.tree.Len(),
		PendingBatches: h.queue.PendingBatches(),
		NonBatched:     h.queue.NonBatchedLen(),
		Illegal:        h.queue.IsIllegal(),
		LastLayoutMs:   durationToMillis(h.LastLayoutTime()),
	}
	writeJSON(w, info)
}

func (h *Host) handleShadowTree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	root, ok := h.rootParam(w, r)
	if !ok {
		return
	}
	snap, err := h.ShadowSnapshot(root)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (h *Host) handleNativeTree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	root, ok := h.rootParam(w, r)
	if !ok {
		return
	}
	snap, err := h.NativeSnapshot(root)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (h *Host) handleWireframe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	root, ok := h.rootParam(w, r)
	if !ok {
		return
	}
	snap, err := h.NativeSnapshot(root)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := EncodeWireframe(&buf, snap); err != nil {
		http.Error(w, fmt.Sprintf("png encode error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

// handleFrameTimeline returns recent frame timing samples as JSON.
func (h *Host) handleFrameTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := h.frames.Snapshot()
	applyFrameFilters(r, &resp)
	writeJSON(w, resp)
}

// handleRuntime returns recent runtime/GC samples as JSON.
func (h *Host) handleRuntime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := struct {
		Samples []RuntimeSample `json:"samples"`
	}{
		Samples: applyRuntimeFilters(r, h.runtime.Snapshot()),
	}
	writeJSON(w, resp)
}

// rootParam resolves the root query parameter. It writes the error
// response itself and returns false when there is none to serve.
func (h *Host) rootParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	value := r.URL.Query().Get("root")
	if value == "" {
		root, ok := h.defaultRoot()
		if !ok {
			http.Error(w, "no root view", http.StatusServiceUnavailable)
		}
		return root, ok
	}
	root, err := strconv.Atoi(value)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid root %q", value), http.StatusBadRequest)
		return 0, false
	}
	return root, true
}

func writeLookupError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if stderrors.Is(err, errors.ErrNotFound) {
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}

// writeJSON encodes to a buffer first so encode errors still produce a
// proper status.
func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, fmt.Sprintf("json encode error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func applyFrameFilters(r *http.Request, resp *FrameTimeline) {
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var filters []func(FrameSample) bool

	if v := parseFloatQuery(r, "min_ms"); v > 0 {
		filters = append(filters, func(s FrameSample) bool { return s.FrameMs >= v })
	}
	if v := parseFloatQuery(r, "non_batched_ms"); v > 0 {
		filters = append(filters, func(s FrameSample) bool { return s.Phases.NonBatchedMs >= v })
	}
	if v := parseFloatQuery(r, "batched_ms"); v > 0 {
		filters = append(filters, func(s FrameSample) bool { return s.Phases.BatchedMs >= v })
	}
	if value := r.URL.Query().Get("skipped"); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil && parsed {
			filters = append(filters, func(s FrameSample) bool { return s.Flags.Skipped })
		}
	}

	if len(filters) > 0 {
		filtered := make([]FrameSample, 0, len(resp.Samples))
	outer:
		for _, sample := range resp.Samples {
			for _, f := range filters {
				if !f(sample) {
					continue outer
				}
			}
			filtered = append(filtered, sample)
		}
		resp.Samples = filtered
	}

	if limit > 0 && len(resp.Samples) > limit {
		resp.Samples = resp.Samples[len(resp.Samples)-limit:]
	}
}

func applyRuntimeFilters(r *http.Request, samples []RuntimeSample) []RuntimeSample {
	windowSeconds := parseFloatQuery(r, "window")
	if windowSeconds > 0 {
		cutoff := time.Now().Add(-time.Duration(windowSeconds * float64(time.Second))).UnixMilli()
		filtered := make([]RuntimeSample, 0, len(samples))
		for _, sample := range samples {
			if sample.Timestamp >= cutoff {
				filtered = append(filtered, sample)
			}
		}
		samples = filtered
	}

	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	return samples
}

func parseFloatQuery(r *http.Request, key string) float64 {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

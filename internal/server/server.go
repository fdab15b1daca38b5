package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/iwvelando/lineup-optimizer/internal/lineup"
	"github.com/iwvelando/lineup-optimizer/internal/metrics"
	"github.com/iwvelando/lineup-optimizer/internal/optimizer"
	"github.com/iwvelando/lineup-optimizer/internal/relay"
	"github.com/iwvelando/lineup-optimizer/internal/result"
	"github.com/iwvelando/lineup-optimizer/internal/roster"
	"github.com/iwvelando/lineup-optimizer/internal/store"
	"github.com/iwvelando/lineup-optimizer/pkg/constants"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// maxRetainedRuns bounds how many finished runs stay queryable.
const maxRetainedRuns = 256

// Options configures a Handler. Zero values select defaults.
type Options struct {
	MaxUploadSize     int64
	MaxConcurrentRuns int
	Version           string
	// Store caches finished results by request. Nil disables caching.
	Store store.Store
	// Metrics records optimizer activity and serves /metrics. Nil disables both.
	Metrics *metrics.Recorder
	// CheckOrigin validates websocket origins. Nil allows same-host only.
	CheckOrigin func(origin string) bool
}

// Handler serves the optimization API. Runs execute in the background and
// are observed by polling or over a websocket.
type Handler struct {
	logger        *zap.Logger
	maxUploadSize int64
	version       string
	runner        *optimizer.Runner
	hub           *relay.Hub
	store         store.Store
	metrics       *metrics.Recorder
	slots         chan struct{}
	mux           *http.ServeMux

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	runs     map[string]*runState
	finished []string
}

type runState struct {
	latest result.Result
	cancel context.CancelFunc
}

type optimizeRequest struct {
	Roster    yaml.Node            `yaml:"roster"`
	Policy    string               `yaml:"policy"`
	Players   []string             `yaml:"players"`
	Optimizer optimizer.Parameters `yaml:"optimizer"`
}

type runResponse struct {
	RunID  string         `json:"runId"`
	Status result.Status  `json:"status"`
	Cached  bool          `json:"cached,omitempty"`
	Resumed bool          `json:"resumed,omitempty"`
	Result *result.Result `json:"result,omitempty"`
}

// NewHandler constructs the HTTP handler that serves the optimization API.
func NewHandler(logger *zap.Logger, opts Options) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = constants.DefaultMaxUploadSizeBytes
	}
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = constants.DefaultMaxConcurrentRuns
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	var recorder optimizer.Recorder
	if opts.Metrics != nil {
		recorder = opts.Metrics
	}
	var checkOrigin func(*http.Request) bool
	if opts.CheckOrigin != nil {
		checkOrigin = func(r *http.Request) bool {
			return opts.CheckOrigin(r.Header.Get("Origin"))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		logger:        logger,
		maxUploadSize: opts.MaxUploadSize,
		version:       trimmedVersion,
		runner:        optimizer.NewRunner(logger, recorder),
		hub:           relay.NewHub(logger, checkOrigin),
		store:         opts.Store,
		metrics:       opts.Metrics,
		slots:         make(chan struct{}, opts.MaxConcurrentRuns),
		ctx:           ctx,
		cancel:        cancel,
		runs:          make(map[string]*runState),
	}

	mux := http.NewServeMux()

	// Start an optimization in the background
	mux.HandleFunc("POST /api/optimize", h.handleOptimize)

	// Project the run time of an optimization
	mux.HandleFunc("POST /api/estimate", h.handleEstimate)

	// Poll, cancel or stream a run
	mux.HandleFunc("GET /api/runs/{id}", h.handleRun)
	mux.HandleFunc("DELETE /api/runs/{id}", h.handleCancel)
	mux.HandleFunc("GET /api/runs/{id}/ws", h.handleStream)

	mux.HandleFunc("GET /api/optimizers", h.handleOptimizers)
	mux.HandleFunc("GET /api/version", h.handleVersion)

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	h.mux = mux
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Shutdown cancels every run and waits for them to publish their final
// snapshots or for ctx to end.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.cancel()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleOptimize"

	req, ok := h.decodeRequest(w, r, op)
	if !ok {
		return
	}
	req.RunID = uuid.NewString()

	initial, err := h.runner.Estimate(req)
	if err != nil {
		h.respondErrorWithOp(w, statusFor(err), err.Error(), op)
		return
	}

	var key string
	if h.store != nil {
		if key, err = store.Key(req.Players, req.Policy, req.IDs, req.Params.Normalize()); err != nil {
			h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
			return
		}
		cached, err := h.store.Load(r.Context(), key)
		switch {
		case err == nil && cached.Settled():
			h.remember(cached, nil)
			h.logger.Info("serving cached result",
				zap.String("op", op),
				zap.String("runId", cached.RunID),
				zap.String("key", key),
			)
			h.writeJSON(w, http.StatusOK, runResponse{RunID: cached.RunID, Status: cached.Status, Cached: true, Result: &cached})
			return
		case err == nil && cached.Status == result.Complete:
			// A run cut short by a budget, a cancel or a failed batch is a
			// checkpoint; continue it instead of answering with it.
			req.Resume = &cached
			h.logger.Info("resuming partial result",
				zap.String("op", op),
				zap.String("previousRunId", cached.RunID),
				zap.String("key", key),
				zap.Int64("completed", cached.CountCompleted),
				zap.Int64("total", cached.CountTotal),
			)
		case err != nil && !errors.Is(err, store.ErrNotFound):
			h.logger.Warn("failed to read result cache",
				zap.String("op", op),
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	select {
	case h.slots <- struct{}{}:
	default:
		h.respondErrorWithOp(w, http.StatusTooManyRequests, "too many optimizations in progress", op)
		return
	}

	ctx, cancel := context.WithCancel(h.ctx)
	h.remember(initial, cancel)

	var persist func(result.Result)
	if h.store != nil {
		persist = store.Sink(context.WithoutCancel(ctx), h.store, key, h.logger)
	}
	sink := func(res result.Result) {
		if persist != nil && res.Status == result.Complete {
			persist(res)
		}
		h.update(res)
		h.hub.Publish(res)
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() { <-h.slots }()
		defer cancel()
		if h.metrics != nil {
			h.metrics.RunStarted()
			defer h.metrics.RunDone()
		}
		if _, err := h.runner.Optimize(ctx, req, sink); err != nil {
			h.failIfOpen(req.RunID, err)
		}
	}()

	h.writeJSON(w, http.StatusAccepted, runResponse{RunID: req.RunID, Status: initial.Status, Resumed: req.Resume != nil, Result: &initial})
}

func (h *Handler) handleEstimate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleEstimate"

	req, ok := h.decodeRequest(w, r, op)
	if !ok {
		return
	}
	est, err := h.runner.Estimate(req)
	if err != nil {
		h.respondErrorWithOp(w, statusFor(err), err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, est)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	res, ok := h.snapshot(r.PathValue("id"))
	if !ok {
		h.respondErrorWithOp(w, http.StatusNotFound, "unknown run", "server.handleRun")
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.mu.Lock()
	st, ok := h.runs[id]
	var res result.Result
	if ok {
		res = st.latest
		if st.cancel != nil {
			st.cancel()
		}
	}
	h.mu.Unlock()

	if !ok {
		h.respondErrorWithOp(w, http.StatusNotFound, "unknown run", "server.handleCancel")
		return
	}
	h.logger.Info("run cancelled",
		zap.String("op", "server.handleCancel"),
		zap.String("runId", id),
	)
	h.writeJSON(w, http.StatusAccepted, res)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, ok := h.snapshot(id)
	if !ok {
		h.respondErrorWithOp(w, http.StatusNotFound, "unknown run", "server.handleStream")
		return
	}
	// Cached and evicted runs never reach the hub; seed it so the
	// subscriber still receives the final snapshot.
	if res.Status.Terminal() && h.hub.Subscribers(id) == 0 {
		h.hub.Publish(res)
	}
	h.hub.Serve(w, r, id)
}

func (h *Handler) handleOptimizers(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string][]string{
		"optimizers": optimizer.Names(),
		"policies": {
			lineup.Standard.String(),
			lineup.AlternatingGender.String(),
			lineup.NoConsecutiveFemales.String(),
		},
	})
}

func (h *Handler) handleVersion(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// decodeRequest parses a YAML or JSON optimization request. It responds
// itself on failure.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request, op string) (optimizer.Request, bool) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds %d bytes", h.maxUploadSize), op)
			return optimizer.Request{}, false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to read request: %v", err), op)
		return optimizer.Request{}, false
	}

	var body optimizeRequest
	if err := yaml.Unmarshal(data, &body); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to parse request: %v", err), op)
		return optimizer.Request{}, false
	}
	if body.Roster.Kind == 0 {
		h.respondErrorWithOp(w, http.StatusBadRequest, "missing roster", op)
		return optimizer.Request{}, false
	}

	rosterYAML, err := yaml.Marshal(&body.Roster)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to read roster: %v", err), op)
		return optimizer.Request{}, false
	}
	team, err := roster.Load(bytes.NewReader(rosterYAML))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return optimizer.Request{}, false
	}
	policy, err := lineup.ParsePolicy(body.Policy)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return optimizer.Request{}, false
	}

	return optimizer.Request{
		Players: team.Players,
		Policy:  policy,
		IDs:     body.Players,
		Params:  body.Optimizer,
	}, true
}

func (h *Handler) remember(res result.Result, cancel context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.runs[res.RunID]; !ok && res.Status.Terminal() {
		h.finished = append(h.finished, res.RunID)
	}
	h.runs[res.RunID] = &runState{latest: res, cancel: cancel}
	h.evict()
}

func (h *Handler) update(res result.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.runs[res.RunID]
	if !ok || st.latest.Status.Terminal() {
		return
	}
	st.latest = res
	if res.Status.Terminal() {
		h.finished = append(h.finished, res.RunID)
		h.evict()
	}
}

// failIfOpen closes out a run whose optimizer returned before publishing a
// terminal snapshot.
func (h *Handler) failIfOpen(runID string, cause error) {
	res, ok := h.snapshot(runID)
	if !ok || res.Status.Terminal() {
		return
	}
	failed, err := res.Fail(res.ElapsedMs, cause)
	if err != nil {
		return
	}
	h.update(failed)
	h.hub.Publish(failed)
}

func (h *Handler) evict() {
	for len(h.finished) > maxRetainedRuns {
		id := h.finished[0]
		h.finished = h.finished[1:]
		delete(h.runs, id)
		h.hub.Forget(id)
	}
}

func (h *Handler) snapshot(id string) (result.Result, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.runs[id]
	if !ok {
		return result.Result{}, false
	}
	return st.latest, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, optimizer.ErrInvalidArgument),
		errors.Is(err, optimizer.ErrOverflow),
		errors.Is(err, optimizer.ErrEmptyRosterSelection):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	if h.logger != nil {
		h.logger.Error("request failed",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("error", msg),
		)
	}

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && h.logger != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

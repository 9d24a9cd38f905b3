// Package server exposes pulse optimization as an HTTP job service.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/openpulse/pulseopt/internal/config"
	"github.com/openpulse/pulseopt/internal/optimization"
	"github.com/openpulse/pulseopt/internal/problem"
	"github.com/openpulse/pulseopt/internal/sim"
)

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// JobState tracks one optimization job from submission to completion.
// Access is guarded by the server's job mutex.
type JobState struct {
	ID        string
	Status    string
	Method    string
	StartTime time.Time
	EndTime   *time.Time
	Result    *ResultView
	Error     string
}

// ResultView is the JSON shape of a finished optimization.
type ResultView struct {
	FinalCosts        []float64   `json:"final_costs"`
	Indices           []string    `json:"indices"`
	FinalParameters   [][]float64 `json:"final_parameters"`
	FinalGradNorm     float64     `json:"final_grad_norm"`
	NumIter           int         `json:"num_iter"`
	TerminationReason string      `json:"termination_reason,omitempty"`
	Status            int         `json:"status"`
	WallTime          string      `json:"wall_time,omitempty"`
}

// NewResultView converts an optimization result for serialization.
func NewResultView(res *optimization.Result) *ResultView {
	view := &ResultView{
		FinalCosts:        res.FinalCosts,
		Indices:           res.Indices,
		FinalParameters:   pulseRows(res.FinalParameters),
		FinalGradNorm:     res.FinalGradNorm,
		NumIter:           res.NumIter,
		TerminationReason: res.TerminationReason,
		Status:            res.Status,
	}
	if res.Stats != nil && !res.Stats.EndTime.IsZero() {
		view.WallTime = res.Stats.EndTime.Sub(res.Stats.StartTime).String()
	}
	return view
}

func pulseRows(p *mat.Dense) [][]float64 {
	if p == nil {
		return nil
	}
	nt, nc := p.Dims()
	rows := make([][]float64, nt)
	for t := 0; t < nt; t++ {
		rows[t] = make([]float64, nc)
		for c := 0; c < nc; c++ {
			rows[t][c] = p.At(t, c)
		}
	}
	return rows
}

// Server manages optimization jobs and serves their state over HTTP.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	jobs   map[string]*JobState
	jobsMu sync.RWMutex
	// sem bounds the number of concurrently running jobs.
	sem chan struct{}
}

// NewServer creates a new server instance with the given config and
// logger.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	workers := cfg.Optimization.MaxConcurrentJobs
	if workers <= 0 {
		workers = 1
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		jobs:   make(map[string]*JobState),
		sem:    make(chan struct{}, workers),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleJobStatus)
	})
}

// handleOptimize accepts a problem spec, registers a job and starts it
// in the background.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var spec problem.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := spec.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The service wall-time cap applies unless the spec sets its own.
	if s.cfg.Optimization.MaxWallTime > 0 {
		if spec.Termination == nil {
			spec.Termination = &problem.TerminationSpec{}
		}
		if spec.Termination.MaxWallTime == "" {
			spec.Termination.MaxWallTime = s.cfg.Optimization.MaxWallTime.String()
		}
	}

	id := fmt.Sprintf("job_%d", time.Now().UnixNano())
	state := &JobState{
		ID:        id,
		Status:    StatusPending,
		Method:    spec.Method,
		StartTime: time.Now(),
	}

	s.jobsMu.Lock()
	s.jobs[id] = state
	s.jobsMu.Unlock()

	go s.runJob(id, &spec)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"job_id": id,
		"status": StatusPending,
	})
}

// handleJobStatus reports the state of one job.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.jobsMu.RLock()
	state, exists := s.jobs[id]
	var view jobView
	if exists {
		view = newJobView(state)
	}
	s.jobsMu.RUnlock()

	if !exists {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

// handleListJobs reports the state of all known jobs.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.jobsMu.RLock()
	views := make([]jobView, 0, len(s.jobs))
	for _, state := range s.jobs {
		views = append(views, newJobView(state))
	}
	s.jobsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"jobs": views})
}

type jobView struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Method    string      `json:"method,omitempty"`
	StartTime string      `json:"start_time"`
	EndTime   string      `json:"end_time,omitempty"`
	Result    *ResultView `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func newJobView(state *JobState) jobView {
	v := jobView{
		ID:        state.ID,
		Status:    state.Status,
		Method:    state.Method,
		StartTime: state.StartTime.Format(time.RFC3339),
		Result:    state.Result,
		Error:     state.Error,
	}
	if state.EndTime != nil {
		v.EndTime = state.EndTime.Format(time.RFC3339)
	}
	return v
}

// runJob executes one optimization job in the background, bounded by
// the concurrency semaphore.
func (s *Server) runJob(id string, spec *problem.Spec) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	s.setJobStatus(id, StatusRunning)
	start := time.Now()

	simulator := sim.NewTargetSimulator(spec.TargetPulse()).WithStats()
	opt, err := spec.Build(simulator)
	if err != nil {
		s.finishJob(id, nil, err, start)
		return
	}

	res, err := opt.RunOptimization(spec.InitialPulse())
	s.finishJob(id, res, err, start)
}

func (s *Server) setJobStatus(id, status string) {
	s.jobsMu.Lock()
	if state, ok := s.jobs[id]; ok {
		state.Status = status
	}
	s.jobsMu.Unlock()
}

func (s *Server) finishJob(id string, res *optimization.Result, err error, start time.Time) {
	duration := time.Since(start)
	now := time.Now()

	s.jobsMu.Lock()
	state, ok := s.jobs[id]
	if ok {
		state.EndTime = &now
		if err != nil {
			state.Status = StatusFailed
			state.Error = err.Error()
		} else {
			state.Status = StatusCompleted
			state.Result = NewResultView(res)
		}
	}
	s.jobsMu.Unlock()
	if !ok {
		return
	}

	if err != nil {
		s.logger.Error("optimization job failed",
			zap.String("job_id", id),
			zap.Duration("duration", duration),
			zap.Error(err))
		observeJob(state.Method, StatusFailed, duration, 0)
		return
	}

	s.logger.Info("optimization job completed",
		zap.String("job_id", id),
		zap.Duration("duration", duration),
		zap.Int("num_iter", res.NumIter),
		zap.Int("status", res.Status))
	observeJob(state.Method, StatusCompleted, duration, res.NumIter)
}

func (s *Server) respondError(w http.ResponseWriter, code int, message string) {
	s.logger.Error("request error",
		zap.Int("status", code),
		zap.String("message", message))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

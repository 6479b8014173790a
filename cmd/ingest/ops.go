package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/pipeline"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// opsServer exposes run history and a manual trigger next to the cron schedule.
type opsServer struct {
	ctx     context.Context
	runner  *pipeline.Runner
	running atomic.Bool
	wg      sync.WaitGroup
	now     func() time.Time
}

func newOpsServer(ctx context.Context, runner *pipeline.Runner) *opsServer {
	return &opsServer{ctx: ctx, runner: runner, now: time.Now}
}

func (s *opsServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.listRuns).Methods(http.MethodGet)
	r.HandleFunc("/trigger", s.trigger).Methods(http.MethodPost)
	return r
}

// start launches a run unless one is already active. done closes when it ends.
func (s *opsServer) start(trigger string) (runID string, done <-chan struct{}, ok bool) {
	if !s.running.CompareAndSwap(false, true) {
		return "", nil, false
	}

	runID = pipeline.NewRunID(trigger, s.now())
	ch := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(ch)
		defer s.running.Store(false)

		if _, err := s.runner.Run(s.ctx, runID); err != nil {
			log.Error().Err(err).Str("run_id", runID).Msg("Triggered run failed")
		}
	}()
	return runID, ch, true
}

func (s *opsServer) scheduledRun() {
	runID, done, ok := s.start("scheduled")
	if !ok {
		log.Warn().Msg("Skipping scheduled run, previous run still active")
		return
	}
	log.Info().Str("run_id", runID).Msg("Scheduled run started")
	<-done
}

func (s *opsServer) wait() {
	s.wg.Wait()
}

func (s *opsServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": s.running.Load(),
	})
}

func (s *opsServer) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := s.runner.Recorder().RecentRuns(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list runs")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list runs"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *opsServer) trigger(w http.ResponseWriter, r *http.Request) {
	runID, _, ok := s.start("manual")
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": pipeline.ErrRunInProgress.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

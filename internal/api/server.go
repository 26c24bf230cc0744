// Package api serves persisted processing runs over HTTP: run metadata as
// JSON, velocity fields as .npy downloads and per-time-step field charts.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/banshee-data/eventflow/internal/ebiv/field"
	"github.com/banshee-data/eventflow/internal/ebiv/render"
	"github.com/banshee-data/eventflow/internal/ebiv/storage/sqlite"
	"github.com/banshee-data/eventflow/internal/httputil"
	"github.com/banshee-data/eventflow/internal/metrics"
	"github.com/banshee-data/eventflow/internal/security"
	"github.com/banshee-data/eventflow/internal/units"
)

// defaultListLimit caps GET /api/runs without ?limit.
const defaultListLimit = 50

// Server exposes a RunStore.
type Server struct {
	runs    *sqlite.RunStore
	metrics *metrics.Recorder
}

// NewServer returns a Server over runs. rec may be nil, in which case
// /metrics is not mounted.
func NewServer(runs *sqlite.RunStore, rec *metrics.Recorder) *Server {
	return &Server{runs: runs, metrics: rec}
}

// ServeMux returns the routes:
//
//	GET    /api/runs?limit=N
//	GET    /api/runs/{id}?units=px/ms|px/us|px/s
//	DELETE /api/runs/{id}
//	GET    /api/runs/{id}/field.npy
//	GET    /api/runs/{id}/chart?t=N
//	GET    /metrics
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/{id}", s.run)
	mux.HandleFunc("/api/runs/{id}/field.npy", s.downloadField)
	mux.HandleFunc("/api/runs/{id}/chart", s.fieldChart)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	limit, err := httputil.QueryInt(r, "limit", defaultListLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	runs, err := s.runs.List(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*sqlite.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		unit := r.URL.Query().Get("units")
		if unit == "" {
			unit = units.PxPerMs
		}
		if !units.IsValid(unit) {
			httputil.BadRequest(w, fmt.Sprintf("invalid units %q, must be one of: %s", unit, units.GetValidUnitsString()))
			return
		}
		run, err := s.runs.Get(id)
		if err != nil {
			s.writeStoreError(w, id, err)
			return
		}
		f, _, err := s.runs.LoadField(id)
		if err != nil {
			s.writeStoreError(w, id, err)
			return
		}
		v, err := summarize(f, unit)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, runDetail{Run: run, Velocity: v})
	case http.MethodDelete:
		if err := s.runs.Delete(id); err != nil {
			s.writeStoreError(w, id, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

// runDetail is a run with a summary of its velocity field.
type runDetail struct {
	*sqlite.Run
	Velocity velocitySummary `json:"velocity"`
}

// velocitySummary aggregates the defined vectors of a field over all time
// steps, in Units.
type velocitySummary struct {
	Units    string  `json:"units"`
	Defined  int     `json:"defined"`
	MeanVX   float64 `json:"mean_vx"`
	MeanVY   float64 `json:"mean_vy"`
	MaxSpeed float64 `json:"max_speed"`
}

func summarize(f *field.Field, unit string) (velocitySummary, error) {
	v := velocitySummary{Units: unit}
	for t := 0; t < f.NT; t++ {
		for y := 0; y < f.NY; y++ {
			for x := 0; x < f.NX; x++ {
				vec := f.At(t, y, x)
				if math.IsNaN(vec.VX) || math.IsNaN(vec.VY) {
					continue
				}
				v.Defined++
				v.MeanVX += vec.VX
				v.MeanVY += vec.VY
				v.MaxSpeed = max(v.MaxSpeed, math.Hypot(vec.VX, vec.VY))
			}
		}
	}
	if v.Defined > 0 {
		v.MeanVX /= float64(v.Defined)
		v.MeanVY /= float64(v.Defined)
	}
	var err error
	for _, p := range []*float64{&v.MeanVX, &v.MeanVY, &v.MaxSpeed} {
		if *p, err = units.ConvertVelocity(*p, unit); err != nil {
			return velocitySummary{}, err
		}
	}
	return v, nil
}

// loadField fetches run id and its field, writing the error response
// itself when ok is false.
func (s *Server) loadField(w http.ResponseWriter, r *http.Request) (run *sqlite.Run, f *field.Field, ok bool) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return nil, nil, false
	}
	id := r.PathValue("id")
	run, err := s.runs.Get(id)
	if err != nil {
		s.writeStoreError(w, id, err)
		return nil, nil, false
	}
	f, _, err = s.runs.LoadField(id)
	if err != nil {
		s.writeStoreError(w, id, err)
		return nil, nil, false
	}
	return run, f, true
}

func (s *Server) downloadField(w http.ResponseWriter, r *http.Request) {
	run, f, ok := s.loadField(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := field.WriteNPY(&buf, f); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to encode field: %v", err))
		return
	}
	name := security.DownloadName(run.SourceFile, shortID(run.RunID), ".npy")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(buf.Bytes())
}

func (s *Server) fieldChart(w http.ResponseWriter, r *http.Request) {
	run, f, ok := s.loadField(w, r)
	if !ok {
		return
	}
	t, err := httputil.QueryInt(r, "t", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if t >= f.NT {
		httputil.BadRequest(w, fmt.Sprintf("time step %d out of range [0,%d)", t, f.NT))
		return
	}
	title := fmt.Sprintf("%s %s", run.Method, shortID(run.RunID))
	if t < len(run.Times) {
		title += fmt.Sprintf(" t=%dµs", run.Times[t])
	}
	var buf bytes.Buffer
	if err := render.FieldChart(&buf, f, t, title); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) writeStoreError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, sqlite.ErrRunNotFound) {
		httputil.NotFound(w, fmt.Sprintf("run %q not found", id))
		return
	}
	httputil.InternalServerError(w, err.Error())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

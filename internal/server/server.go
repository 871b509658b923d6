// Package server exposes inspect, run, predict and the artifact registry
// over HTTP with JSON responses.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/dataset"
	"github.com/YuminosukeSato/mlplayground/estimator"
	"github.com/YuminosukeSato/mlplayground/internal/registry"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/pkg/log"
	"github.com/YuminosukeSato/mlplayground/report"
	"github.com/YuminosukeSato/mlplayground/run"
)

// Options configures a Server.
type Options struct {
	MaxUploadBytes int64
	PreviewRows    int
}

// Server holds the registry and serves the API.
type Server struct {
	store  *registry.Store
	opts   Options
	logger log.Logger
	mux    *http.ServeMux
}

// New builds a Server on store.
func New(store *registry.Store, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = 5
	}
	s := &Server{store: store, opts: opts, logger: log.GetLoggerWithName("server"), mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/estimators", s.handleEstimators)
	s.mux.HandleFunc("POST /api/inspect", s.handleInspect)
	s.mux.HandleFunc("POST /api/run", s.handleRun)
	s.mux.HandleFunc("GET /api/artifacts", s.handleList)
	s.mux.HandleFunc("GET /api/artifacts/{id}", s.handleDownload)
	s.mux.HandleFunc("DELETE /api/artifacts/{id}", s.handleDelete)
	s.mux.HandleFunc("POST /api/artifacts/{id}/predict", s.handlePredict)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Debug("Request served", "method", r.Method, "path", r.URL.Path,
		log.DurationMsKey, time.Since(start).Milliseconds())
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("Listening", "addr", addr)

	select {
	case err := <-errc:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type estimatorInfo struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Problem string   `json:"problem"`
	Aliases []string `json:"aliases"`
}

func (s *Server) handleEstimators(w http.ResponseWriter, _ *http.Request) {
	specs := estimator.List()
	out := make([]estimatorInfo, len(specs))
	for i, sp := range specs {
		out[i] = estimatorInfo{ID: sp.ID, Name: sp.Name, Problem: string(sp.Problem), Aliases: sp.Aliases}
	}
	writeJSON(w, http.StatusOK, out)
}

type columnInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Missing int    `json:"missing"`
}

type inspectResponse struct {
	Rows           int          `json:"rows"`
	Columns        []columnInfo `json:"columns"`
	ColumnSelector []string     `json:"column_selector"`
	IDSelector     []string     `json:"id_selector"`
	Preview        [][]string   `json:"preview"`
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	l, err := dataset.Load(r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := inspectResponse{
		Rows:           l.Frame.NRows(),
		ColumnSelector: l.ColumnSelector,
		IDSelector:     l.IDSelector,
		Preview:        dataset.Preview(l.Frame, s.opts.PreviewRows).Records(),
	}
	for _, c := range l.Frame.Columns() {
		resp.Columns = append(resp.Columns, columnInfo{Name: c.Name, Kind: c.Kind.String(), Missing: c.MissingCount()})
	}
	writeJSON(w, http.StatusOK, resp)
}

type runResponse struct {
	Artifact  *registry.Artifact `json:"artifact"`
	Problem   string             `json:"problem"`
	Train     report.Scores      `json:"train"`
	Test      report.Scores      `json:"test"`
	TrainRows int                `json:"train_rows"`
	TestRows  int                `json:"test_rows"`
	FitMs     int64              `json:"fit_ms"`
}

// handleRun expects a multipart form with a "file" CSV part and a "config"
// JSON (or YAML) part holding a run configuration.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.writeError(w, errors.Wrap(err, "read run upload"))
			return
		}
		s.writeError(w, errors.NewValueError("run", "expected a multipart form: "+err.Error()))
		return
	}
	cfg, err := s.runConfig(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, errors.NewValueError("run", "missing file part"))
		return
	}
	defer file.Close()

	l, err := dataset.Load(file)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ds, err := dataset.New(l.Frame, cfg.Target)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := run.RunModel(r.Context(), ds, cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ev, err := report.Evaluate(res)
	if err != nil {
		s.writeError(w, err)
		return
	}
	meta, err := s.store.SaveRun(r.Context(), r.FormValue("name"), res, ev.Test.Map())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, runResponse{
		Artifact:  meta,
		Problem:   string(ev.Problem),
		Train:     ev.Train,
		Test:      ev.Test,
		TrainRows: res.XTrain.NRows(),
		TestRows:  res.XTest.NRows(),
		FitMs:     res.FitDuration.Milliseconds(),
	})
}

func (s *Server) runConfig(r *http.Request) (run.Config, error) {
	raw := r.FormValue("config")
	if raw == "" {
		return run.Config{}, errors.NewValidationError("config", "a run configuration is required", raw)
	}
	cfg, err := run.ParseConfig([]byte(raw))
	if err != nil {
		return run.Config{}, err
	}
	return cfg, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []registry.Artifact{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	blob, err := s.store.Blob(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".gob"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePredict scores a CSV body with a stored pipeline and returns the
// input rows with a prediction column appended, as CSV.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	l, err := dataset.Load(r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	pred, err := p.Predict(l.Frame)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, err := l.Frame.WithColumn(pred.Rename("prediction"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := frame.WriteCSV(&buf, out); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, &buf)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps configuration and input errors to 400 and unknown
// artifacts to 404.
func statusOf(err error) int {
	var (
		ve  *errors.ValidationError
		val *errors.ValueError
		de  *errors.DimensionError
		pe  *errors.ParseError
		dc  *errors.DuplicateColumnError
		ue  *errors.UnknownEstimatorError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errors.ErrMissingColumn),
		errors.As(err, &ve), errors.As(err, &val), errors.As(err, &de),
		errors.As(err, &pe), errors.As(err, &dc), errors.As(err, &ue):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", err)
	} else {
		s.logger.Debug("Request rejected", log.ErrAttrKey, err.Error())
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

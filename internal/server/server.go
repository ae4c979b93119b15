// Package server is the HTTP surface: the provider webhook, the upload and
// configuration endpoints, and the per-record view. Routing stays on
// net/http; the handlers are thin, and everything interesting happens in
// internal/ingest.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"melaknowma/internal/ingest"
	"melaknowma/internal/jobs"
	"melaknowma/internal/objectstore"
	"melaknowma/internal/record"
	"melaknowma/internal/store"
	"melaknowma/internal/types"
)

// maxUploadBytes bounds a submitted image.
const maxUploadBytes = 16 << 20

// Pusher submits a record's work units to the crowdsourcing provider.
type Pusher interface {
	Push(ctx context.Context, cfg map[types.Category]string, rec *types.Record) error
}

// Server wires the HTTP handlers to the core.
type Server struct {
	handler *ingest.Handler
	repo    *record.Repository
	jobs    *jobs.Config
	crowd   Pusher
	objects objectstore.Store
	store   store.Store
	logger  *zap.Logger
	mux     *http.ServeMux
}

// Options carries the collaborators behind the HTTP surface.
type Options struct {
	Handler *ingest.Handler
	Repo    *record.Repository
	Jobs    *jobs.Config
	Crowd   Pusher
	Objects objectstore.Store
	Store   store.Store
	Logger  *zap.Logger
	// ObjectsDir, when non-empty, is served under /objects/ so the fs
	// object-store backend's references resolve.
	ObjectsDir string
}

// New builds the server and its routes.
func New(opts Options) *Server {
	s := &Server{
		handler: opts.Handler,
		repo:    opts.Repo,
		jobs:    opts.Jobs,
		crowd:   opts.Crowd,
		objects: opts.Objects,
		store:   opts.Store,
		logger:  opts.Logger,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /crowdflower", s.handleWebhook)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /api/upload", s.handleAPIUpload)
	s.mux.HandleFunc("POST /configurate", s.handleConfigure)
	s.mux.HandleFunc("GET /image/{id}", s.handleShow)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if opts.ObjectsDir != "" {
		s.mux.Handle("GET /objects/", http.StripPrefix("/objects/", http.FileServer(http.Dir(opts.ObjectsDir))))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleWebhook accepts the provider's result notification. The provider
// sends either a JSON body or a form whose "payload" field is a JSON string;
// both decode to the same notification.
//
// Structural problems get a 200: the provider redelivers on non-2xx, and
// redelivering an unparsable or unresolvable payload can never succeed.
// Transient store and lock failures get a 503 so the provider does retry;
// processing is idempotent, so redelivery is safe.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	n, err := s.decodeNotification(r)
	if err != nil {
		s.logger.Warn("malformed webhook payload dropped", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	disposition, err := s.handler.Process(r.Context(), n)
	if err != nil {
		if errors.Is(err, store.ErrLockTimeout) || errors.Is(err, store.ErrUnavailable) {
			s.logger.Warn("transient failure processing notification, provider should retry",
				zap.String("record_id", n.Data.RecordID), zap.Error(err))
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		s.logger.Error("processing notification", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": string(disposition)})
}

func (s *Server) decodeNotification(r *http.Request) (*types.Notification, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
		return types.ParseNotification(body)
	}

	// Form delivery: "signal" rides alongside a "payload" field that is
	// itself a JSON document.
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parsing form: %w", err)
	}
	payload := r.PostFormValue("payload")
	if payload == "" {
		return nil, fmt.Errorf("form without payload field")
	}
	n, err := types.ParseNotification([]byte(payload))
	if err != nil {
		return nil, err
	}
	if signal := r.PostFormValue("signal"); signal != "" {
		n.Signal = signal
	}
	return n, nil
}

// handleUpload accepts a multipart image, stores the bytes, registers the
// record, and pushes one unit per configured category to the provider.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "malformed multipart form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("image_mole")
	if err != nil {
		http.Error(w, "missing image_mole file", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		http.Error(w, "reading upload", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	rec := types.NewRecord(data)

	ref, err := s.objects.Put(ctx, rec.ID, data, http.DetectContentType(data))
	if err != nil {
		s.logger.Error("storing image bytes", zap.String("record_id", rec.ID), zap.Error(err))
		http.Error(w, "object store failure", http.StatusBadGateway)
		return
	}
	rec.DataRef = ref

	if err := s.repo.Create(ctx, rec); err != nil {
		s.logger.Error("creating record", zap.String("record_id", rec.ID), zap.Error(err))
		http.Error(w, "store failure", http.StatusServiceUnavailable)
		return
	}

	cfg, err := s.jobs.Snapshot(ctx)
	if err != nil {
		s.logger.Error("reading job configuration", zap.Error(err))
		http.Error(w, "store failure", http.StatusServiceUnavailable)
		return
	}
	if err := s.crowd.Push(ctx, cfg, rec); err != nil {
		// The record exists and the image is stored; the push can be redone
		// by re-uploading the same bytes (same id, same state).
		s.logger.Error("pushing units to provider", zap.String("record_id", rec.ID), zap.Error(err))
		http.Error(w, "provider failure", http.StatusBadGateway)
		return
	}

	http.Redirect(w, r, "/image/"+rec.ID, http.StatusSeeOther)
}

// handleAPIUpload is the data-only ingestion path: raw image bytes in the
// body, an optional ground-truth label in the disease_real query parameter.
// The whole body is the image, so the label cannot ride in a form field.
// The record is registered without attaching stored bytes; DataRef stays
// empty until a file upload for the same content arrives.
func (s *Server) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil || len(data) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	rec := types.NewRecord(data)
	rec.GroundTruth = r.URL.Query().Get("disease_real")

	if err := s.repo.Create(r.Context(), rec); err != nil {
		s.logger.Error("creating record", zap.String("record_id", rec.ID), zap.Error(err))
		http.Error(w, "store failure", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"id": rec.ID})
}

// handleConfigure overwrites the category -> external job id mapping from
// form values named after the categories.
func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	mapping := make(map[types.Category]string)
	for _, category := range types.Categories {
		if jobID := r.PostFormValue(string(category)); jobID != "" {
			mapping[category] = jobID
		}
	}
	if len(mapping) == 0 {
		http.Error(w, "no category mappings given", http.StatusBadRequest)
		return
	}
	if err := s.jobs.Configure(r.Context(), mapping); err != nil {
		s.logger.Error("persisting job configuration", zap.Error(err))
		http.Error(w, "store failure", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleShow renders a record as JSON.
func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.repo.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("loading record", zap.String("record_id", id), zap.Error(err))
		http.Error(w, "store failure", http.StatusServiceUnavailable)
		return
	}
	if rec == nil {
		http.Error(w, "no such record", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		http.Error(w, "store unreachable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

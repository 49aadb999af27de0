// Package handler implements the HTTP API of the forensics service.
//
// Endpoints:
//
//	GET  /                 service description
//	GET  /healthz          liveness and storage check
//	GET  /v1/signals       registered signal modules and their weights
//	POST /v1/analyze       analyze an upload, a raw body or a remote URL
//	GET  /v1/results/{id}  fetch a stored analysis
//
// Successful responses use the envelope
// {success, apiVersion, timestamp, id, data}; failures use
// middleware.ErrorEnvelope.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/humanmark/forensics/internal/middleware"
	"github.com/humanmark/forensics/internal/pixel"
	"github.com/humanmark/forensics/internal/repository"
	"github.com/humanmark/forensics/internal/service"
	"github.com/humanmark/forensics/pkg/logger"
)

// Defaults applied by New when the Config leaves them zero.
const (
	DefaultMaxUploadSize = 100 << 20
	DefaultFetchTimeout  = 15 * time.Second
)

// Config holds the handler's collaborators.
type Config struct {
	Detector   service.Detector
	Repository repository.Repository
	Logger     *logger.Logger

	// Catalogue lists the signal modules for GET /v1/signals. Nil serves
	// an empty list.
	Catalogue func() []service.CatalogueEntry

	MaxUploadSize int64
	FetchTimeout  time.Duration

	// AllowPrivateFetch lets URL analysis reach loopback, private and
	// link-local addresses. Off by default.
	AllowPrivateFetch bool

	// HTTPClient fetches remote URLs. Defaults to a client with FetchTimeout
	// that only dials public addresses unless AllowPrivateFetch is set. A
	// client supplied here is used as is.
	HTTPClient *http.Client
}

// Handler serves the API.
type Handler struct {
	detector   service.Detector
	repo       repository.Repository
	logger     *logger.Logger
	catalogue  func() []service.CatalogueEntry
	maxUpload  int64
	fetchLimit time.Duration
	client     *http.Client
}

// New creates a Handler.
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.NopLogger()
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = newFetchClient(cfg.FetchTimeout, cfg.AllowPrivateFetch)
	}
	if cfg.Catalogue == nil {
		cfg.Catalogue = func() []service.CatalogueEntry { return nil }
	}

	return &Handler{
		detector:   cfg.Detector,
		repo:       cfg.Repository,
		logger:     cfg.Logger,
		catalogue:  cfg.Catalogue,
		maxUpload:  cfg.MaxUploadSize,
		fetchLimit: cfg.FetchTimeout,
		client:     cfg.HTTPClient,
	}
}

// Routes returns a chi router serving every endpoint behind mws.
func (h *Handler) Routes(mws ...middleware.Middleware) http.Handler {
	r := chi.NewRouter()
	for _, mw := range mws {
		r.Use(mw)
	}

	r.Get("/", h.Index)
	r.Get("/healthz", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/signals", h.Signals)
		r.With(middleware.MaxBodySize(h.maxUpload)).Post("/analyze", h.Analyze)
		r.Get("/results/{id}", h.GetResult)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	return r
}

// Envelope wraps every successful response.
type Envelope struct {
	Success    bool      `json:"success"`
	APIVersion string    `json:"apiVersion"`
	Timestamp  time.Time `json:"timestamp"`
	ID         string    `json:"id,omitempty"`
	Data       any       `json:"data"`
}

// AnalyzeRequest is the JSON body form of POST /v1/analyze.
type AnalyzeRequest struct {
	URL string `json:"url"`
}

// Analyze handles POST /v1/analyze. It accepts a multipart upload in the
// "file" field, a JSON {"url": ...} body, or the raw media bytes.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithContext(r.Context())

	input, err := h.readInput(r)
	if err != nil {
		h.writeInputError(w, err)
		return
	}
	if len(input.Data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "EMPTY_CONTENT", "no content provided")
		return
	}

	result, err := h.detector.Analyze(r.Context(), input)
	if err != nil {
		status, code := errorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error("analysis failed", "error", err, "filename", input.Filename)
		} else {
			log.Info("analysis rejected", "error", err, "filename", input.Filename, "status", status)
		}
		middleware.WriteError(w, status, code, err.Error())
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		log.Error("encode result", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to encode result")
		return
	}

	rec, err := h.repo.Save(r.Context(), repository.Record{
		ContentHash: service.ContentHash(input.Data),
		ContentType: string(service.DetectContentType(input)),
		Verdict:     string(result.Verdict),
		AIScore:     result.AIScore,
		Confidence:  result.Confidence,
		Result:      payload,
	})
	if err != nil {
		log.Error("save result", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to store result")
		return
	}

	log.Info("analysis complete",
		"id", rec.ID,
		"verdict", result.Verdict,
		"ai_score", result.AIScore,
		"confidence", result.Confidence,
		"processing_time_ms", result.ProcessingTimeMs,
	)

	writeJSON(w, http.StatusOK, Envelope{
		Success:    true,
		APIVersion: middleware.APIVersion,
		Timestamp:  rec.CreatedAt,
		ID:         rec.ID,
		Data:       json.RawMessage(payload),
	})
}

// inputError is a client mistake detected while reading the request.
type inputError struct {
	status  int
	code    string
	message string
}

func (e *inputError) Error() string { return e.message }

func badRequest(code, format string, args ...any) error {
	return &inputError{status: http.StatusBadRequest, code: code, message: fmt.Sprintf(format, args...)}
}

func (h *Handler) writeInputError(w http.ResponseWriter, err error) {
	var ie *inputError
	if errors.As(err, &ie) {
		middleware.WriteError(w, ie.status, ie.code, ie.message)
		return
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			fmt.Sprintf("content exceeds %d bytes", h.maxUpload))
		return
	}
	middleware.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
}

func (h *Handler) readInput(r *http.Request) (service.DetectionInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		return h.readMultipart(r)
	case "application/json":
		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return service.DetectionInput{}, badRequest("EMPTY_CONTENT", "no content provided")
			}
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return service.DetectionInput{}, err
			}
			return service.DetectionInput{}, badRequest("INVALID_JSON", "invalid JSON body: %v", err)
		}
		if req.URL == "" {
			return service.DetectionInput{}, badRequest("MISSING_URL", "url is required")
		}
		return h.fetch(r.Context(), req.URL)
	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return service.DetectionInput{}, err
		}
		return service.DetectionInput{
			Data:     data,
			Filename: r.URL.Query().Get("filename"),
			MIME:     r.Header.Get("Content-Type"),
		}, nil
	}
}

func (h *Handler) readMultipart(r *http.Request) (service.DetectionInput, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return service.DetectionInput{}, err
		}
		return service.DetectionInput{}, badRequest("INVALID_FORM", "invalid multipart form: %v", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return service.DetectionInput{}, badRequest("MISSING_FILE", "multipart field \"file\" is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return service.DetectionInput{}, err
	}
	return service.DetectionInput{
		Data:     data,
		Filename: header.Filename,
		MIME:     header.Header.Get("Content-Type"),
	}, nil
}

// fetch downloads raw into memory, refusing bodies over the upload limit.
func (h *Handler) fetch(ctx context.Context, raw string) (service.DetectionInput, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return service.DetectionInput{}, badRequest("INVALID_URL", "url must be an absolute http(s) URL")
	}

	ctx, cancel := context.WithTimeout(ctx, h.fetchLimit)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return service.DetectionInput{}, badRequest("INVALID_URL", "invalid url: %v", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, errForbiddenAddress) {
			return service.DetectionInput{}, &inputError{status: http.StatusForbidden, code: "URL_FORBIDDEN", message: "url resolves to a non-public address"}
		}
		return service.DetectionInput{}, &inputError{status: http.StatusBadGateway, code: "FETCH_FAILED", message: fmt.Sprintf("fetch url: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return service.DetectionInput{}, &inputError{status: http.StatusBadGateway, code: "FETCH_FAILED", message: fmt.Sprintf("fetch url: upstream returned %d", resp.StatusCode)}
	}
	if resp.ContentLength > h.maxUpload {
		return service.DetectionInput{}, h.tooLarge()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxUpload+1))
	if err != nil {
		return service.DetectionInput{}, &inputError{status: http.StatusBadGateway, code: "FETCH_FAILED", message: fmt.Sprintf("read url body: %v", err)}
	}
	if int64(len(data)) > h.maxUpload {
		return service.DetectionInput{}, h.tooLarge()
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = ""
	}
	return service.DetectionInput{
		URL:      u.String(),
		Data:     data,
		Filename: name,
		MIME:     resp.Header.Get("Content-Type"),
	}, nil
}

func (h *Handler) tooLarge() error {
	return &inputError{
		status:  http.StatusRequestEntityTooLarge,
		code:    "PAYLOAD_TOO_LARGE",
		message: fmt.Sprintf("content exceeds %d bytes", h.maxUpload),
	}
}

// errorStatus maps engine errors to HTTP status and error code.
func errorStatus(err error) (int, string) {
	var mbe *http.MaxBytesError
	switch {
	case errors.Is(err, pixel.ErrOversize), errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"
	case errors.Is(err, service.ErrUnsupportedContent):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_CONTENT"
	case errors.Is(err, pixel.ErrDecode):
		return http.StatusUnprocessableEntity, "DECODE_FAILED"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return 499, "CANCELED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// GetResult handles GET /v1/results/{id}.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		middleware.WriteError(w, http.StatusBadRequest, "MISSING_ID", "result id is required")
		return
	}

	rec, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "NOT_FOUND", "result not found")
		return
	}
	if err != nil {
		h.logger.WithContext(r.Context()).Error("load result", "id", id, "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to load result")
		return
	}

	writeJSON(w, http.StatusOK, Envelope{
		Success:    true,
		APIVersion: middleware.APIVersion,
		Timestamp:  rec.CreatedAt,
		ID:         rec.ID,
		Data:       rec.Result,
	})
}

// Signals handles GET /v1/signals.
func (h *Handler) Signals(w http.ResponseWriter, r *http.Request) {
	entries := h.catalogue()
	if entries == nil {
		entries = []service.CatalogueEntry{}
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success:    true,
		APIVersion: middleware.APIVersion,
		Timestamp:  time.Now().UTC(),
		Data:       entries,
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		h.logger.WithContext(r.Context()).Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"storage": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"storage": "ok",
	})
}

// Index handles GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       "HumanMark Forensics API",
		"apiVersion": middleware.APIVersion,
		"endpoints": []string{
			"GET /healthz",
			"GET /v1/signals",
			"POST /v1/analyze",
			"GET /v1/results/{id}",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"upscaled/internal/core/domain"
	"upscaled/internal/core/port"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	apiVersion   = "1.0.0"
	defaultScale = 4
)

type base64Request struct {
	Image string `json:"image"`
	Scale *int   `json:"scale"`
}

type base64Response struct {
	UpscaledImage string `json:"upscaled_image"`
}

// Server is the HTTP transport adapter. It owns request validation and
// (de)serialization; everything past the Upscale call is the orchestrator's
// concern, and engine-level failures never surface here.
type Server struct {
	upscaler       port.Upscaler
	maxUploadBytes int64
}

func NewServer(upscaler port.Upscaler, maxUploadBytes int64) *Server {
	return &Server{upscaler: upscaler, maxUploadBytes: maxUploadBytes}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/", s.root)
	r.Get("/health", s.health)
	r.Post("/upscale/binary", s.upscaleBinary)
	r.Post("/upscale/base64", s.upscaleBase64)

	return r
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "AI Image Upscaler API",
		"version": apiVersion,
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"engine": s.upscaler.PrimaryEngine(),
	})
}

func (s *Server) upscaleBinary(w http.ResponseWriter, r *http.Request) {
	l := requestLogger(r)

	scale, err := parseScaleParam(r.URL.Query().Get("scale"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no image file provided, use 'file' as the form field name")
		return
	}
	defer f.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		writeError(w, http.StatusBadRequest, "file must be an image")
		return
	}

	l.Info().Str("filename", header.Filename).Int64("bytes", header.Size).Int("scale", scale).
		Msg("handling binary upscale request")

	payload, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	encoded, err := s.process(r.Context(), l, payload, scale)
	if err != nil {
		writeProcessError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=upscaled_%s", header.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(encoded); err != nil {
		l.Error().Err(err).Msg("failed writing response body")
	}
}

func (s *Server) upscaleBase64(w http.ResponseWriter, r *http.Request) {
	l := requestLogger(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	var req base64Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	scale := defaultScale
	if req.Scale != nil {
		scale = *req.Scale
	}

	if !domain.ScaleValid(scale) {
		writeError(w, http.StatusBadRequest, "scale must be 2, 4 or 8")
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 image data")
		return
	}

	l.Info().Int("bytes", len(payload)).Int("scale", scale).Msg("handling base64 upscale request")

	encoded, err := s.process(r.Context(), l, payload, scale)
	if err != nil {
		writeProcessError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, base64Response{
		UpscaledImage: base64.StdEncoding.EncodeToString(encoded),
	})
}

func parseScaleParam(raw string) (int, error) {
	if raw == "" {
		return defaultScale, nil
	}

	scale, err := strconv.Atoi(raw)
	if err != nil || !domain.ScaleValid(scale) {
		return 0, errors.New("scale must be 2, 4 or 8")
	}

	return scale, nil
}

func writeProcessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNotAnImage):
		writeError(w, http.StatusBadRequest, "invalid image data, supported formats: PNG, JPEG")
	case errors.Is(err, domain.ErrInvalidScale):
		writeError(w, http.StatusBadRequest, "scale must be 2, 4 or 8")
	default:
		writeError(w, http.StatusInternalServerError, domain.ErrProcessingFailed.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func requestLogger(r *http.Request) zerolog.Logger {
	requestID := ""
	if id, err := uuid.NewV4(); err == nil {
		requestID = id.String()
	}

	return log.With().
		Str("requestId", requestID).
		Str("path", r.URL.Path).
		Logger()
}

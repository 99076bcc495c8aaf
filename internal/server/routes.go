// Package server is the backend HTTP surface: health, the websocket relay,
// recording upload, transcription and summarization.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/Ajit127639/VideoCall/internal/nlp"
	"github.com/Ajit127639/VideoCall/internal/relay"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxUpload = 512 << 20

// SampleTranscription is what the default Transcriber returns.
const SampleTranscription = "This is a sample transcription generated for NLP processing."

// Transcriber turns an uploaded recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, file string) (string, error)
}

type sampleTranscriber struct{}

func (sampleTranscriber) Transcribe(context.Context, string) (string, error) {
	return SampleTranscription, nil
}

// Options configures NewRouter.
type Options struct {
	UploadDir   string
	Transcriber Transcriber
	// Now stamps upload names. time.Now when nil.
	Now func() time.Time
}

type api struct {
	uploadDir   string
	transcriber Transcriber
	now         func() time.Time
}

// NewRouter wires the backend routes. hub must already be running.
func NewRouter(hub *relay.Hub, opts Options) (*chi.Mux, error) {
	if err := os.MkdirAll(opts.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	a := &api{uploadDir: opts.UploadDir, transcriber: opts.Transcriber, now: opts.Now}
	if a.transcriber == nil {
		a.transcriber = sampleTranscriber{}
	}
	if a.now == nil {
		a.now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Signaling server is healthy."))
	})
	r.Get("/ws", relay.ServeWs(hub))
	r.Post("/upload", a.upload)
	r.Post("/transcribe", a.transcribe)
	r.Post("/summarize", a.summarize)
	return r, nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

var kindPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,32}$`)

func (a *api) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file")
		return
	}
	defer file.Close()

	kind := r.FormValue("kind")
	if kind == "" {
		kind = "media"
	}
	if !kindPattern.MatchString(kind) {
		writeError(w, http.StatusBadRequest, "invalid kind")
		return
	}
	ext := filepath.Ext(header.Filename)
	if ext == "" || !kindPattern.MatchString(ext[1:]) {
		ext = ".webm"
	}

	name := fmt.Sprintf("%s_%s%s", kind, a.now().Format("20060102_150405"), ext)
	out, err := os.Create(filepath.Join(a.uploadDir, name))
	if err != nil {
		slog.Error("upload create failed", "file", name, "error", err)
		writeError(w, http.StatusInternalServerError, "cannot store file")
		return
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		slog.Error("upload write failed", "file", name, "error", err)
		writeError(w, http.StatusInternalServerError, "cannot store file")
		return
	}

	slog.Info("upload stored", "file", name, "bytes", header.Size)
	writeJSON(w, http.StatusOK, map[string]string{"file": name})
}

func (a *api) transcribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		File string `json:"file"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	text, err := a.transcriber.Transcribe(r.Context(), req.File)
	if err != nil {
		slog.Error("transcription failed", "file", req.File, "error", err)
		writeError(w, http.StatusInternalServerError, "transcription failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (a *api) summarize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":  nlp.Summarize(req.Text),
		"keywords": nlp.Keywords(req.Text, nlp.DefaultKeywords),
	})
}

// decodeBody accepts an empty body as the zero request.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errors.New("invalid json body")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response write failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livewhisper/internal/capture"
	"github.com/obiente/translate/livewhisper/internal/pipeline"
)

const (
	startPath = "/v1/start_transcription"
	stopPath  = "/v1/stop_transcription"
	wsPath    = "/ws"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// Controller is the session lifecycle the router drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	Status() pipeline.Status
}

type Deps struct {
	Controller Controller

	// Events serves the websocket event channel.
	Events http.HandlerFunc

	// Metrics serves the Prometheus exposition; nil disables /metrics.
	Metrics http.Handler

	// SessionContext bounds every session started over HTTP. Sessions are not
	// tied to the request so a dropped client does not stop transcription.
	SessionContext context.Context

	Title string
}

func NewRouter(d Deps) http.Handler {
	if d.SessionContext == nil {
		d.SessionContext = context.Background()
	}
	if d.Title == "" {
		d.Title = "livewhisper"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err := indexTmpl.Execute(w, map[string]string{
			"Title":     d.Title,
			"WSPath":    wsPath,
			"StartPath": startPath,
			"StopPath":  stopPath,
		})
		if err != nil {
			log.Error().Err(err).Msg("http: render index")
		}
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	mux.HandleFunc("GET "+startPath, func(w http.ResponseWriter, r *http.Request) {
		// Blocks for the whole session, like the device loop it drives.
		err := d.Controller.Start(d.SessionContext)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]string{"message": "Transcription started"})
		case errors.Is(err, pipeline.ErrAlreadyRunning):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, capture.ErrDevice):
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error querying device: " + err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	})
	mux.HandleFunc("GET "+stopPath, func(w http.ResponseWriter, r *http.Request) {
		if err := d.Controller.Stop(); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		log.Info().Msg("http: transcription stopped")
		writeJSON(w, http.StatusOK, map[string]string{"message": "Transcription stopped"})
	})
	mux.HandleFunc("GET /v1/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Controller.Status())
	})
	if d.Events != nil {
		mux.HandleFunc("GET "+wsPath, d.Events)
	}
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("http: write response")
	}
}

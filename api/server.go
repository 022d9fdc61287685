// Package api is the HTTP surface: a chi router over the page manager, the
// WebSocket broadcaster, recording artifact serving and replay.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/simplepage/browser"
	"github.com/hazyhaar/simplepage/session"
)

// Config tunes the API server.
type Config struct {
	// CORSOrigin is echoed in Access-Control-Allow-Origin; "*" by default.
	CORSOrigin string

	// SelfURL is the base URL replay uses to reach this service.
	SelfURL string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.CORSOrigin == "" {
		c.CORSOrigin = "*"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server wires the manager and the broadcaster behind the router.
type Server struct {
	cfg Config
	mgr *session.Manager
	hub *Hub
	log *slog.Logger
}

func NewServer(mgr *session.Manager, cfg Config) *Server {
	cfg.defaults()
	s := &Server{cfg: cfg, mgr: mgr, hub: NewHub(cfg.Logger), log: cfg.Logger}
	mgr.OnEvent(s.hub.Broadcast)
	return s
}

// Router builds the full route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.hub.Handle)

	r.Route("/api", func(r chi.Router) {
		r.Get("/pages", s.handleListPages)
		r.Post("/pages", s.handleCreatePage)
		r.Route("/pages/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetPage)
			r.Delete("/", s.handleClosePage)
			r.Post("/navigate", s.handleNavigate)
			r.Post("/navigate-back", s.handleNavigateBack)
			r.Post("/navigate-forward", s.handleNavigateForward)
			r.Post("/reload", s.handleReload)
			r.Get("/structure", s.handleStructure)
			r.Get("/html", s.handleHTML)
			r.Post("/act-xpath", s.handleActXPath)
			r.Post("/act-id", s.handleActID)
			r.Post("/wait", s.handleWait)
			r.Post("/condition", s.handleCondition)
			r.Get("/screenshot", s.handleScreenshot)
			r.Get("/xpath/{encodedId}", s.handleXPathLookup)
			r.Post("/get-list-html", s.handleGetListHTML)
			r.Post("/get-list-html-by-parent", s.handleGetListHTMLByParent)
			r.Post("/get-element-html", s.handleGetElementHTML)
			r.Delete("/actions/{idx}", s.handleDeleteAction)
			r.Delete("/records", s.handleDeleteRecords)
		})

		r.Get("/recordings", s.handleListRecordings)
		r.Route("/recordings/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetRecording)
			r.Get("/files/{filename}", s.handleRecordingFile)
			r.Get("/data/{filename}", s.handleRecordingData)
			r.Post("/actions/{idx}/postscripts", s.handlePostScripts)
		})

		r.Post("/replay", s.handleReplay)
	})
	return r
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.CORSOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	kind := browser.KindOf(err)
	writeJSON(w, statusFor(kind), map[string]string{"error": err.Error()})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(kind browser.Kind) int {
	switch kind {
	case browser.KindBadRequest, browser.KindUnsupportedMethod, browser.KindInvalidSelector,
		browser.KindInvalidArgs, browser.KindNoXPathForEncodedID, browser.KindXPathMapNotCached,
		browser.KindDialogNotFired:
		return http.StatusBadRequest
	case browser.KindForbidden:
		return http.StatusForbidden
	case browser.KindPageNotFound, browser.KindRecordingNotFound, browser.KindElementNotFound:
		return http.StatusNotFound
	case browser.KindTimeout:
		return http.StatusRequestTimeout
	case browser.KindBusy:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return browser.WrapError(browser.KindBadRequest, err, "decode request body")
	}
	return nil
}

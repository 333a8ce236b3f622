// Package server exposes state building over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/agentic-research/ngstate/api"
	"github.com/agentic-research/ngstate/internal/annotation"
	"github.com/agentic-research/ngstate/internal/coords"
	"github.com/agentic-research/ngstate/internal/datamap"
	"github.com/agentic-research/ngstate/internal/ingest"
	"github.com/agentic-research/ngstate/internal/mapper"
	"github.com/agentic-research/ngstate/internal/table"
	"github.com/agentic-research/ngstate/internal/viewer"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Engine      *ingest.Engine
	Sites       *viewer.Sites
	DefaultSite string
	// Uploader shortens states too long for a URL. Nil disables shortening.
	Uploader     viewer.Uploader
	CORSOrigins  []string
	MaxBodyBytes int64
	Timeout      time.Duration
}

// NewRouter creates the HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.Sites == nil {
		cfg.Sites = viewer.DefaultSites()
	}
	if cfg.Engine == nil {
		cfg.Engine = ingest.NewEngine(cfg.Sites, nil)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 64 << 20
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/sites", sitesHandler(cfg))
		r.Post("/state", stateHandler(cfg))
		r.Post("/parse", parseHandler(cfg))
	})

	return r
}

// StateRequest is the body of POST /v1/state. Data values are JSON tables:
// an array of row objects or an object of column arrays.
type StateRequest struct {
	Spec json.RawMessage            `json:"spec"`
	Data map[string]json.RawMessage `json:"data"`
}

// StateResponse is returned by POST /v1/state. URL is empty when the state
// is too long and no uploader is configured; URLError says why.
type StateResponse struct {
	State    map[string]any `json:"state"`
	URL      string         `json:"url,omitempty"`
	URLError string         `json:"url_error,omitempty"`
}

func stateHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StateRequest
		if err := decodeBody(w, r, cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if len(req.Spec) == 0 {
			writeError(w, http.StatusBadRequest, errors.New("missing spec"))
			return
		}
		spec, err := api.Parse(req.Spec)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if spec.Site == "" {
			spec.Site = cfg.DefaultSite
		}

		data := make(map[string]*table.Table, len(req.Data))
		for key, raw := range req.Data {
			t, err := ingest.ParseJSON(raw, "")
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("data %q: %w", key, err))
				return
			}
			data[key] = t
		}

		s, err := cfg.Engine.Render(spec, data)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		doc, err := s.ToDict(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}

		resp := StateResponse{State: doc}
		link, err := s.Link(r.Context(), "", cfg.Uploader)
		switch {
		case errors.Is(err, viewer.ErrURLTooLong):
			resp.URLError = err.Error()
		case err != nil:
			writeError(w, http.StatusBadGateway, err)
			return
		default:
			resp.URL = link
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func parseHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL string `json:"url"`
		}
		if err := decodeBody(w, r, cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		doc, err := viewer.ParseURL(req.URL)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, viewer.ErrRemoteState) {
				status = http.StatusUnprocessableEntity
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

type siteInfo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func sitesHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := cfg.Sites.Names()
		sites := make([]siteInfo, 0, len(names))
		for _, n := range names {
			site, err := cfg.Sites.Lookup(n)
			if err != nil {
				continue
			}
			sites = append(sites, siteInfo{Name: site.Name, URL: site.URL})
		}
		def := cfg.DefaultSite
		if def == "" {
			def = viewer.DefaultSite
		}
		writeJSON(w, http.StatusOK, map[string]any{"default": def, "sites": sites})
	}
}

// statusFor maps build failures caused by the request to 400 and anything
// else to 500.
func statusFor(err error) int {
	for _, target := range []error{
		api.ErrInvalidSpec,
		datamap.ErrUnmapped,
		coords.ErrShapeMismatch,
		annotation.ErrTooManyTags,
		annotation.ErrInsufficientBindings,
		mapper.ErrMissingColumn,
		mapper.ErrColumnLayout,
		mapper.ErrRowCountMismatch,
		mapper.ErrMultipleObjectIDs,
		mapper.ErrInvalidValue,
		viewer.ErrDuplicateLayerName,
	} {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/janelia-flyem/n5viewer/metadata"
	"github.com/janelia-flyem/n5viewer/n5v"
	"github.com/rs/cors"
	"github.com/zenazn/goji/web"
	"github.com/zenazn/goji/web/middleware"
)

// WebAPIPath is the prefix of every HTTP API route.
const WebAPIPath = "/api/"

const webHelp = `
API for the N5 viewer session (%s)
===================================

GET  /api/help
	Returns this help.

GET  /api/session
	Returns the session id, title, time axis length, 2D mode and number of sources.

GET  /api/sources
	Lists the shown sources in setup id order.

GET  /api/sources/<setup id>
	Returns one shown source.

POST /api/sources/<setup id>/display
	Sets the display range.  Body: {"min": 0, "max": 1000}

POST /api/sources/<setup id>/transform
	Sets the fixed transform placing the source, e.g. for cropping or registration.
	Body: {"transform": [12 or 6 row-packed values]}

GET  /api/discover?container=<ref>
	Lists the nodes of a container and the metadata recognized for each.

POST /api/load
	Discovers a container and shows the selected paths.  Without paths, the topmost
	recognized nodes are shown.  Body: {"container": "<ref>", "paths": ["..."]}
`

// BadRequest writes a 400 response and logs the message.
func BadRequest(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	n5v.Warningf("Bad request %s %s: %s\n", r.Method, r.URL.Path, message)
	http.Error(w, message, http.StatusBadRequest)
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	n5v.Errorf("Error on %s %s: %v\n", r.Method, r.URL.Path, err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		n5v.Errorf("Unable to write JSON response to %s: %v\n", r.URL.Path, err)
	}
}

// recoverHandler logs panics from handlers instead of crashing the server.
func recoverHandler(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if e := recover(); e != nil {
				reqID := middleware.GetReqID(*c)
				n5v.Criticalf("Panic on request %s %s (%s): %v\n%s", r.Method, r.URL.Path, reqID, e, debug.Stack())
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// logHandler logs every request with its elapsed time.
func logHandler(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		h.ServeHTTP(w, r)
		n5v.Debugf("HTTP %s %s (%s): %s\n", r.Method, r.URL.Path, middleware.GetReqID(*c), time.Since(t0))
	}
	return http.HandlerFunc(fn)
}

// Handler returns the router for the session's HTTP API.
func (s *Service) Handler() http.Handler {
	mux := web.New()
	mux.Use(middleware.RequestID)
	mux.Use(logHandler)
	mux.Use(recoverHandler)
	mux.Use(middleware.AutomaticOptions)
	if len(s.config.Server.CorsOrigins) != 0 {
		mux.Use(cors.New(cors.Options{
			AllowedOrigins: s.config.Server.CorsOrigins,
			AllowedMethods: []string{"GET", "POST"},
		}).Handler)
	}

	mux.Get(WebAPIPath+"help", s.helpHandler)
	mux.Get(WebAPIPath+"session", s.sessionHandler)
	mux.Get(WebAPIPath+"sources", s.sourcesHandler)
	mux.Get(WebAPIPath+"sources/:id", s.sourceHandler)
	mux.Post(WebAPIPath+"sources/:id/display", s.displayHandler)
	mux.Post(WebAPIPath+"sources/:id/transform", s.transformHandler)
	mux.Get(WebAPIPath+"discover", s.discoverHandler)
	mux.Post(WebAPIPath+"load", s.loadHandler)
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		BadRequest(w, r, "unknown API path %q; see %shelp", r.URL.Path, WebAPIPath)
	})
	return mux
}

func (s *Service) helpHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, webHelp, s.registry.ID())
}

type sessionInfo struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Created       time.Time `json:"created"`
	NumTimepoints int       `json:"num_timepoints"`
	Is2D          bool      `json:"is_2d"`
	NumSources    int       `json:"num_sources"`
	CacheHitRate  float64   `json:"cache_hit_rate"`
}

func (s *Service) sessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, sessionInfo{
		ID:            s.registry.ID(),
		Title:         s.registry.Title(),
		Created:       s.registry.created,
		NumTimepoints: s.registry.NumTimepoints(),
		Is2D:          s.registry.Is2D(),
		NumSources:    s.registry.NumSources(),
		CacheHitRate:  s.session.CacheHitRate(),
	})
}

func (s *Service) sourcesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.registry.Sources())
}

func setupID(c web.C) (int, error) {
	id, err := strconv.Atoi(c.URLParams["id"])
	if err != nil {
		return 0, fmt.Errorf("bad setup id %q", c.URLParams["id"])
	}
	return id, nil
}

func (s *Service) sourceHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	id, err := setupID(c)
	if err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	info, found := s.registry.Source(id)
	if !found {
		http.Error(w, fmt.Sprintf("no source with setup id %d", id), http.StatusNotFound)
		return
	}
	writeJSON(w, r, info)
}

func (s *Service) displayHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	id, err := setupID(c)
	if err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	var req struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "malformed JSON request in body: %v", err)
		return
	}
	if req.Min == nil || req.Max == nil {
		BadRequest(w, r, "display range needs both min and max")
		return
	}
	setup, _, found := s.registry.Setup(id)
	if !found {
		http.Error(w, fmt.Sprintf("no source with setup id %d", id), http.StatusNotFound)
		return
	}
	setup.SetDisplayRange(*req.Min, *req.Max)
	info, _ := s.registry.Source(id)
	writeJSON(w, r, info)
}

func (s *Service) transformHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	id, err := setupID(c)
	if err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	var req struct {
		Transform []float64 `json:"transform"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "malformed JSON request in body: %v", err)
		return
	}
	transform, err := n5v.AffineFromRowPacked(req.Transform)
	if err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	if !transform.IsInvertible() {
		BadRequest(w, r, "%v", n5v.ErrSingularTransform)
		return
	}
	_, placed, found := s.registry.Setup(id)
	if !found {
		http.Error(w, fmt.Sprintf("no source with setup id %d", id), http.StatusNotFound)
		return
	}
	placed.SetFixedTransform(transform)
	info, _ := s.registry.Source(id)
	writeJSON(w, r, info)
}

// NodeInfo is the listing of one discovered container node.
type NodeInfo struct {
	Path       string  `json:"path"`
	Dataset    bool    `json:"dataset"`
	Dimensions []int64 `json:"dimensions,omitempty"`
	DataType   string  `json:"data_type,omitempty"`
	Metadata   string  `json:"metadata,omitempty"`
}

// MetadataKind describes the variant and convention of recognized metadata.
func MetadataKind(md metadata.Metadata) string {
	switch md := md.(type) {
	case *metadata.SingleScale:
		return "n5viewer single scale"
	case *metadata.GenericSingleScale:
		return string(md.Convention) + " single scale"
	case *metadata.MultiScale:
		return "n5viewer multiscale"
	case *metadata.MultiScaleUnsorted:
		return string(md.Convention) + " multiscale"
	case *metadata.ChannelGroup:
		return fmt.Sprintf("%d channels", len(md.Children))
	case *metadata.GenericDataset:
		return "dataset"
	default:
		return fmt.Sprintf("%T", md)
	}
}

func (s *Service) discoverHandler(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("container")
	if ref == "" {
		BadRequest(w, r, "discover needs a 'container' query parameter")
		return
	}
	root, err := s.Discover(r.Context(), ref)
	if err != nil {
		serverError(w, r, err)
		return
	}
	var nodes []NodeInfo
	root.Walk(func(node *metadata.Node) error {
		info := NodeInfo{Path: node.Path, Dataset: node.IsDataset()}
		if node.Dataset != nil {
			info.Dimensions = node.Dataset.Dimensions
			info.DataType = node.Dataset.ElementType().String()
		}
		if node.Metadata != nil {
			info.Metadata = MetadataKind(node.Metadata)
		}
		nodes = append(nodes, info)
		return nil
	})
	writeJSON(w, r, nodes)
}

func (s *Service) loadHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Container string   `json:"container"`
		Paths     []string `json:"paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "malformed JSON request in body: %v", err)
		return
	}
	if req.Container == "" {
		BadRequest(w, r, "load needs a 'container' reference")
		return
	}
	report, err := s.Load(r.Context(), req.Container, req.Paths)
	if err != nil {
		if errors.Is(err, ErrBadSelection) {
			BadRequest(w, r, "%v", err)
		} else {
			serverError(w, r, err)
		}
		return
	}
	writeJSON(w, r, report)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/display"
	"github.com/janelia-flyem/n5viewer/metadata"
	"github.com/janelia-flyem/n5viewer/n5v"
)

// ErrBadSelection is returned when selected paths are missing or unrecognized.
var ErrBadSelection = errors.New("bad selection")

// Service holds one viewer session and the containers it has opened.
type Service struct {
	config   *Config
	registry *Registry
	session  *display.Session

	mu         sync.Mutex
	containers map[string]*container.N5Reader
}

// NewService starts a viewer session using the configuration.
func NewService(c *Config) *Service {
	if c == nil {
		c = DefaultConfig()
	}
	registry := NewRegistry(c.Viewer.Title)
	n5v.Infof("Starting viewer session %s (%q)\n", registry.ID(), registry.Title())
	return &Service{
		config:     c,
		registry:   registry,
		session:    display.NewSession(registry, c.SessionOptions()),
		containers: make(map[string]*container.N5Reader),
	}
}

// Registry returns the headless viewer of the session.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Session returns the viewer session.
func (s *Service) Session() *display.Session {
	return s.session
}

// AddContainer makes an already opened container available under its reference.
func (s *Service) AddContainer(reader *container.N5Reader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers[reader.Ref()] = reader
}

// Container returns the container at ref, opening it on first use.  Opening a
// remote container does not hold up lookups of other containers.
func (s *Service) Container(ctx context.Context, ref string) (*container.N5Reader, error) {
	s.mu.Lock()
	reader, found := s.containers[ref]
	s.mu.Unlock()
	if found {
		return reader, nil
	}

	reader, err := container.Open(ctx, ref, s.config.Cache.AttributeCacheEntries)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, found := s.containers[ref]; found {
		// lost a race with another open of the same container
		reader.Close()
		return existing, nil
	}
	s.containers[ref] = reader
	return reader, nil
}

// Discover returns the parsed tree of the container at ref.
func (s *Service) Discover(ctx context.Context, ref string) (*metadata.Node, error) {
	reader, err := s.Container(ctx, ref)
	if err != nil {
		return nil, err
	}
	return metadata.Discover(ctx, reader, "", metadata.DefaultGroupParsers(), s.config.DatasetParsers())
}

// Select returns the metadata of the given paths.  Without paths, the topmost
// recognized nodes of the tree are selected.
func Select(root *metadata.Node, paths []string) ([]metadata.Metadata, error) {
	if len(paths) == 0 {
		return topmost(root), nil
	}
	selection := make([]metadata.Metadata, 0, len(paths))
	for _, path := range paths {
		node := root.Find(path)
		if node == nil {
			return nil, fmt.Errorf("%w: no node %q in container", ErrBadSelection, path)
		}
		if node.Metadata == nil {
			return nil, fmt.Errorf("%w: node %q has no recognized metadata", ErrBadSelection, path)
		}
		selection = append(selection, node.Metadata)
	}
	return selection, nil
}

func topmost(node *metadata.Node) []metadata.Metadata {
	if node.Metadata != nil {
		return []metadata.Metadata{node.Metadata}
	}
	var selection []metadata.Metadata
	for _, child := range node.Children {
		selection = append(selection, topmost(child)...)
	}
	return selection
}

// Load discovers the container at ref and shows the selected paths.  The first
// load sets the 2D mode of the viewer; later loads add to it.
func (s *Service) Load(ctx context.Context, ref string, paths []string) (*display.Report, error) {
	reader, err := s.Container(ctx, ref)
	if err != nil {
		return nil, err
	}
	root, err := s.Discover(ctx, ref)
	if err != nil {
		return nil, err
	}
	selection, err := Select(root, paths)
	if err != nil {
		return nil, err
	}
	if s.registry.NumSources() == 0 {
		return s.session.Load(ctx, reader, selection)
	}
	return s.session.AddData(ctx, reader, selection)
}

// Close stops the session and closes every opened container.
func (s *Service) Close() {
	s.session.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for ref, reader := range s.containers {
		reader.Close()
		delete(s.containers, ref)
	}
}

// Serve listens for HTTP requests on the configured address until ctx is done.
func (s *Service) Serve(ctx context.Context) error {
	address := s.config.Server.HTTPAddress
	srv := &http.Server{
		Addr:        address,
		Handler:     s.Handler(),
		ReadTimeout: 1 * time.Hour,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	n5v.Infof("Web server listening at %s ...\n", address)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/janelia-flyem/n5viewer/display"
	"github.com/twinj/uuid"
)

// SourceInfo is the listing of one shown source.
type SourceInfo struct {
	SetupID       int       `json:"setup_id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	Converter     string    `json:"converter"`
	DisplayMin    float64   `json:"display_min"`
	DisplayMax    float64   `json:"display_max"`
	MipmapLevels  int       `json:"mipmap_levels"`
	NumTimepoints int       `json:"num_timepoints"`
	Dimensions    [3]int64  `json:"dimensions"`
	Transform     []float64 `json:"transform"`
}

type registered struct {
	soc   *display.SourceAndConverter
	setup *display.ConverterSetup
}

// Registry is a headless viewer: it keeps what would be shown so clients can
// list it over HTTP.
type Registry struct {
	id      string
	title   string
	created time.Time

	mu            sync.RWMutex
	sources       []registered
	bySetup       map[int]int
	numTimepoints int
	is2D          bool
}

// NewRegistry returns an empty viewer with a fresh session id.
func NewRegistry(title string) *Registry {
	return &Registry{
		id:      uuid.NewV4().String(),
		title:   title,
		created: time.Now(),
		bySetup: make(map[int]int),
	}
}

// Show implements display.Viewer.
func (r *Registry) Show(soc *display.SourceAndConverter, setup *display.ConverterSetup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.bySetup[setup.SetupID]; found {
		return fmt.Errorf("setup id %d is already shown", setup.SetupID)
	}
	r.bySetup[setup.SetupID] = len(r.sources)
	r.sources = append(r.sources, registered{soc, setup})
	return nil
}

// SetNumTimepoints implements display.Viewer.
func (r *Registry) SetNumTimepoints(n int) {
	r.mu.Lock()
	r.numTimepoints = n
	r.mu.Unlock()
}

// Set2D implements display.Viewer.
func (r *Registry) Set2D(is2D bool) {
	r.mu.Lock()
	r.is2D = is2D
	r.mu.Unlock()
}

func (r *Registry) ID() string    { return r.id }
func (r *Registry) Title() string { return r.title }

func (r *Registry) NumTimepoints() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.numTimepoints
}

func (r *Registry) Is2D() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.is2D
}

func (r *Registry) NumSources() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

func info(reg registered) SourceInfo {
	src := reg.soc.Source
	min, max := reg.setup.Converter.DisplayRange()
	return SourceInfo{
		SetupID:       reg.setup.SetupID,
		Name:          src.Name(),
		Type:          src.Type().String(),
		Converter:     reg.soc.Converter.String(),
		DisplayMin:    min,
		DisplayMax:    max,
		MipmapLevels:  src.NumMipmapLevels(),
		NumTimepoints: src.NumTimepoints(),
		Dimensions:    src.Dimensions(0, 0),
		Transform:     src.SourceTransform(0, 0).RowPacked(),
	}
}

// Sources lists the shown sources in setup id order.
func (r *Registry) Sources() []SourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]SourceInfo, len(r.sources))
	for i, reg := range r.sources {
		infos[i] = info(reg)
	}
	return infos
}

// Source returns the listing for a setup id.
func (r *Registry) Source(setupID int) (SourceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, found := r.bySetup[setupID]
	if !found {
		return SourceInfo{}, false
	}
	return info(r.sources[i]), true
}

// Setup returns the converter setup and placed source for a setup id.
func (r *Registry) Setup(setupID int) (*display.ConverterSetup, *display.TransformedSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, found := r.bySetup[setupID]
	if !found {
		return nil, nil, false
	}
	return r.sources[i].setup, r.sources[i].soc.Source, true
}

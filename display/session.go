package display

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/metadata"
	"github.com/janelia-flyem/n5viewer/n5v"
	"github.com/janelia-flyem/n5viewer/source"
)

// DefaultBlockCacheBytes is the block cache size of a session if none is given.
const DefaultBlockCacheBytes = 256 * n5v.Mega

// ErrClosedSession is returned when data is added to a closed session.
var ErrClosedSession = errors.New("viewer session is closed")

// Viewer is where bound sources are shown.
type Viewer interface {
	Show(soc *SourceAndConverter, setup *ConverterSetup) error
	SetNumTimepoints(n int)
	Set2D(is2D bool)
}

// Options configure a session.
type Options struct {
	// NumWorkers is the size of the fetch queue; < 1 uses source.DefaultNumWorkers.
	NumWorkers int

	// BlockCacheBytes is the size of the block cache shared by every source.
	BlockCacheBytes int
}

// BoundSource describes a source shown in the viewer.
type BoundSource struct {
	SetupID   int    `json:"setup_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Converter string `json:"converter"`
}

// BindFailure describes a source that could not be bound.
type BindFailure struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Report summarizes one Load or AddData call.
type Report struct {
	Bound         []BoundSource `json:"bound"`
	Skipped       []source.Skip `json:"skipped,omitempty"`
	Failed        []BindFailure `json:"failed,omitempty"`
	NumTimepoints int           `json:"num_timepoints"`
	Is2D          bool          `json:"is_2d"`
}

// Session is one viewer and the resources its sources share: the fetch queue, the
// block cache, and the counter for setup ids, which starts at 1.
type Session struct {
	viewer Viewer
	queue  *source.Queue
	cache  *container.BlockCache

	mu            sync.Mutex
	closed        bool
	modeSet       bool
	lastID        int
	numTimepoints int
	is2D          bool
	volatile      []*source.VolatileSource
	bound         []*SourceAndConverter
}

// NewSession starts the shared fetch queue and block cache for a viewer.
func NewSession(viewer Viewer, opts Options) *Session {
	if opts.BlockCacheBytes <= 0 {
		opts.BlockCacheBytes = DefaultBlockCacheBytes
	}
	return &Session{
		viewer: viewer,
		queue:  source.NewQueue(opts.NumWorkers),
		cache:  container.NewBlockCache(opts.BlockCacheBytes),
	}
}

// Load shows the first selection and sets the viewer's 2D mode from it.  The mode
// is set by the first batch that shows a spatial source, so a load that shows none
// leaves it open.
func (s *Session) Load(ctx context.Context, reader container.Reader, selection []metadata.Metadata) (*Report, error) {
	return s.add(ctx, reader, selection)
}

// AddData shows another selection in the same viewer.  A 2D mode already set is
// kept and the time axis grows to the longest source.
func (s *Session) AddData(ctx context.Context, reader container.Reader, selection []metadata.Metadata) (*Report, error) {
	return s.add(ctx, reader, selection)
}

func (s *Session) add(ctx context.Context, reader container.Reader, selection []metadata.Metadata) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosedSession
	}

	assembler := source.Assembler{
		Opener: container.NewOpener(reader, s.cache),
		Queue:  s.queue,
	}
	batch, err := assembler.BuildSources(ctx, selection)
	if err != nil {
		return nil, err
	}
	s.volatile = append(s.volatile, batch.Volatile...)

	report := &Report{Skipped: batch.Skipped}
	spatialBound := 0
	for i, src := range batch.All() {
		soc, setup, err := Bind(src, s.lastID+1)
		if err != nil {
			if !errors.Is(err, ErrUnsupportedPixelType) {
				return report, err
			}
			n5v.Errorf("Cannot show %s: %v\n", src.Name(), err)
			report.Failed = append(report.Failed, BindFailure{
				Name:   src.Name(),
				Type:   src.Type().String(),
				Reason: err.Error(),
			})
			continue
		}
		if err := s.viewer.Show(soc, setup); err != nil {
			return report, fmt.Errorf("showing %s: %w", src.Name(), err)
		}
		s.lastID = setup.SetupID
		s.bound = append(s.bound, soc)
		if i < len(batch.Sources) {
			spatialBound++
		}
		report.Bound = append(report.Bound, BoundSource{
			SetupID:   setup.SetupID,
			Name:      src.Name(),
			Type:      src.Type().String(),
			Converter: soc.Converter.String(),
		})
	}

	if !s.modeSet && spatialBound > 0 {
		s.is2D = batch.Is2D
		s.viewer.Set2D(s.is2D)
		s.modeSet = true
	}
	if batch.NumTimepoints > s.numTimepoints {
		s.numTimepoints = batch.NumTimepoints
		s.viewer.SetNumTimepoints(s.numTimepoints)
	}
	report.NumTimepoints = s.numTimepoints
	report.Is2D = s.is2D
	n5v.Infof("Showing %d new sources (%d skipped, %d failed)\n", len(report.Bound), len(report.Skipped), len(report.Failed))
	return report, nil
}

// Sources returns the bound sources in the order they were shown.
func (s *Session) Sources() []*SourceAndConverter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*SourceAndConverter(nil), s.bound...)
}

// NumTimepoints returns the length of the shared time axis.
func (s *Session) NumTimepoints() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numTimepoints
}

// CacheHitRate returns the hit rate of the shared block cache.
func (s *Session) CacheHitRate() float64 {
	return s.cache.HitRate()
}

// Close abandons pending fetches and stops the fetch queue.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, v := range s.volatile {
		v.Close()
	}
	s.mu.Unlock()
	s.queue.Close()
}

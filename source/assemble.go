package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/metadata"
	"github.com/janelia-flyem/n5viewer/multiscale"
	"github.com/janelia-flyem/n5viewer/n5v"
)

// Skip records a selected entry that could not be turned into a source.  Index is
// the 1-based position of the entry in the selection.
type Skip struct {
	Index  int    `json:"index"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Batch is the result of assembling one selection.
type Batch struct {
	// Sources and Volatile are parallel: Volatile[i] is the volatile form of
	// Sources[i].  Volatile is empty if the assembler has no queue.
	Sources  []*MultiscaleSource
	Volatile []*VolatileSource

	// Auxiliary holds the sources of datasets without spatial metadata.
	Auxiliary []*MetadataSource

	Skipped []Skip

	// NumTimepoints is the largest timepoint count of any source, 0 for an empty
	// batch.
	NumTimepoints int

	// Is2D is true if every array of every spatial source in the batch was 2D.
	Is2D bool
}

// NumSources returns the number of spatial and auxiliary sources.
func (b *Batch) NumSources() int {
	return len(b.Sources) + len(b.Auxiliary)
}

// All returns every source in the batch, spatial sources first.  Volatile forms are
// used when present.
func (b *Batch) All() []Source {
	all := make([]Source, 0, b.NumSources())
	for i, src := range b.Sources {
		if i < len(b.Volatile) {
			all = append(all, b.Volatile[i])
		} else {
			all = append(all, src)
		}
	}
	for _, src := range b.Auxiliary {
		all = append(all, src)
	}
	return all
}

// Assembler builds sources for selected metadata.  All volatile sources it builds
// fetch on Queue.  Volatile sources only see fetched blocks if the opener's arrays
// share a block cache.
type Assembler struct {
	Opener ArrayOpener
	Queue  *Queue
}

// entry is one image of the selection after channel groups are expanded.
type entry struct {
	index   int
	channel int
	md      metadata.Metadata
}

func (e entry) name() string {
	if e.channel < 0 {
		return fmt.Sprintf("source %d", e.index)
	}
	return fmt.Sprintf("source %d c%d", e.index, e.channel)
}

func expand(selection []metadata.Metadata) []entry {
	var entries []entry
	for i, md := range selection {
		if group, ok := md.(*metadata.ChannelGroup); ok {
			for c, child := range group.Children {
				entries = append(entries, entry{index: i + 1, channel: c, md: child})
			}
			continue
		}
		entries = append(entries, entry{index: i + 1, channel: -1, md: md})
	}
	return entries
}

// errSkip marks metadata and geometry problems that skip one entry.
type errSkip struct {
	reason string
}

func (e errSkip) Error() string { return e.reason }

func skipf(format string, args ...interface{}) error {
	return errSkip{fmt.Sprintf(format, args...)}
}

// BuildSources opens the arrays of every selected entry, in selection order, and
// returns the assembled sources.  Channel groups give one source per channel.
// Entries with unusable metadata or geometry are skipped and recorded; a failure
// reading the container aborts the whole batch.
func (a *Assembler) BuildSources(ctx context.Context, selection []metadata.Metadata) (*Batch, error) {
	timedLog := n5v.NewTimeLog()
	batch := new(Batch)
	var spatial []*MultiscaleSource
	for _, e := range expand(selection) {
		var err error
		switch md := e.md.(type) {
		case *metadata.GenericDataset:
			var aux []*MetadataSource
			if aux, err = BuildMetadataSources(ctx, a.Opener, md, e.name()); err == nil {
				batch.Auxiliary = append(batch.Auxiliary, aux...)
			} else if errors.Is(err, ErrNoSpatialAxes) || errors.Is(err, container.ErrNotDataset) {
				err = errSkip{err.Error()}
			}
		default:
			var src *MultiscaleSource
			if src, err = a.buildSource(ctx, e); err == nil {
				spatial = append(spatial, src)
			}
		}
		if err == nil {
			continue
		}
		var skip errSkip
		if !errors.As(err, &skip) {
			return nil, fmt.Errorf("building %s from %q: %w", e.name(), e.md.Path(), err)
		}
		n5v.Warningf("Skipping %s (%q): %s\n", e.name(), e.md.Path(), skip.reason)
		batch.Skipped = append(batch.Skipped, Skip{Index: e.index, Path: e.md.Path(), Reason: skip.reason})
	}

	batch.Sources = spatial
	if a.Queue != nil {
		for _, src := range spatial {
			batch.Volatile = append(batch.Volatile, NewVolatileSource(src, a.Queue))
		}
	}
	batch.Is2D = is2D(spatial)
	for _, src := range batch.All() {
		if nt := src.NumTimepoints(); nt > batch.NumTimepoints {
			batch.NumTimepoints = nt
		}
	}
	timedLog.Debugf("Assembled %d sources, skipped %d", batch.NumSources(), len(batch.Skipped))
	return batch, nil
}

// is2D folds over every level of every source.  A batch without spatial sources is
// not 2D.
func is2D(sources []*MultiscaleSource) bool {
	if len(sources) == 0 {
		return false
	}
	all2D := true
	for _, src := range sources {
		all2D = all2D && src.Is2D()
	}
	return all2D
}

func (a *Assembler) buildSource(ctx context.Context, e entry) (*MultiscaleSource, error) {
	groups, err := multiscale.Resolve(e.md)
	if err != nil {
		return nil, skipf("%v", err)
	}
	if len(groups) != 1 || len(groups[0]) == 0 {
		return nil, skipf("metadata resolves to %d images", len(groups))
	}
	group := groups[0]
	levels := make([]ScaleLevel, len(group))
	for i, level := range group {
		array, err := a.Opener.Open(ctx, level.Path)
		if err != nil {
			if errors.Is(err, container.ErrNotDataset) {
				return nil, skipf("scale level %q is not a dataset", level.Path)
			}
			return nil, err
		}
		shape := array.Shape()
		dims, err := lift(shape)
		if err != nil {
			return nil, skipf("scale level %q: %v", level.Path, err)
		}
		levels[i] = ScaleLevel{
			Array:      array,
			Transform:  level.Transform,
			Dimensions: dims,
			NativeDims: len(shape),
		}
	}
	return NewMultiscaleSource(e.name(), e.md.Path(), levels)
}

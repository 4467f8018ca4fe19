/*
	Package source assembles lazily loaded volumetric sources from resolved scale
	levels.  Every spatial source has a plain form that reads blocks on demand and a
	volatile form that fetches missing blocks in the background on a shared queue.
*/
package source

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/n5v"
)

// ArrayOpener opens the dataset at a container path.  container.Opener implements it.
type ArrayOpener interface {
	Open(ctx context.Context, path string) (container.Array, error)
}

// Source is the geometry every source exposes to a viewer.
type Source interface {
	Name() string
	Type() n5v.PixelType
	NumTimepoints() int
	NumMipmapLevels() int

	// SourceTransform maps voxels of the given timepoint and level to physical space.
	SourceTransform(t, level int) n5v.Affine3D

	// Dimensions is the extent of the given timepoint and level in voxels.  The
	// third extent of a 2D source is 1.
	Dimensions(t, level int) [3]int64
}

// ScaleLevel is one opened array of a source.  Its geometry does not change after
// assembly.
type ScaleLevel struct {
	Array      container.Array
	Transform  n5v.Affine3D
	Dimensions [3]int64

	// NativeDims is the dimensionality of the array before lifting, 2 or 3.
	NativeDims int
}

// lift returns the 3D extent of a 2D or 3D shape.
func lift(shape []int64) ([3]int64, error) {
	switch len(shape) {
	case 2:
		return [3]int64{shape[0], shape[1], 1}, nil
	case 3:
		return [3]int64{shape[0], shape[1], shape[2]}, nil
	default:
		return [3]int64{}, fmt.Errorf("%d-d arrays cannot be displayed", len(shape))
	}
}

// gridPosition drops the singleton axis of a lifted 2D array.  It returns false
// for positions outside a 2D array.
func (l ScaleLevel) gridPosition(pos [3]int64) ([]int64, bool) {
	if l.NativeDims == 2 {
		if pos[2] != 0 {
			return nil, false
		}
		return []int64{pos[0], pos[1]}, true
	}
	return []int64{pos[0], pos[1], pos[2]}, true
}

// MultiscaleSource is a pyramid of arrays, finest level first, with a single
// timepoint.
type MultiscaleSource struct {
	name      string
	path      string
	pixelType n5v.PixelType
	levels    []ScaleLevel
}

// NewMultiscaleSource returns a source over the given levels.  The pixel type is
// taken from the array of the first level.
func NewMultiscaleSource(name, path string, levels []ScaleLevel) (*MultiscaleSource, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("source %q has no scale levels", name)
	}
	return &MultiscaleSource{
		name:      name,
		path:      path,
		pixelType: n5v.PixelType{T: levels[0].Array.DataType()},
		levels:    levels,
	}, nil
}

func (s *MultiscaleSource) Name() string                              { return s.name }
func (s *MultiscaleSource) Path() string                              { return s.path }
func (s *MultiscaleSource) Type() n5v.PixelType                       { return s.pixelType }
func (s *MultiscaleSource) NumTimepoints() int                        { return 1 }
func (s *MultiscaleSource) NumMipmapLevels() int                      { return len(s.levels) }
func (s *MultiscaleSource) SourceTransform(t, level int) n5v.Affine3D { return s.levels[level].Transform }
func (s *MultiscaleSource) Dimensions(t, level int) [3]int64          { return s.levels[level].Dimensions }

// Level returns the given scale level.
func (s *MultiscaleSource) Level(level int) ScaleLevel {
	return s.levels[level]
}

// Is2D returns true if every level was a 2D array.
func (s *MultiscaleSource) Is2D() bool {
	for _, l := range s.levels {
		if l.NativeDims != 2 {
			return false
		}
	}
	return true
}

// Block reads the block at a 3D grid position of a level, waiting for it if
// necessary.  Blocks that were never written are nil.
func (s *MultiscaleSource) Block(ctx context.Context, t, level int, pos [3]int64) (*container.Block, error) {
	if level < 0 || level >= len(s.levels) {
		return nil, fmt.Errorf("source %q has no level %d", s.name, level)
	}
	l := s.levels[level]
	gridPos, ok := l.gridPosition(pos)
	if !ok {
		return nil, nil
	}
	return l.Array.ReadBlock(ctx, gridPos)
}

func (s *MultiscaleSource) String() string {
	return fmt.Sprintf("%s [%s, %d levels] @ %q", s.name, s.pixelType, len(s.levels), s.path)
}

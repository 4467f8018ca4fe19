package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/metadata"
	"github.com/janelia-flyem/n5viewer/n5v"
)

// ErrNoSpatialAxes is returned for datasets that cannot be shown as a volume.
var ErrNoSpatialAxes = errors.New("dataset has no x and y axes")

// axisMap gives the dataset dimension of each labeled axis, -1 if absent.
type axisMap struct {
	x, y, z, t, c int
}

func mapAxes(axes []string, ndims int) (axisMap, error) {
	m := axisMap{-1, -1, -1, -1, -1}
	if len(axes) == 0 {
		if ndims < 2 {
			return m, ErrNoSpatialAxes
		}
		m.x, m.y = 0, 1
		if ndims > 2 {
			m.z = 2
		}
		return m, nil
	}
	if len(axes) != ndims {
		return m, fmt.Errorf("%d axis labels for %d-d dataset", len(axes), ndims)
	}
	for i, label := range axes {
		var slot *int
		switch strings.ToLower(label) {
		case "x":
			slot = &m.x
		case "y":
			slot = &m.y
		case "z":
			slot = &m.z
		case "t":
			slot = &m.t
		case "c":
			slot = &m.c
		default:
			continue
		}
		if *slot >= 0 {
			return m, fmt.Errorf("axis %q is given twice", label)
		}
		*slot = i
	}
	if m.x < 0 || m.y < 0 {
		return m, ErrNoSpatialAxes
	}
	return m, nil
}

// MetadataSource shows one channel of an N-dimensional dataset through its axis
// labels.  The x, y and z axes are spatial and t is time; every other axis is
// fixed at index 0.
type MetadataSource struct {
	name    string
	array   container.Array
	axes    axisMap
	channel int64
	dims    [3]int64
	numT    int
}

// BuildMetadataSources returns one source per channel of a plain dataset.  Datasets
// without usable spatial axes return an error wrapping ErrNoSpatialAxes; failures
// opening the dataset are returned as is.
func BuildMetadataSources(ctx context.Context, opener ArrayOpener, md *metadata.GenericDataset, name string) ([]*MetadataSource, error) {
	array, err := opener.Open(ctx, md.Path())
	if err != nil {
		return nil, err
	}
	shape := array.Shape()
	axes, err := mapAxes(md.Axes, len(shape))
	if err != nil {
		if errors.Is(err, ErrNoSpatialAxes) {
			return nil, fmt.Errorf("%q: %w", md.Path(), err)
		}
		return nil, fmt.Errorf("%q: %v: %w", md.Path(), err, ErrNoSpatialAxes)
	}
	dims := [3]int64{shape[axes.x], shape[axes.y], 1}
	if axes.z >= 0 {
		dims[2] = shape[axes.z]
	}
	numT := 1
	if axes.t >= 0 {
		numT = int(shape[axes.t])
	}
	numC := int64(1)
	if axes.c >= 0 {
		numC = shape[axes.c]
	}
	sources := make([]*MetadataSource, 0, numC)
	for c := int64(0); c < numC; c++ {
		srcName := name
		if axes.c >= 0 {
			srcName = fmt.Sprintf("%s c%d", name, c)
		}
		sources = append(sources, &MetadataSource{
			name:    srcName,
			array:   array,
			axes:    axes,
			channel: c,
			dims:    dims,
			numT:    numT,
		})
	}
	return sources, nil
}

func (s *MetadataSource) Name() string                              { return s.name }
func (s *MetadataSource) Type() n5v.PixelType                       { return n5v.PixelType{T: s.array.DataType()} }
func (s *MetadataSource) NumTimepoints() int                        { return s.numT }
func (s *MetadataSource) NumMipmapLevels() int                      { return 1 }
func (s *MetadataSource) SourceTransform(t, level int) n5v.Affine3D { return n5v.IdentityAffine() }
func (s *MetadataSource) Dimensions(t, level int) [3]int64          { return s.dims }

// Channel returns the channel index shown by the source.
func (s *MetadataSource) Channel() int64 { return s.channel }

// GridPosition returns the dataset grid position holding the given 3D block of
// timepoint t.
func (s *MetadataSource) GridPosition(t int, pos [3]int64) []int64 {
	blockSize := s.array.BlockSize()
	gridPos := make([]int64, len(blockSize))
	gridPos[s.axes.x] = pos[0]
	gridPos[s.axes.y] = pos[1]
	if s.axes.z >= 0 {
		gridPos[s.axes.z] = pos[2]
	}
	if s.axes.t >= 0 {
		gridPos[s.axes.t] = int64(t) / int64(blockSize[s.axes.t])
	}
	if s.axes.c >= 0 {
		gridPos[s.axes.c] = s.channel / int64(blockSize[s.axes.c])
	}
	return gridPos
}

// Block reads the dataset block holding the given 3D block of timepoint t.
func (s *MetadataSource) Block(ctx context.Context, t int, pos [3]int64) (*container.Block, error) {
	if t < 0 || t >= s.numT {
		return nil, fmt.Errorf("source %q has no timepoint %d", s.name, t)
	}
	return s.array.ReadBlock(ctx, s.GridPosition(t, pos))
}

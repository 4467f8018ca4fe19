/*
	Package multiscale expands parsed metadata into ordered lists of scale levels,
	each a dataset path with the transform that places it in physical space.
*/
package multiscale

import (
	"errors"
	"fmt"
	"sort"

	"github.com/janelia-flyem/n5viewer/metadata"
	"github.com/janelia-flyem/n5viewer/n5v"
)

// ErrUnknownMetadata is returned for metadata the resolver does not handle.
var ErrUnknownMetadata = errors.New("unknown metadata variant")

// ErrLengthMismatch is returned when paths and transforms are not parallel.
var ErrLengthMismatch = errors.New("paths and transforms differ in length")

// Level is one array of a pyramid.
type Level struct {
	Path      string
	Transform n5v.Affine3D
}

// Group is the ordered levels of one image, finest first.
type Group []Level

// Paths returns the dataset paths of the group.
func (g Group) Paths() []string {
	paths := make([]string, len(g))
	for i, l := range g {
		paths[i] = l.Path
	}
	return paths
}

// Transforms returns the transforms of the group.
func (g Group) Transforms() []n5v.Affine3D {
	transforms := make([]n5v.Affine3D, len(g))
	for i, l := range g {
		transforms[i] = l.Transform
	}
	return transforms
}

// Resolve returns the scale levels described by md.  A channel group gives one group
// per channel; a plain dataset without spatial metadata gives none.  Resolve keeps
// no state, so resolving the same metadata twice gives equal results.
func Resolve(md metadata.Metadata) ([]Group, error) {
	switch m := md.(type) {
	case *metadata.SingleScale:
		return []Group{{{Path: m.Path(), Transform: m.Transform()}}}, nil
	case *metadata.GenericSingleScale:
		return []Group{{{Path: m.Path(), Transform: m.Transform()}}}, nil
	case *metadata.MultiScale:
		return []Group{levels(m.Paths(), m.Transforms())}, nil
	case *metadata.MultiScaleUnsorted:
		g, err := Sort(m.Paths(), m.Transforms())
		if err != nil {
			return nil, fmt.Errorf("%q: %w", m.Path(), err)
		}
		return []Group{g}, nil
	case *metadata.ChannelGroup:
		groups := make([]Group, 0, len(m.Children))
		for _, child := range m.Children {
			childGroups, err := Resolve(child)
			if err != nil {
				return nil, fmt.Errorf("channel %q of %q: %w", child.Path(), m.Path(), err)
			}
			groups = append(groups, childGroups...)
		}
		return groups, nil
	case *metadata.GenericDataset:
		return nil, nil
	case nil:
		return nil, fmt.Errorf("nil metadata: %w", ErrUnknownMetadata)
	default:
		return nil, fmt.Errorf("%T: %w", md, ErrUnknownMetadata)
	}
}

func levels(paths []string, transforms []n5v.Affine3D) Group {
	g := make(Group, len(paths))
	for i := range paths {
		g[i] = Level{Path: paths[i], Transform: transforms[i]}
	}
	return g
}

// Sort orders the levels by the magnitude of their diagonal scale, smallest voxels
// first.  Levels of equal magnitude keep their given order, so sorting a sorted
// list changes nothing.  Paths and transforms must have the same length.
func Sort(paths []string, transforms []n5v.Affine3D) (Group, error) {
	if len(paths) != len(transforms) {
		return nil, fmt.Errorf("%d paths, %d transforms: %w", len(paths), len(transforms), ErrLengthMismatch)
	}
	g := levels(paths, transforms)
	sort.SliceStable(g, func(i, j int) bool {
		return g[i].Transform.ScaleMagnitude() < g[j].Transform.ScaleMagnitude()
	})
	return g, nil
}

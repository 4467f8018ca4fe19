/*
	Package metadata recognizes the attribute conventions used to describe images in an
	N5 container and turns every node into at most one metadata variant.

	The variant set is closed: SingleScale, GenericSingleScale, MultiScale,
	MultiScaleUnsorted, ChannelGroup and GenericDataset.  Code that dispatches on
	metadata does so with a type switch over these types.
*/
package metadata

import (
	"fmt"

	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/n5v"
)

// Convention names the attribute scheme a variant was recognized from.
type Convention string

const (
	ConventionN5Viewer  Convention = "n5viewer"
	ConventionCosem     Convention = "cosem"
	ConventionCanonical Convention = "canonical"
	ConventionGeneric   Convention = "generic"
)

// DefaultUnit is used when a convention does not give a physical unit.
const DefaultUnit = "pixel"

var defaultAxes = []string{"x", "y", "z"}

// Metadata is the parsed description of one container node.  Only the variants in
// this package implement it.
type Metadata interface {
	// Path is the container path of the node that was parsed.
	Path() string

	metadata()
}

// SpatialMetadata is a single array placed in physical space.
type SpatialMetadata interface {
	Metadata
	Transform() n5v.Affine3D
	Axes() []string
	Units() string
	DatasetAttributes() *container.DatasetAttributes
}

// MultiscaleMetadata is a set of arrays of the same image at different resolutions.
// Paths and Transforms are parallel and hold at least one entry.
type MultiscaleMetadata interface {
	Metadata
	Paths() []string
	Transforms() []n5v.Affine3D
}

// SingleScale is a dataset described with the N5 viewer attributes
// pixelResolution and downsamplingFactors.
type SingleScale struct {
	path      string
	transform n5v.Affine3D
	units     string
	dataset   *container.DatasetAttributes

	// Resolution and DownsamplingFactors are the parsed attributes, padded to 3D.
	Resolution          [3]float64
	DownsamplingFactors [3]float64
}

// NewSingleScale returns N5 viewer metadata for a dataset with the given
// resolution and downsampling factors.
func NewSingleScale(path string, resolution, factors [3]float64, units string, dataset *container.DatasetAttributes) *SingleScale {
	return &SingleScale{
		path:                n5v.NormalizePath(path),
		transform:           mipmapTransform(resolution, factors),
		units:               units,
		dataset:             dataset,
		Resolution:          resolution,
		DownsamplingFactors: factors,
	}
}

// mipmapTransform scales by the resolution after downsampling, with the half-voxel
// shift that keeps a downsampled voxel centered on the voxels it was averaged from.
func mipmapTransform(resolution, factors [3]float64) n5v.Affine3D {
	var shift [3]float64
	for i, f := range factors {
		shift[i] = (f - 1) / 2
	}
	mipmap := n5v.ScaleTranslation(factors, shift)
	scale := n5v.ScaleTranslation(resolution, [3]float64{})
	return scale.Concatenate(mipmap)
}

func (m *SingleScale) Path() string                                    { return m.path }
func (m *SingleScale) Transform() n5v.Affine3D                         { return m.transform }
func (m *SingleScale) Axes() []string                                  { return defaultAxes }
func (m *SingleScale) Units() string                                   { return m.units }
func (m *SingleScale) DatasetAttributes() *container.DatasetAttributes { return m.dataset }
func (m *SingleScale) metadata()                                       {}

func (m *SingleScale) String() string {
	return fmt.Sprintf("n5viewer single scale %q: res %v, factors %v", m.path, m.Resolution, m.DownsamplingFactors)
}

// GenericSingleScale is a dataset with a 3D transform recognized from a
// convention other than the N5 viewer one.
type GenericSingleScale struct {
	path       string
	transform  n5v.Affine3D
	axes       []string
	units      string
	dataset    *container.DatasetAttributes
	Convention Convention
}

// NewGenericSingleScale returns spatial metadata.  Empty axes default to x, y, z.
func NewGenericSingleScale(path string, transform n5v.Affine3D, conv Convention, axes []string, units string, dataset *container.DatasetAttributes) *GenericSingleScale {
	if len(axes) == 0 {
		axes = defaultAxes
	}
	if units == "" {
		units = DefaultUnit
	}
	return &GenericSingleScale{
		path:       n5v.NormalizePath(path),
		transform:  transform,
		axes:       axes,
		units:      units,
		dataset:    dataset,
		Convention: conv,
	}
}

func (m *GenericSingleScale) Path() string                                    { return m.path }
func (m *GenericSingleScale) Transform() n5v.Affine3D                         { return m.transform }
func (m *GenericSingleScale) Axes() []string                                  { return m.axes }
func (m *GenericSingleScale) Units() string                                   { return m.units }
func (m *GenericSingleScale) DatasetAttributes() *container.DatasetAttributes { return m.dataset }
func (m *GenericSingleScale) metadata()                                       {}

func (m *GenericSingleScale) String() string {
	return fmt.Sprintf("%s single scale %q: %s", m.Convention, m.path, m.transform)
}

// MultiScale is a pyramid whose children are already ordered from finest to
// coarsest by their names.
type MultiScale struct {
	path     string
	Children []*SingleScale
}

// NewMultiScale returns an ordered pyramid.  At least one child is required.
func NewMultiScale(path string, children []*SingleScale) (*MultiScale, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("multiscale group %q has no scale levels", path)
	}
	return &MultiScale{path: n5v.NormalizePath(path), Children: children}, nil
}

func (m *MultiScale) Path() string { return m.path }
func (m *MultiScale) metadata()    {}

// Paths returns the dataset path of every level.
func (m *MultiScale) Paths() []string {
	paths := make([]string, len(m.Children))
	for i, child := range m.Children {
		paths[i] = child.Path()
	}
	return paths
}

// Transforms returns the transform of every level.
func (m *MultiScale) Transforms() []n5v.Affine3D {
	transforms := make([]n5v.Affine3D, len(m.Children))
	for i, child := range m.Children {
		transforms[i] = child.Transform()
	}
	return transforms
}

// MultiScaleUnsorted is a pyramid whose discovered order says nothing about
// resolution.  It must be sorted before use.
type MultiScaleUnsorted struct {
	path       string
	paths      []string
	transforms []n5v.Affine3D
	Convention Convention
}

// NewMultiScaleUnsorted returns an unsorted pyramid.  The paths and transforms must be
// parallel and non-empty.
func NewMultiScaleUnsorted(path string, paths []string, transforms []n5v.Affine3D, conv Convention) (*MultiScaleUnsorted, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("multiscale group %q has no scale levels", path)
	}
	if len(paths) != len(transforms) {
		return nil, fmt.Errorf("multiscale group %q has %d paths but %d transforms", path, len(paths), len(transforms))
	}
	m := &MultiScaleUnsorted{
		path:       n5v.NormalizePath(path),
		paths:      make([]string, len(paths)),
		transforms: append([]n5v.Affine3D(nil), transforms...),
		Convention: conv,
	}
	for i, p := range paths {
		m.paths[i] = n5v.NormalizePath(p)
	}
	return m, nil
}

func (m *MultiScaleUnsorted) Path() string { return m.path }
func (m *MultiScaleUnsorted) metadata()    {}

func (m *MultiScaleUnsorted) Paths() []string {
	return append([]string(nil), m.paths...)
}

func (m *MultiScaleUnsorted) Transforms() []n5v.Affine3D {
	return append([]n5v.Affine3D(nil), m.transforms...)
}

// ChannelGroup holds one independent image per channel.  Each child is a
// SingleScale, GenericSingleScale, MultiScale or MultiScaleUnsorted.
type ChannelGroup struct {
	path     string
	Children []Metadata
}

// NewChannelGroup returns a channel group.  Children must be scale variants.
func NewChannelGroup(path string, children []Metadata) (*ChannelGroup, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("channel group %q has no channels", path)
	}
	for _, child := range children {
		switch child.(type) {
		case *SingleScale, *GenericSingleScale, *MultiScale, *MultiScaleUnsorted:
		default:
			return nil, fmt.Errorf("channel %q of group %q is not an image", child.Path(), path)
		}
	}
	return &ChannelGroup{path: n5v.NormalizePath(path), Children: children}, nil
}

func (m *ChannelGroup) Path() string { return m.path }
func (m *ChannelGroup) metadata()    {}

// GenericDataset is a dataset without a recognized spatial convention.  Axes holds
// the axis labels in dataset dimension order if the attributes carry any.
type GenericDataset struct {
	path    string
	Dataset *container.DatasetAttributes
	Axes    []string
}

// NewGenericDataset returns metadata for a plain dataset.
func NewGenericDataset(path string, dataset *container.DatasetAttributes, axes []string) *GenericDataset {
	return &GenericDataset{path: n5v.NormalizePath(path), Dataset: dataset, Axes: axes}
}

func (m *GenericDataset) Path() string { return m.path }
func (m *GenericDataset) metadata()    {}

package metadata

import (
	"github.com/janelia-flyem/n5viewer/n5v"
)

const cosemTransformKey = "transform"

// cosemTransform is stored in C order, i.e. the reverse of the N5 dimension order.
type cosemTransform struct {
	Axes      []string  `json:"axes"`
	Scale     []float64 `json:"scale"`
	Translate []float64 `json:"translate"`
	Units     []string  `json:"units"`
}

func reversed[T any](in []T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

// CosemParser recognizes datasets with a "transform" attribute of axes, scale,
// translate and units.
type CosemParser struct{}

func (CosemParser) ParseMetadata(node *Node) (Metadata, bool) {
	if !spatialDims(node.Dataset) {
		return nil, false
	}
	var ct cosemTransform
	if !node.Attributes.Decode(cosemTransformKey, &ct) {
		return nil, false
	}
	n := len(ct.Scale)
	if n != node.Dataset.NumDims() || len(ct.Translate) != n {
		return nil, false
	}
	if len(ct.Axes) != 0 && len(ct.Axes) != n {
		return nil, false
	}
	if len(ct.Units) != 0 && len(ct.Units) != n {
		return nil, false
	}
	scale, _ := pad3(reversed(ct.Scale), 1)
	translate, _ := pad3(reversed(ct.Translate), 0)
	transform := n5v.ScaleTranslation(scale, translate)
	if !invertible(node.Path, transform) {
		return nil, false
	}
	var units string
	if len(ct.Units) != 0 {
		units = ct.Units[len(ct.Units)-1]
	}
	return NewGenericSingleScale(node.Path, transform, ConventionCosem, reversed(ct.Axes), units, node.Dataset), true
}

// CosemMultiscaleParser recognizes groups whose datasets all follow the cosem
// convention.  The levels are kept in listing order and sorted geometrically when
// resolved.
type CosemMultiscaleParser struct{}

func (CosemMultiscaleParser) ParseMetadata(node *Node) (Metadata, bool) {
	if node.IsDataset() {
		return nil, false
	}
	var paths []string
	var transforms []n5v.Affine3D
	for _, child := range node.Children {
		if !child.IsDataset() {
			continue
		}
		md, ok := child.Metadata.(*GenericSingleScale)
		if !ok || md.Convention != ConventionCosem {
			return nil, false
		}
		paths = append(paths, md.Path())
		transforms = append(transforms, md.Transform())
	}
	md, err := NewMultiScaleUnsorted(node.Path, paths, transforms, ConventionCosem)
	if err != nil {
		return nil, false
	}
	return md, true
}

package metadata

import (
	"github.com/janelia-flyem/n5viewer/n5v"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	spatialTransformKey = "spatialTransform"
	multiscalesKey      = "multiscales"
	multichannelKey     = "multichannel"
)

// canonicalSchemaJSON constrains the shape of the canonical keys.  Lengths of the
// affine are checked when the transform is built so that a transform of another
// dimensionality only falls through to the axes.
const canonicalSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"definitions": {
		"pathList": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {"path": {"type": "string"}},
				"required": ["path"]
			}
		}
	},
	"properties": {
		"spatialTransform": {
			"type": "object",
			"properties": {
				"transform": {
					"type": "object",
					"properties": {
						"type": {"enum": ["affine"]},
						"affine": {"type": "array", "items": {"type": "number"}}
					},
					"required": ["type", "affine"]
				},
				"unit": {"type": "string"}
			},
			"required": ["transform"]
		},
		"axes": {
			"type": "array",
			"items": {
				"anyOf": [
					{"type": "string"},
					{
						"type": "object",
						"properties": {"label": {"type": "string"}},
						"required": ["label"]
					}
				]
			}
		},
		"multiscales": {
			"type": "object",
			"properties": {"datasets": {"$ref": "#/definitions/pathList"}}
		},
		"multichannel": {
			"type": "object",
			"properties": {"channels": {"$ref": "#/definitions/pathList"}}
		}
	}
}`

var canonicalSchema = jsonschema.MustCompileString("canonical.json", canonicalSchemaJSON)

type canonicalSpatial struct {
	Transform struct {
		Type   string    `json:"type"`
		Affine []float64 `json:"affine"`
	} `json:"transform"`
	Unit string `json:"unit"`
}

type canonicalPaths struct {
	Datasets []struct {
		Path string `json:"path"`
	} `json:"datasets"`
	Channels []struct {
		Path string `json:"path"`
	} `json:"channels"`
}

// CanonicalParser recognizes the convention-agnostic canonical attributes:
// datasets with a spatialTransform and/or axes, groups with multiscales or
// multichannel.  Attributes that do not validate against the canonical schema are
// not recognized.
type CanonicalParser struct{}

func (CanonicalParser) ParseMetadata(node *Node) (Metadata, bool) {
	attrs := node.Attributes
	if !attrs.Has(spatialTransformKey) && !attrs.Has("axes") && !attrs.Has(multiscalesKey) && !attrs.Has(multichannelKey) {
		return nil, false
	}
	generic, err := attrs.Generic()
	if err != nil {
		return nil, false
	}
	if err := canonicalSchema.Validate(generic); err != nil {
		n5v.Debugf("canonical attributes of %q do not validate: %v\n", node.Path, err)
		return nil, false
	}
	if node.IsDataset() {
		return parseCanonicalDataset(node)
	}
	if attrs.Has(multiscalesKey) {
		return parseCanonicalMultiscale(node)
	}
	if attrs.Has(multichannelKey) {
		return parseCanonicalMultichannel(node)
	}
	return nil, false
}

func parseCanonicalDataset(node *Node) (Metadata, bool) {
	axes := axesAttribute(node.Attributes)
	var spatial canonicalSpatial
	if spatialDims(node.Dataset) && node.Attributes.Decode(spatialTransformKey, &spatial) {
		transform, err := n5v.AffineFromRowPacked(spatial.Transform.Affine)
		if err == nil && invertible(node.Path, transform) {
			return NewGenericSingleScale(node.Path, transform, ConventionCanonical, axes, spatial.Unit, node.Dataset), true
		}
	}
	if len(axes) != 0 {
		return NewGenericDataset(node.Path, node.Dataset, axes), true
	}
	return nil, false
}

// selectedChildren returns the listed children in list order, or all children if
// the list is empty.
func selectedChildren(node *Node, listed []string) []*Node {
	if len(listed) == 0 {
		return node.Children
	}
	var children []*Node
	for _, p := range listed {
		if child := node.Find(n5v.JoinPath(node.Path, p)); child != nil {
			children = append(children, child)
		}
	}
	return children
}

func parseCanonicalMultiscale(node *Node) (Metadata, bool) {
	var cp canonicalPaths
	node.Attributes.Decode(multiscalesKey, &cp)
	listed := make([]string, len(cp.Datasets))
	for i, d := range cp.Datasets {
		listed[i] = d.Path
	}
	var paths []string
	var transforms []n5v.Affine3D
	for _, child := range selectedChildren(node, listed) {
		md, ok := child.Metadata.(*GenericSingleScale)
		if !ok || md.Convention != ConventionCanonical {
			continue
		}
		paths = append(paths, md.Path())
		transforms = append(transforms, md.Transform())
	}
	md, err := NewMultiScaleUnsorted(node.Path, paths, transforms, ConventionCanonical)
	if err != nil {
		return nil, false
	}
	return md, true
}

func parseCanonicalMultichannel(node *Node) (Metadata, bool) {
	var cp canonicalPaths
	node.Attributes.Decode(multichannelKey, &cp)
	listed := make([]string, len(cp.Channels))
	for i, c := range cp.Channels {
		listed[i] = c.Path
	}
	var channels []Metadata
	for _, child := range selectedChildren(node, listed) {
		switch child.Metadata.(type) {
		case *SingleScale, *GenericSingleScale, *MultiScale, *MultiScaleUnsorted:
			channels = append(channels, child.Metadata)
		}
	}
	md, err := NewChannelGroup(node.Path, channels)
	if err != nil {
		return nil, false
	}
	return md, true
}

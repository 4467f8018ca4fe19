package metadata

import (
	"regexp"
	"strconv"

	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/n5v"
)

// N5 viewer attribute keys.
const (
	pixelResolutionKey     = "pixelResolution"
	downsamplingFactorsKey = "downsamplingFactors"
	scalesKey              = "scales"
	unitKey                = "unit"
)

var (
	scaleLevelRegexp = regexp.MustCompile(`^s(\d+)$`)
	channelRegexp    = regexp.MustCompile(`^c(\d+)$`)
)

// pixelResolution reads the resolution either as a plain array or as an object
// with "dimensions" and "unit".  A missing attribute gives unit resolution.
func pixelResolution(attrs container.Attributes) (res [3]float64, units string, ok bool) {
	res = [3]float64{1, 1, 1}
	if !attrs.Has(pixelResolutionKey) {
		return res, "", true
	}
	if values, found := attrs.Floats(pixelResolutionKey); found {
		res, ok = pad3(values, 1)
		return
	}
	var obj struct {
		Dimensions []float64 `json:"dimensions"`
		Unit       string    `json:"unit"`
	}
	if !attrs.Decode(pixelResolutionKey, &obj) {
		return res, "", false
	}
	res, ok = pad3(obj.Dimensions, 1)
	return res, obj.Unit, ok
}

// downsamplingFactors reads the factors, giving all ones if absent.
func downsamplingFactors(attrs container.Attributes) ([3]float64, bool) {
	if !attrs.Has(downsamplingFactorsKey) {
		return [3]float64{1, 1, 1}, true
	}
	values, found := attrs.Floats(downsamplingFactorsKey)
	if !found {
		return [3]float64{1, 1, 1}, false
	}
	return pad3(values, 1)
}

// n5viewerSingleScale builds the metadata of a dataset, reading attributes the
// dataset lacks from its parent group, if given.
func n5viewerSingleScale(node *Node, parent container.Attributes, level int) (*SingleScale, bool) {
	attrs := node.Attributes
	resAttrs := attrs
	if parent != nil && !attrs.Has(pixelResolutionKey) {
		resAttrs = parent
	}
	res, units, ok := pixelResolution(resAttrs)
	if !ok {
		return nil, false
	}
	if units == "" {
		if units, ok = attrs.String(unitKey); !ok && parent != nil {
			units, _ = parent.String(unitKey)
		}
	}
	if units == "" {
		units = DefaultUnit
	}

	var factors [3]float64
	if !attrs.Has(downsamplingFactorsKey) && parent != nil && level >= 0 {
		// older containers list the factors of every level on the group
		factors = [3]float64{1, 1, 1}
		var scales [][]float64
		if parent.Decode(scalesKey, &scales) && level < len(scales) {
			if factors, ok = pad3(scales[level], 1); !ok {
				return nil, false
			}
		}
	} else if factors, ok = downsamplingFactors(attrs); !ok {
		return nil, false
	}

	md := NewSingleScale(node.Path, res, factors, units, node.Dataset)
	if !invertible(node.Path, md.Transform()) {
		return nil, false
	}
	return md, true
}

// N5ViewerSingleScaleParser recognizes 2D and 3D datasets with pixelResolution
// and/or downsamplingFactors attributes.
type N5ViewerSingleScaleParser struct{}

func (N5ViewerSingleScaleParser) ParseMetadata(node *Node) (Metadata, bool) {
	if !spatialDims(node.Dataset) {
		return nil, false
	}
	if !node.Attributes.Has(pixelResolutionKey) && !node.Attributes.Has(downsamplingFactorsKey) {
		return nil, false
	}
	md, ok := n5viewerSingleScale(node, nil, -1)
	if !ok {
		return nil, false
	}
	return md, true
}

// N5ViewerMultiscaleParser recognizes groups with scale level datasets named s0,
// s1, ...  Levels are ordered by the number in their name.  A level without its
// own N5 viewer attributes takes the resolution from the group and its factors
// from the group's "scales" list.
type N5ViewerMultiscaleParser struct{}

func (N5ViewerMultiscaleParser) ParseMetadata(node *Node) (Metadata, bool) {
	if node.IsDataset() {
		return nil, false
	}
	levels := indexedChildren(node, scaleLevelRegexp)
	if len(levels) == 0 {
		return nil, false
	}
	children := make([]*SingleScale, 0, len(levels))
	for _, level := range levels {
		// levels are rebuilt so that attributes given on the group apply to them
		switch md := level.Metadata.(type) {
		case *SingleScale:
		case *GenericSingleScale:
			if md.Convention != ConventionGeneric {
				return nil, false
			}
		case *GenericDataset:
		default:
			return nil, false
		}
		if !spatialDims(level.Dataset) {
			return nil, false
		}
		index, _ := strconv.Atoi(scaleLevelRegexp.FindStringSubmatch(level.Name)[1])
		md, ok := n5viewerSingleScale(level, node.Attributes, index)
		if !ok {
			return nil, false
		}
		children = append(children, md)
	}
	md, err := NewMultiScale(node.Path, children)
	if err != nil {
		return nil, false
	}
	return md, true
}

// N5ViewerMultichannelParser recognizes groups whose children named c0, c1, ... are
// multiscale images.  Other children are ignored.
type N5ViewerMultichannelParser struct{}

func (N5ViewerMultichannelParser) ParseMetadata(node *Node) (Metadata, bool) {
	if node.IsDataset() {
		return nil, false
	}
	var channels []Metadata
	for _, child := range indexedChildren(node, channelRegexp) {
		if ms, ok := child.Metadata.(MultiscaleMetadata); ok {
			channels = append(channels, ms)
		} else {
			n5v.Debugf("channel candidate %q of %q is not multiscale\n", child.Name, node.Path)
		}
	}
	md, err := NewChannelGroup(node.Path, channels)
	if err != nil {
		return nil, false
	}
	return md, true
}

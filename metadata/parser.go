package metadata

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/n5v"
)

// Parser recognizes one attribute convention.  ParseMetadata returns false if the
// node does not follow the convention; absent or malformed attributes are never
// an error.
type Parser interface {
	ParseMetadata(node *Node) (Metadata, bool)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(node *Node) (Metadata, bool)

func (f ParserFunc) ParseMetadata(node *Node) (Metadata, bool) {
	return f(node)
}

// DefaultGroupParsers returns the parsers tried on group nodes, most specific
// first.
func DefaultGroupParsers() []Parser {
	return []Parser{
		CosemMultiscaleParser{},
		N5ViewerMultiscaleParser{},
		CanonicalParser{},
		N5ViewerMultichannelParser{},
	}
}

// DefaultDatasetParsers returns the parsers tried on dataset nodes.  The generic
// parser matches any 2D or 3D dataset, so it is last.
func DefaultDatasetParsers() []Parser {
	return DatasetParsers(DefaultGenericParser)
}

// DatasetParsers returns the dataset parsers with a custom generic fallback.
func DatasetParsers(generic GenericSingleScaleParser) []Parser {
	return []Parser{
		CosemParser{},
		N5ViewerSingleScaleParser{},
		CanonicalParser{},
		generic,
	}
}

// spatialDims returns true if a dataset can be placed in 3D space.
func spatialDims(d *container.DatasetAttributes) bool {
	return d != nil && d.NumDims() >= 2 && d.NumDims() <= 3
}

// pad3 extends a 2D vector with fill.  Longer inputs or empty inputs are rejected.
func pad3(v []float64, fill float64) ([3]float64, bool) {
	out := [3]float64{fill, fill, fill}
	if len(v) == 0 || len(v) > 3 {
		return out, false
	}
	copy(out[:], v)
	return out, true
}

// indexedChildren returns children whose names match re, ordered by the integer
// captured by the first group of re.
func indexedChildren(node *Node, re *regexp.Regexp) []*Node {
	type indexed struct {
		index int
		node  *Node
	}
	var matches []indexed
	for _, child := range node.Children {
		m := re.FindStringSubmatch(child.Name)
		if m == nil {
			continue
		}
		i, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		matches = append(matches, indexed{i, child})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].index < matches[j].index
	})
	nodes := make([]*Node, len(matches))
	for i, m := range matches {
		nodes[i] = m.node
	}
	return nodes
}

// axesAttribute reads "axes" as either a list of labels or a list of objects
// with a "label" field.
func axesAttribute(attrs container.Attributes) []string {
	var labels []string
	if attrs.Decode("axes", &labels) {
		return labels
	}
	var axes []struct {
		Label string `json:"label"`
	}
	if !attrs.Decode("axes", &axes) {
		return nil
	}
	labels = make([]string, len(axes))
	for i, a := range axes {
		labels[i] = a.Label
	}
	return labels
}

// invertible logs and rejects singular transforms.
func invertible(path string, t n5v.Affine3D) bool {
	if t.IsInvertible() {
		return true
	}
	n5v.Debugf("ignoring non-invertible transform for %q: %s\n", path, t)
	return false
}

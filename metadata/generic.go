package metadata

// GenericSingleScaleParser places any 2D or 3D dataset in space using the
// attribute keys it is configured with.  Missing keys give the identity.
type GenericSingleScaleParser struct {
	ResolutionKey          string `toml:"resolution"`
	OffsetKey              string `toml:"offset"`
	DownsamplingFactorsKey string `toml:"downsampling_factors"`
	UnitKey                string `toml:"unit"`
}

// DefaultGenericParser uses the commonly written attribute names.
var DefaultGenericParser = GenericSingleScaleParser{
	ResolutionKey:          "resolution",
	OffsetKey:              "offset",
	DownsamplingFactorsKey: "downsamplingFactors",
	UnitKey:                "unit",
}

func (p GenericSingleScaleParser) floats(node *Node, key string, fill float64) ([3]float64, bool) {
	if key == "" || !node.Attributes.Has(key) {
		return [3]float64{fill, fill, fill}, true
	}
	values, ok := node.Attributes.Floats(key)
	if !ok {
		return [3]float64{}, false
	}
	return pad3(values, fill)
}

func (p GenericSingleScaleParser) ParseMetadata(node *Node) (Metadata, bool) {
	if !spatialDims(node.Dataset) {
		return nil, false
	}
	res, ok := p.floats(node, p.ResolutionKey, 1)
	if !ok {
		return nil, false
	}
	offset, ok := p.floats(node, p.OffsetKey, 0)
	if !ok {
		return nil, false
	}
	factors, ok := p.floats(node, p.DownsamplingFactorsKey, 1)
	if !ok {
		return nil, false
	}
	transform := mipmapTransform(res, factors)
	for i, o := range offset {
		transform.Set(i, 3, transform.Get(i, 3)+o)
	}
	if !invertible(node.Path, transform) {
		return nil, false
	}
	var units string
	if p.UnitKey != "" {
		units, _ = node.Attributes.String(p.UnitKey)
	}
	return NewGenericSingleScale(node.Path, transform, ConventionGeneric, nil, units, node.Dataset), true
}

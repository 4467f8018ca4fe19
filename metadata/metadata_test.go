package metadata

import (
	"context"
	"errors"
	"testing"

	. "github.com/janelia-flyem/go/gocheck"
	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/n5v"

	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type DiscoverSuite struct {
	ctx    context.Context
	bucket *blob.Bucket
	writer *container.Writer
}

var _ = Suite(&DiscoverSuite{})

func (s *DiscoverSuite) SetUpTest(c *C) {
	s.ctx = context.Background()
	s.bucket = memblob.OpenBucket(nil)
	s.writer = container.NewWriter(s.bucket)
	c.Assert(s.writer.SetAttributes(s.ctx, "", map[string]interface{}{"n5": "2.5.0"}), IsNil)
}

func (s *DiscoverSuite) TearDownTest(c *C) {
	s.bucket.Close()
}

func (s *DiscoverSuite) dataset(c *C, path string, dims []int64, attrs map[string]interface{}) {
	bs := make([]int, len(dims))
	for i := range bs {
		bs[i] = 64
	}
	d := &container.DatasetAttributes{
		Dimensions:  dims,
		BlockSize:   bs,
		DataType:    "uint8",
		Compression: container.Compression{Type: "raw"},
	}
	c.Assert(s.writer.CreateDataset(s.ctx, path, d), IsNil)
	if attrs != nil {
		c.Assert(s.writer.SetAttributes(s.ctx, path, attrs), IsNil)
	}
}

func (s *DiscoverSuite) discover(c *C, path string) *Node {
	reader, err := container.NewN5Reader(s.ctx, "mem://test", s.bucket, 0)
	c.Assert(err, IsNil)
	root, err := Discover(s.ctx, reader, path, DefaultGroupParsers(), DefaultDatasetParsers())
	c.Assert(err, IsNil)
	return root
}

func (s *DiscoverSuite) TestN5ViewerMultiscale(c *C) {
	c.Assert(s.writer.SetAttributes(s.ctx, "ms", map[string]interface{}{
		"pixelResolution": map[string]interface{}{"dimensions": []float64{2, 2, 4}, "unit": "nm"},
	}), IsNil)
	s.dataset(c, "ms/s0", []int64{64, 64, 32}, nil)
	s.dataset(c, "ms/s1", []int64{32, 32, 16}, map[string]interface{}{"downsamplingFactors": []float64{2, 2, 2}})
	s.dataset(c, "ms/s2", []int64{16, 16, 8}, map[string]interface{}{"downsamplingFactors": []float64{4, 4, 4}})
	s.dataset(c, "ms/s10", []int64{1, 1, 1}, map[string]interface{}{"downsamplingFactors": []float64{1024, 1024, 1024}})

	root := s.discover(c, "")
	node := root.Find("ms")
	c.Assert(node, NotNil)
	ms, ok := node.Metadata.(*MultiScale)
	c.Assert(ok, Equals, true)
	c.Assert(ms.Paths(), DeepEquals, []string{"ms/s0", "ms/s1", "ms/s2", "ms/s10"})

	transforms := ms.Transforms()
	c.Assert(transforms[0], Equals, n5v.ScaleTranslation([3]float64{2, 2, 4}, [3]float64{}))
	// half-voxel offset of a factor 2 level: res * (f-1)/2
	c.Assert(transforms[1], Equals, n5v.ScaleTranslation([3]float64{4, 4, 8}, [3]float64{1, 1, 2}))
	c.Assert(ms.Children[1].Units(), Equals, "nm")
	c.Assert(ms.Children[0].DatasetAttributes().Dimensions, DeepEquals, []int64{64, 64, 32})
}

func (s *DiscoverSuite) TestN5ViewerGroupScales(c *C) {
	c.Assert(s.writer.SetAttributes(s.ctx, "legacy", map[string]interface{}{
		"scales": [][]float64{{1, 1, 1}, {2, 2, 1}},
	}), IsNil)
	s.dataset(c, "legacy/s0", []int64{64, 64, 32}, nil)
	s.dataset(c, "legacy/s1", []int64{32, 32, 32}, nil)

	ms, ok := s.discover(c, "legacy").Metadata.(*MultiScale)
	c.Assert(ok, Equals, true)
	c.Assert(ms.Children[1].DownsamplingFactors, Equals, [3]float64{2, 2, 1})
	c.Assert(ms.Children[1].Units(), Equals, DefaultUnit)
}

func (s *DiscoverSuite) TestMultichannelSelection(c *C) {
	for _, ch := range []string{"mc/c0", "mc/c1", "mc/other"} {
		s.dataset(c, ch+"/s0", []int64{10, 10, 10}, map[string]interface{}{"pixelResolution": []float64{1, 1, 1}})
		s.dataset(c, ch+"/s1", []int64{5, 5, 5}, map[string]interface{}{"downsamplingFactors": []float64{2, 2, 2}})
	}
	// a channel-like name that holds a single dataset is not a channel
	s.dataset(c, "mc/c2", []int64{10, 10, 10}, nil)

	root := s.discover(c, "")
	group, ok := root.Find("mc").Metadata.(*ChannelGroup)
	c.Assert(ok, Equals, true)
	c.Assert(group.Children, HasLen, 2)
	c.Assert(group.Children[0].Path(), Equals, "mc/c0")
	c.Assert(group.Children[1].Path(), Equals, "mc/c1")

	_, ok = root.Find("mc/other").Metadata.(*MultiScale)
	c.Assert(ok, Equals, true)
}

func (s *DiscoverSuite) TestCosem(c *C) {
	cosem := func(scale, translate []float64) map[string]interface{} {
		return map[string]interface{}{
			"transform": map[string]interface{}{
				"axes":      []string{"z", "y", "x"},
				"scale":     scale,
				"translate": translate,
				"units":     []string{"um", "um", "nm"},
			},
		}
	}
	s.dataset(c, "single", []int64{7, 5, 3}, cosem([]float64{2, 3, 4}, []float64{-1, -2, -3}))
	s.dataset(c, "pyr/s0", []int64{8, 8, 8}, cosem([]float64{2, 2, 2}, []float64{0, 0, 0}))
	s.dataset(c, "pyr/s1", []int64{8, 8, 8}, cosem([]float64{1, 1, 1}, []float64{0, 0, 0}))
	s.dataset(c, "singular", []int64{7, 5, 3}, cosem([]float64{0, 1, 1}, []float64{0, 0, 0}))
	s.dataset(c, "mismatch", []int64{7, 5}, cosem([]float64{1, 1, 1}, []float64{0, 0, 0}))

	root := s.discover(c, "")

	md, ok := root.Find("single").Metadata.(*GenericSingleScale)
	c.Assert(ok, Equals, true)
	c.Assert(md.Convention, Equals, ConventionCosem)
	c.Assert(md.Transform().Scales(), Equals, [3]float64{4, 3, 2})
	c.Assert(md.Transform().Translation(), Equals, [3]float64{-3, -2, -1})
	c.Assert(md.Axes(), DeepEquals, []string{"x", "y", "z"})
	c.Assert(md.Units(), Equals, "nm")

	pyr, ok := root.Find("pyr").Metadata.(*MultiScaleUnsorted)
	c.Assert(ok, Equals, true)
	c.Assert(pyr.Convention, Equals, ConventionCosem)
	c.Assert(pyr.Paths(), DeepEquals, []string{"pyr/s0", "pyr/s1"})

	// a non-invertible cosem transform falls through to the generic parser
	fallback, ok := root.Find("singular").Metadata.(*GenericSingleScale)
	c.Assert(ok, Equals, true)
	c.Assert(fallback.Convention, Equals, ConventionGeneric)
	c.Assert(fallback.Transform(), Equals, n5v.IdentityAffine())

	fallback, ok = root.Find("mismatch").Metadata.(*GenericSingleScale)
	c.Assert(ok, Equals, true)
	c.Assert(fallback.Convention, Equals, ConventionGeneric)
}

func (s *DiscoverSuite) TestPriority(c *C) {
	s.dataset(c, "both", []int64{4, 4, 4}, map[string]interface{}{
		"pixelResolution": []float64{9, 9, 9},
		"transform": map[string]interface{}{
			"axes":      []string{"z", "y", "x"},
			"scale":     []float64{1, 2, 3},
			"translate": []float64{0, 0, 0},
		},
	})
	md, ok := s.discover(c, "both").Metadata.(*GenericSingleScale)
	c.Assert(ok, Equals, true)
	c.Assert(md.Convention, Equals, ConventionCosem)
}

func (s *DiscoverSuite) TestCanonical(c *C) {
	s.dataset(c, "can/a", []int64{10, 10}, map[string]interface{}{
		"spatialTransform": map[string]interface{}{
			"transform": map[string]interface{}{"type": "affine", "affine": []float64{4, 0, 1, 0, 4, 2}},
			"unit":      "um",
		},
	})
	s.dataset(c, "can/b", []int64{20, 20, 20}, map[string]interface{}{
		"spatialTransform": map[string]interface{}{
			"transform": map[string]interface{}{"type": "affine", "affine": []float64{2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 2, 0}},
		},
	})
	s.dataset(c, "can/ignored", []int64{20, 20, 20}, map[string]interface{}{
		"spatialTransform": map[string]interface{}{
			"transform": map[string]interface{}{"type": "affine", "affine": []float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0}},
		},
	})
	c.Assert(s.writer.SetAttributes(s.ctx, "can", map[string]interface{}{
		"multiscales": map[string]interface{}{
			"datasets": []map[string]string{{"path": "b"}, {"path": "a"}},
		},
	}), IsNil)
	s.dataset(c, "img6d", []int64{3, 5, 7, 11, 13, 17}, map[string]interface{}{
		"axes": []map[string]string{{"label": "x"}, {"label": "y"}, {"label": "z"}, {"label": "t"}, {"label": "c"}, {"label": "q"}},
	})
	s.dataset(c, "invalid", []int64{4, 4, 4}, map[string]interface{}{"axes": 5})

	root := s.discover(c, "")

	a, ok := root.Find("can/a").Metadata.(*GenericSingleScale)
	c.Assert(ok, Equals, true)
	c.Assert(a.Convention, Equals, ConventionCanonical)
	c.Assert(a.Transform(), Equals, n5v.Lift2D([6]float64{4, 0, 1, 0, 4, 2}))
	c.Assert(a.Units(), Equals, "um")

	ms, ok := root.Find("can").Metadata.(*MultiScaleUnsorted)
	c.Assert(ok, Equals, true)
	c.Assert(ms.Paths(), DeepEquals, []string{"can/b", "can/a"})

	img, ok := root.Find("img6d").Metadata.(*GenericDataset)
	c.Assert(ok, Equals, true)
	c.Assert(img.Axes, DeepEquals, []string{"x", "y", "z", "t", "c", "q"})
	c.Assert(img.Dataset.Dimensions, DeepEquals, []int64{3, 5, 7, 11, 13, 17})

	invalid, ok := root.Find("invalid").Metadata.(*GenericSingleScale)
	c.Assert(ok, Equals, true)
	c.Assert(invalid.Convention, Equals, ConventionGeneric)
}

func (s *DiscoverSuite) TestCanonicalMultichannel(c *C) {
	for _, ch := range []string{"red", "green"} {
		s.dataset(c, "chans/"+ch, []int64{8, 8, 8}, map[string]interface{}{"pixelResolution": []float64{1, 1, 1}})
	}
	c.Assert(s.writer.SetAttributes(s.ctx, "chans", map[string]interface{}{
		"multichannel": map[string]interface{}{
			"channels": []map[string]string{{"path": "green"}, {"path": "red"}},
		},
	}), IsNil)
	group, ok := s.discover(c, "chans").Metadata.(*ChannelGroup)
	c.Assert(ok, Equals, true)
	c.Assert(group.Children, HasLen, 2)
	c.Assert(group.Children[0].Path(), Equals, "chans/green")
}

func (s *DiscoverSuite) TestTree(c *C) {
	s.dataset(c, "a/b/vol", []int64{4, 4, 4}, nil)
	s.dataset(c, "a/big", []int64{4, 4, 4, 4}, nil)
	c.Assert(s.writer.CreateGroup(s.ctx, "a/empty"), IsNil)

	root := s.discover(c, "")
	c.Assert(root.Path, Equals, "")
	c.Assert(root.Find("/a/b/vol/").Name, Equals, "vol")
	c.Assert(root.Find("a/nothing"), IsNil)
	c.Assert(root.Find("a").Find("a/b"), NotNil)
	c.Assert(root.Find("a").Find("b"), IsNil)
	c.Assert(root.Find("a/empty").Metadata, IsNil)

	_, ok := root.Find("a/big").Metadata.(*GenericDataset)
	c.Assert(ok, Equals, true)

	selected := root.Selected()
	c.Assert(selected, HasLen, 2)
	c.Assert(selected[0].Path(), Equals, "a/b/vol")
	c.Assert(selected[1].Path(), Equals, "a/big")
}

type failingReader struct {
	container.Reader
}

func (r failingReader) List(ctx context.Context, path string) ([]string, error) {
	return nil, errors.New("connection reset")
}

func (s *DiscoverSuite) TestDiscoverError(c *C) {
	c.Assert(s.writer.CreateGroup(s.ctx, "g"), IsNil)
	reader, err := container.NewN5Reader(s.ctx, "mem://test", s.bucket, 0)
	c.Assert(err, IsNil)
	_, err = Discover(s.ctx, failingReader{reader}, "", DefaultGroupParsers(), DefaultDatasetParsers())
	c.Assert(err, ErrorMatches, "connection reset")
}

type ParserSuite struct{}

var _ = Suite(&ParserSuite{})

func dataset3D() *container.DatasetAttributes {
	return &container.DatasetAttributes{
		Dimensions: []int64{10, 10, 10},
		BlockSize:  []int{10, 10, 10},
		DataType:   "uint16",
	}
}

func node(attrs map[string]string) *Node {
	n := &Node{Path: "img", Name: "img", Attributes: container.Attributes{}, Dataset: dataset3D()}
	for k, v := range attrs {
		n.Attributes[k] = []byte(v)
	}
	return n
}

func (s *ParserSuite) TestGenericKeys(c *C) {
	p := GenericSingleScaleParser{ResolutionKey: "res", OffsetKey: "origin", UnitKey: "u"}
	md, ok := p.ParseMetadata(node(map[string]string{
		"res":    "[2, 3, 4]",
		"origin": "[10, 20, 30]",
		"u":      `"mm"`,
	}))
	c.Assert(ok, Equals, true)
	gs := md.(*GenericSingleScale)
	c.Assert(gs.Transform(), Equals, n5v.ScaleTranslation([3]float64{2, 3, 4}, [3]float64{10, 20, 30}))
	c.Assert(gs.Units(), Equals, "mm")

	md, ok = DefaultGenericParser.ParseMetadata(node(nil))
	c.Assert(ok, Equals, true)
	c.Assert(md.(*GenericSingleScale).Transform(), Equals, n5v.IdentityAffine())
	c.Assert(md.(*GenericSingleScale).Units(), Equals, DefaultUnit)

	_, ok = p.ParseMetadata(node(map[string]string{"res": `"fine"`}))
	c.Assert(ok, Equals, false)
	_, ok = p.ParseMetadata(node(map[string]string{"res": "[1, 2, 3, 4]"}))
	c.Assert(ok, Equals, false)

	n := node(nil)
	n.Dataset = nil
	_, ok = DefaultGenericParser.ParseMetadata(n)
	c.Assert(ok, Equals, false)
}

func (s *ParserSuite) TestN5ViewerSingleScale(c *C) {
	var p N5ViewerSingleScaleParser
	_, ok := p.ParseMetadata(node(nil))
	c.Assert(ok, Equals, false)

	md, ok := p.ParseMetadata(node(map[string]string{"downsamplingFactors": "[4, 4, 2]"}))
	c.Assert(ok, Equals, true)
	c.Assert(md.(*SingleScale).Transform(), Equals, n5v.ScaleTranslation([3]float64{4, 4, 2}, [3]float64{1.5, 1.5, 0.5}))

	_, ok = p.ParseMetadata(node(map[string]string{"pixelResolution": "[0, 1, 1]"}))
	c.Assert(ok, Equals, false)
	_, ok = p.ParseMetadata(node(map[string]string{"pixelResolution": `{"unit": "nm"}`}))
	c.Assert(ok, Equals, false)
}

func (s *ParserSuite) TestParserFunc(c *C) {
	calls := 0
	first := ParserFunc(func(n *Node) (Metadata, bool) {
		calls++
		return NewGenericDataset(n.Path, n.Dataset, nil), true
	})
	md := parseWith([]Parser{first, DefaultGenericParser}, node(nil))
	_, ok := md.(*GenericDataset)
	c.Assert(ok, Equals, true)
	c.Assert(calls, Equals, 1)
}

func (s *ParserSuite) TestConstructors(c *C) {
	_, err := NewMultiScale("x", nil)
	c.Assert(err, NotNil)
	_, err = NewMultiScaleUnsorted("x", []string{"a"}, nil, ConventionCosem)
	c.Assert(err, NotNil)
	_, err = NewChannelGroup("x", []Metadata{NewGenericDataset("d", nil, nil)})
	c.Assert(err, NotNil)

	ms, err := NewMultiScaleUnsorted("/x/", []string{"/x/a"}, []n5v.Affine3D{n5v.IdentityAffine()}, ConventionCosem)
	c.Assert(err, IsNil)
	c.Assert(ms.Path(), Equals, "x")
	c.Assert(ms.Paths(), DeepEquals, []string{"x/a"})
}

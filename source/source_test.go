package source

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/janelia-flyem/go/gocheck"
	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/metadata"
	"github.com/janelia-flyem/n5viewer/n5v"

	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type AssembleSuite struct {
	ctx    context.Context
	bucket *blob.Bucket
	writer *container.Writer
	reader container.Reader
	opener *container.Opener
	queue  *Queue
}

var _ = Suite(&AssembleSuite{})

func (s *AssembleSuite) dataset(c *C, path, dtype string, dims []int64, blockSize []int) *container.DatasetAttributes {
	d := &container.DatasetAttributes{
		Dimensions:  dims,
		BlockSize:   blockSize,
		DataType:    dtype,
		Compression: container.Compression{Type: "gzip"},
	}
	c.Assert(s.writer.CreateDataset(s.ctx, path, d), IsNil)
	return d
}

func (s *AssembleSuite) SetUpTest(c *C) {
	s.ctx = context.Background()
	s.bucket = memblob.OpenBucket(nil)
	s.writer = container.NewWriter(s.bucket)
	c.Assert(s.writer.SetAttributes(s.ctx, "", map[string]interface{}{"n5": "2.5.1"}), IsNil)

	vol := s.dataset(c, "vol3d", "uint8", []int64{16, 16, 8}, []int{8, 8, 8})
	c.Assert(s.writer.WriteBlock(s.ctx, "vol3d", vol, []int64{0, 0, 0}, []int{8, 8, 8}, make([]byte, 512)), IsNil)
	img := s.dataset(c, "img2d", "uint16", []int64{16, 16}, []int{8, 8})
	c.Assert(s.writer.WriteBlock(s.ctx, "img2d", img, []int64{1, 1}, []int{8, 8}, make([]byte, 128)), IsNil)
	s.dataset(c, "big4d", "uint8", []int64{4, 4, 4, 4}, []int{4, 4, 4, 4})
	s.dataset(c, "pyr/s0", "float32", []int64{16, 16, 8}, []int{8, 8, 8})
	s.dataset(c, "pyr/s1", "float32", []int64{8, 8, 4}, []int{8, 8, 4})
	s.dataset(c, "img6d", "int8", []int64{3, 5, 7, 11, 13, 17}, []int{17, 17, 17, 17, 17, 17})

	reader, err := container.NewN5Reader(s.ctx, "mem://test", s.bucket, 0)
	c.Assert(err, IsNil)
	s.reader = reader
	s.opener = container.NewOpener(reader, container.NewBlockCache(1<<20))
	s.queue = NewQueue(2)
}

func (s *AssembleSuite) TearDownTest(c *C) {
	s.queue.Close()
	s.bucket.Close()
}

func (s *AssembleSuite) assembler() *Assembler {
	return &Assembler{Opener: s.opener, Queue: s.queue}
}

func single(path string) metadata.Metadata {
	return metadata.NewGenericSingleScale(path, n5v.IdentityAffine(), metadata.ConventionGeneric, nil, "", nil)
}

func (s *AssembleSuite) TestSkipEntry(c *C) {
	batch, err := s.assembler().BuildSources(s.ctx, []metadata.Metadata{
		single("vol3d"), single("big4d"), single("img2d"),
	})
	c.Assert(err, IsNil)
	c.Assert(batch.Sources, HasLen, 2)
	c.Assert(batch.Sources[0].Name(), Equals, "source 1")
	c.Assert(batch.Sources[1].Name(), Equals, "source 3")
	c.Assert(batch.Skipped, HasLen, 1)
	c.Assert(batch.Skipped[0].Index, Equals, 2)
	c.Assert(batch.Skipped[0].Path, Equals, "big4d")
	c.Assert(batch.Volatile, HasLen, 2)
	c.Assert(batch.NumTimepoints, Equals, 1)

	// one 2D and one 3D array make a 3D batch
	c.Assert(batch.Is2D, Equals, false)
	c.Assert(batch.Sources[1].Type(), Equals, n5v.PixelType{T: n5v.T_uint16})
	c.Assert(batch.Volatile[1].Type(), Equals, n5v.PixelType{T: n5v.T_uint16, Volatile: true})

	missing, err := s.assembler().BuildSources(s.ctx, []metadata.Metadata{single("pyr")})
	c.Assert(err, IsNil)
	c.Assert(missing.Sources, HasLen, 0)
	c.Assert(missing.Skipped, HasLen, 1)
	c.Assert(missing.Is2D, Equals, false)
	c.Assert(missing.NumTimepoints, Equals, 0)
}

func (s *AssembleSuite) Test2DLift(c *C) {
	batch, err := s.assembler().BuildSources(s.ctx, []metadata.Metadata{single("img2d")})
	c.Assert(err, IsNil)
	c.Assert(batch.Is2D, Equals, true)
	src := batch.Sources[0]
	c.Assert(src.Dimensions(0, 0), Equals, [3]int64{16, 16, 1})
	c.Assert(src.SourceTransform(0, 0), Equals, n5v.IdentityAffine())
	c.Assert(src.Level(0).NativeDims, Equals, 2)

	block, err := src.Block(s.ctx, 0, 0, [3]int64{1, 1, 0})
	c.Assert(err, IsNil)
	c.Assert(block.Data, HasLen, 128)
	block, err = src.Block(s.ctx, 0, 0, [3]int64{1, 1, 1})
	c.Assert(err, IsNil)
	c.Assert(block, IsNil)

	vol := batch.Volatile[0]
	c.Assert(vol.Dimensions(0, 0), Equals, src.Dimensions(0, 0))
	c.Assert(vol.SourceTransform(0, 0), Equals, src.SourceTransform(0, 0))
	c.Assert(vol.NumMipmapLevels(), Equals, 1)
}

func (s *AssembleSuite) TestSortedPyramidAndChannels(c *C) {
	pyr, err := metadata.NewMultiScaleUnsorted("pyr", []string{"pyr/s1", "pyr/s0"}, []n5v.Affine3D{
		n5v.ScaleTranslation([3]float64{2, 2, 2}, [3]float64{0.5, 0.5, 0.5}),
		n5v.IdentityAffine(),
	}, metadata.ConventionCosem)
	c.Assert(err, IsNil)
	group, err := metadata.NewChannelGroup("", []metadata.Metadata{pyr, single("vol3d")})
	c.Assert(err, IsNil)

	batch, err := s.assembler().BuildSources(s.ctx, []metadata.Metadata{group})
	c.Assert(err, IsNil)
	c.Assert(batch.Sources, HasLen, 2)
	c.Assert(batch.Sources[0].Name(), Equals, "source 1 c0")
	c.Assert(batch.Sources[1].Name(), Equals, "source 1 c1")

	src := batch.Sources[0]
	c.Assert(src.NumMipmapLevels(), Equals, 2)
	c.Assert(src.Level(0).Array.Path(), Equals, "pyr/s0")
	c.Assert(src.Dimensions(0, 1), Equals, [3]int64{8, 8, 4})
	c.Assert(src.Type().T, Equals, n5v.T_float32)
}

type failingOpener struct{}

func (failingOpener) Open(ctx context.Context, path string) (container.Array, error) {
	return nil, errors.New("disk on fire")
}

func (s *AssembleSuite) TestIOFailure(c *C) {
	a := &Assembler{Opener: failingOpener{}}
	batch, err := a.BuildSources(s.ctx, []metadata.Metadata{single("vol3d")})
	c.Assert(batch, IsNil)
	c.Assert(err, ErrorMatches, ".*disk on fire")

	_, err = a.BuildSources(s.ctx, []metadata.Metadata{metadata.NewGenericDataset("img6d", nil, nil)})
	c.Assert(err, ErrorMatches, ".*disk on fire")
}

func (s *AssembleSuite) TestAxisSources(c *C) {
	tests := []struct {
		axes       []string
		numSources int
		size       [3]int64
		timepoints int
	}{
		{[]string{"x", "y", "z", "t", "c", "q"}, 13, [3]int64{3, 5, 7}, 11},
		{[]string{"t", "c", "q", "x", "y", "z"}, 5, [3]int64{11, 13, 17}, 3},
		{[]string{"x", "q", "w", "y", "z", "o"}, 1, [3]int64{3, 11, 13}, 1},
	}
	for _, tc := range tests {
		md := metadata.NewGenericDataset("img6d", nil, tc.axes)
		batch, err := s.assembler().BuildSources(s.ctx, []metadata.Metadata{md})
		c.Assert(err, IsNil)
		c.Assert(batch.Auxiliary, HasLen, tc.numSources)
		c.Assert(batch.NumTimepoints, Equals, tc.timepoints)
		aux := batch.Auxiliary[tc.numSources-1]
		c.Assert(aux.Dimensions(0, 0), Equals, tc.size)
		c.Assert(aux.NumTimepoints(), Equals, tc.timepoints)
		c.Assert(aux.Type(), Equals, n5v.PixelType{T: n5v.T_int8})
	}

	md := metadata.NewGenericDataset("img6d", nil, []string{"x", "y", "z", "t", "c", "q"})
	sources, err := BuildMetadataSources(s.ctx, s.opener, md, "aux")
	c.Assert(err, IsNil)
	c.Assert(sources[12].Name(), Equals, "aux c12")
	c.Assert(sources[12].Channel(), Equals, int64(12))
	c.Assert(sources[12].GridPosition(10, [3]int64{0, 0, 0}), DeepEquals, []int64{0, 0, 0, 0, 0, 0})
	_, err = sources[0].Block(s.ctx, 11, [3]int64{})
	c.Assert(err, NotNil)

	// unlabeled datasets use the first dimensions
	batch, err := s.assembler().BuildSources(s.ctx, []metadata.Metadata{metadata.NewGenericDataset("big4d", nil, nil)})
	c.Assert(err, IsNil)
	c.Assert(batch.Auxiliary, HasLen, 1)
	c.Assert(batch.Auxiliary[0].Dimensions(0, 0), Equals, [3]int64{4, 4, 4})

	batch, err = s.assembler().BuildSources(s.ctx, []metadata.Metadata{
		metadata.NewGenericDataset("img6d", nil, []string{"t", "c", "q", "a", "b", "z"}),
		metadata.NewGenericDataset("img6d", nil, []string{"x", "y"}),
	})
	c.Assert(err, IsNil)
	c.Assert(batch.Auxiliary, HasLen, 0)
	c.Assert(batch.Skipped, HasLen, 2)
}

func (s *AssembleSuite) TestVolatileFetch(c *C) {
	batch, err := s.assembler().BuildSources(s.ctx, []metadata.Metadata{single("vol3d")})
	c.Assert(err, IsNil)
	vol := batch.Volatile[0]

	_, ok := vol.Block(0, 0, [3]int64{0, 0, 0})
	c.Assert(ok, Equals, false)

	var block *container.Block
	for i := 0; i < 500 && !ok; i++ {
		time.Sleep(5 * time.Millisecond)
		block, ok = vol.Block(0, 0, [3]int64{0, 0, 0})
	}
	c.Assert(ok, Equals, true)
	c.Assert(block.Size, DeepEquals, []int{8, 8, 8})

	// abandoned sources still return what was fetched but request nothing new
	vol.Close()
	_, ok = vol.Block(0, 0, [3]int64{0, 0, 0})
	c.Assert(ok, Equals, true)
	_, ok = vol.Block(0, 0, [3]int64{1, 1, 0})
	c.Assert(ok, Equals, false)
	for i := 0; i < 500 && vol.NumPending() > 0; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	c.Assert(vol.NumPending(), Equals, 0)

	_, ok = vol.Block(0, 5, [3]int64{})
	c.Assert(ok, Equals, false)
}

// countingReader counts block reads that reach the container.
type countingReader struct {
	container.Reader
	reads int64
}

func (r *countingReader) ReadBlock(ctx context.Context, path string, attrs *container.DatasetAttributes, gridPos []int64) (*container.Block, error) {
	atomic.AddInt64(&r.reads, 1)
	return r.Reader.ReadBlock(ctx, path, attrs, gridPos)
}

func (s *AssembleSuite) TestVolatileMissingBlock(c *C) {
	reader := &countingReader{Reader: s.reader}
	a := &Assembler{Opener: container.NewOpener(reader, container.NewBlockCache(1<<20)), Queue: s.queue}
	batch, err := a.BuildSources(s.ctx, []metadata.Metadata{single("vol3d")})
	c.Assert(err, IsNil)
	vol := batch.Volatile[0]
	c.Assert(vol.Underlying(), Equals, batch.Sources[0])

	// block (1, 1, 0) is inside the volume but was never written
	var block *container.Block
	ok := false
	for i := 0; i < 200 && !ok; i++ {
		block, ok = vol.Block(0, 0, [3]int64{1, 1, 0})
		if !ok {
			time.Sleep(5 * time.Millisecond)
		}
	}
	c.Assert(ok, Equals, true)
	c.Assert(block, IsNil)
	c.Assert(atomic.LoadInt64(&reader.reads), Equals, int64(1))

	for i := 0; i < 10; i++ {
		block, ok = vol.Block(0, 0, [3]int64{1, 1, 0})
		c.Assert(ok, Equals, true)
		c.Assert(block, IsNil)
	}
	c.Assert(atomic.LoadInt64(&reader.reads), Equals, int64(1))
	vol.Close()
}

type QueueSuite struct{}

var _ = Suite(&QueueSuite{})

func (s *QueueSuite) TestWorkers(c *C) {
	orig := n5v.NumCPU
	defer func() { n5v.NumCPU = orig }()
	n5v.NumCPU = 1
	c.Assert(DefaultNumWorkers(), Equals, 1)
	n5v.NumCPU = 8
	c.Assert(DefaultNumWorkers(), Equals, 4)
	q := NewQueue(0)
	c.Assert(q.NumWorkers(), Equals, 4)
	q.Close()
}

func (s *QueueSuite) TestSubmitAndClose(c *C) {
	q := NewQueue(3)
	var count int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		c.Assert(q.Submit(func() {
			atomic.AddInt64(&count, 1)
			wg.Done()
		}), IsNil)
	}
	wg.Wait()
	c.Assert(atomic.LoadInt64(&count), Equals, int64(100))

	q.Close()
	q.Close()
	c.Assert(q.Submit(func() {}), Equals, ErrClosedQueue)
}

package container

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/n5viewer/n5v"

	"golang.org/x/sync/singleflight"
)

// Array is a lazily loaded, block-cached, randomly accessible N-dimensional array.
type Array interface {
	Path() string
	Shape() []int64
	BlockSize() []int
	DataType() n5v.DataType

	// ReadBlock returns the block at the grid position, reading it through the
	// cache.  Missing blocks return nil, nil.
	ReadBlock(ctx context.Context, gridPos []int64) (*Block, error)

	// CachedBlock returns a block only if it is already resident.  A block known
	// to be missing returns nil, true.
	CachedBlock(gridPos []int64) (*Block, bool)
}

// Opener opens arrays of a container, sharing one block cache.
type Opener struct {
	Reader Reader
	Cache  *BlockCache
}

// NewOpener returns an opener over reader.  A nil cache disables block caching.
func NewOpener(reader Reader, cache *BlockCache) *Opener {
	return &Opener{Reader: reader, Cache: cache}
}

// Open returns the dataset at path.  Opening a group returns ErrNotDataset.
func (o *Opener) Open(ctx context.Context, path string) (Array, error) {
	attrs, err := o.Reader.DatasetAttributes(ctx, path)
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		return nil, fmt.Errorf("opening %q: %w", path, ErrNotDataset)
	}
	return &blockArray{
		path:   n5v.NormalizePath(path),
		attrs:  attrs,
		reader: o.Reader,
		cache:  o.Cache,
	}, nil
}

type blockArray struct {
	path   string
	attrs  *DatasetAttributes
	reader Reader
	cache  *BlockCache

	// in-flight reads of the same block are shared
	inflight singleflight.Group
}

func (a *blockArray) Path() string {
	return a.path
}

func (a *blockArray) Shape() []int64 {
	return append([]int64(nil), a.attrs.Dimensions...)
}

func (a *blockArray) BlockSize() []int {
	return append([]int(nil), a.attrs.BlockSize...)
}

func (a *blockArray) DataType() n5v.DataType {
	return a.attrs.ElementType()
}

func (a *blockArray) CachedBlock(gridPos []int64) (*Block, bool) {
	return a.cache.Get(a.path, gridPos)
}

func (a *blockArray) ReadBlock(ctx context.Context, gridPos []int64) (*Block, error) {
	if block, found := a.cache.Get(a.path, gridPos); found {
		return block, nil
	}
	key := blockKey(a.path, gridPos)
	v, err, _ := a.inflight.Do(key, func() (interface{}, error) {
		block, err := a.reader.ReadBlock(ctx, a.path, a.attrs, gridPos)
		if err != nil {
			return nil, err
		}
		if block == nil {
			a.cache.SetMissing(a.path, gridPos)
		} else {
			a.cache.Set(a.path, block)
		}
		return block, nil
	})
	if err != nil {
		return nil, err
	}
	block, _ := v.(*Block)
	return block, nil
}

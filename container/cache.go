package container

import (
	"encoding/binary"
	"fmt"

	"github.com/coocood/freecache"
	"github.com/dustin/go-humanize"
	"github.com/janelia-flyem/n5viewer/n5v"
)

// BlockCache holds decoded blocks shared by every array of a viewer session.
// It is safe for concurrent use.
type BlockCache struct {
	cache *freecache.Cache
}

// NewBlockCache returns a cache of roughly numBytes.  Freecache enforces a
// minimum size of 512 KB.
func NewBlockCache(numBytes int) *BlockCache {
	c := &BlockCache{cache: freecache.NewCache(numBytes)}
	n5v.Infof("Created block cache of ~ %s.\n", humanize.Bytes(uint64(numBytes)))
	return c
}

func cacheKey(path string, gridPos []int64) []byte {
	return []byte(blockKey(path, gridPos))
}

// missingBlock marks a grid position known to have no block.  Encoded blocks are
// always at least 2 bytes.
var missingBlock = []byte{0}

// Get returns a cached block.  A position stored with SetMissing returns nil, true.
func (bc *BlockCache) Get(path string, gridPos []int64) (*Block, bool) {
	if bc == nil {
		return nil, false
	}
	val, err := bc.cache.Get(cacheKey(path, gridPos))
	if err != nil {
		if err != freecache.ErrNotFound {
			n5v.Errorf("block cache get for %q %v: %v\n", path, gridPos, err)
		}
		return nil, false
	}
	if len(val) == len(missingBlock) {
		return nil, true
	}
	block, err := unmarshalCachedBlock(val, gridPos)
	if err != nil {
		n5v.Errorf("bad cached block for %q %v: %v\n", path, gridPos, err)
		return nil, false
	}
	return block, true
}

// Set stores a block.  Blocks larger than the cache allows are silently skipped.
func (bc *BlockCache) Set(path string, block *Block) {
	if bc == nil || block == nil {
		return
	}
	if err := bc.cache.Set(cacheKey(path, block.GridPosition), marshalCachedBlock(block), 0); err != nil {
		n5v.Debugf("not caching block %q %v: %v\n", path, block.GridPosition, err)
	}
}

// SetMissing records that the dataset has no block at gridPos.
func (bc *BlockCache) SetMissing(path string, gridPos []int64) {
	if bc == nil {
		return
	}
	if err := bc.cache.Set(cacheKey(path, gridPos), missingBlock, 0); err != nil {
		n5v.Debugf("not caching missing block %q %v: %v\n", path, gridPos, err)
	}
}

// EntryCount returns the number of cached blocks.
func (bc *BlockCache) EntryCount() int64 {
	if bc == nil {
		return 0
	}
	return bc.cache.EntryCount()
}

// HitRate returns the ratio of hits to lookups.
func (bc *BlockCache) HitRate() float64 {
	if bc == nil {
		return 0
	}
	return bc.cache.HitRate()
}

// cached blocks are stored as: uint16 # dims, uint32 size per dim, then data.
func marshalCachedBlock(b *Block) []byte {
	buf := make([]byte, 2+4*len(b.Size)+len(b.Data))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(b.Size)))
	pos := 2
	for _, s := range b.Size {
		binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(s))
		pos += 4
	}
	copy(buf[pos:], b.Data)
	return buf
}

func unmarshalCachedBlock(val []byte, gridPos []int64) (*Block, error) {
	if len(val) < 2 {
		return nil, fmt.Errorf("cached value of %d bytes", len(val))
	}
	ndims := int(binary.LittleEndian.Uint16(val[0:2]))
	pos := 2
	if len(val) < pos+4*ndims {
		return nil, fmt.Errorf("cached value truncated")
	}
	size := make([]int, ndims)
	for i := range size {
		size[i] = int(binary.LittleEndian.Uint32(val[pos : pos+4]))
		pos += 4
	}
	return &Block{
		GridPosition: append([]int64(nil), gridPos...),
		Size:         size,
		Data:         val[pos:],
	}, nil
}

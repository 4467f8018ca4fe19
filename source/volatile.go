package source

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/n5v"

	"golang.org/x/sync/singleflight"
)

// VolatileSource has the same levels and geometry as its plain source but never
// waits for data: a missing block is requested on the session queue and reported as
// not yet available.
type VolatileSource struct {
	src   *MultiscaleSource
	queue *Queue

	ctx    context.Context
	cancel context.CancelFunc

	// one fetch per block until it lands in the cache
	fetches singleflight.Group
	pending int64
}

// NewVolatileSource returns the volatile form of src that fetches on queue.
func NewVolatileSource(src *MultiscaleSource, queue *Queue) *VolatileSource {
	ctx, cancel := context.WithCancel(context.Background())
	return &VolatileSource{
		src:    src,
		queue:  queue,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Underlying returns the plain source sharing this source's levels.
func (v *VolatileSource) Underlying() *MultiscaleSource { return v.src }

func (v *VolatileSource) Name() string { return v.src.Name() }

func (v *VolatileSource) Type() n5v.PixelType {
	t := v.src.Type()
	t.Volatile = true
	return t
}

func (v *VolatileSource) NumTimepoints() int   { return v.src.NumTimepoints() }
func (v *VolatileSource) NumMipmapLevels() int { return v.src.NumMipmapLevels() }

func (v *VolatileSource) SourceTransform(t, level int) n5v.Affine3D {
	return v.src.SourceTransform(t, level)
}

func (v *VolatileSource) Dimensions(t, level int) [3]int64 {
	return v.src.Dimensions(t, level)
}

// Block returns a resident block and true.  A block the dataset does not have is
// resident as nil.  Otherwise the block is requested, unless a request is already
// pending, and Block returns false.
func (v *VolatileSource) Block(t, level int, pos [3]int64) (*container.Block, bool) {
	if level < 0 || level >= v.src.NumMipmapLevels() {
		return nil, false
	}
	l := v.src.Level(level)
	gridPos, ok := l.gridPosition(pos)
	if !ok {
		return nil, false
	}
	if block, found := l.Array.CachedBlock(gridPos); found {
		return block, true
	}
	if v.ctx.Err() != nil {
		return nil, false
	}
	key := fmt.Sprintf("%d:%v", level, gridPos)
	v.fetches.DoChan(key, func() (interface{}, error) {
		return nil, v.fetch(l, gridPos)
	})
	return nil, false
}

// fetch reads one block on the session queue and waits until it is cached or the
// source is closed.
func (v *VolatileSource) fetch(l ScaleLevel, gridPos []int64) error {
	atomic.AddInt64(&v.pending, 1)
	defer atomic.AddInt64(&v.pending, -1)

	done := make(chan error, 1)
	err := v.queue.Submit(func() {
		if err := v.ctx.Err(); err != nil {
			done <- err
			return
		}
		_, err := l.Array.ReadBlock(v.ctx, gridPos)
		done <- err
	})
	if err != nil {
		return err
	}
	select {
	case err = <-done:
	case <-v.ctx.Done():
		err = v.ctx.Err()
	}
	if err != nil && v.ctx.Err() == nil {
		n5v.Errorf("fetching block %v of %q: %v\n", gridPos, l.Array.Path(), err)
	}
	return err
}

// NumPending returns the number of requested blocks that have not arrived.
func (v *VolatileSource) NumPending() int {
	return int(atomic.LoadInt64(&v.pending))
}

// Close abandons pending fetches.  Blocks already fetched stay cached.
func (v *VolatileSource) Close() {
	v.cancel()
}

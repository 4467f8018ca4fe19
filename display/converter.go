/*
	Package display binds assembled sources to the conversions that turn their pixels
	into displayable ARGB colors and registers them with a viewer.
*/
package display

import (
	"fmt"
	"math"
	"sync"
)

const (
	// DefaultColor is the opaque white a real-valued source starts with.
	DefaultColor uint32 = 0xffffffff

	// maxRealRange bounds the initial display range of real-valued sources.
	maxRealRange = 65535
)

// Converter is the adjustable part of a pixel conversion.
type Converter interface {
	DisplayRange() (min, max float64)
	SetDisplayRange(min, max float64)
	fmt.Stringer
}

// displayRange is a concurrency-safe min/max pair.
type displayRange struct {
	mu       sync.RWMutex
	min, max float64
}

func (r *displayRange) DisplayRange() (float64, float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.min, r.max
}

func (r *displayRange) SetDisplayRange(min, max float64) {
	r.mu.Lock()
	r.min, r.max = min, max
	r.mu.Unlock()
}

// scale maps v linearly from the range to [0, 1], clamped.
func (r *displayRange) scale(v float64) float64 {
	min, max := r.DisplayRange()
	if max <= min {
		if v >= max {
			return 1
		}
		return 0
	}
	return math.Max(0, math.Min(1, (v-min)/(max-min)))
}

func clampRange(v float64) float64 {
	return math.Max(0, math.Min(maxRealRange, v))
}

// RealARGBConverter maps scalar intensities onto a color.
type RealARGBConverter struct {
	displayRange

	mu    sync.RWMutex
	color uint32
}

// NewRealARGBConverter returns a white converter with the given range clamped to
// [0, 65535].
func NewRealARGBConverter(min, max float64) *RealARGBConverter {
	c := &RealARGBConverter{color: DefaultColor}
	c.min, c.max = clampRange(min), clampRange(max)
	return c
}

func (c *RealARGBConverter) Color() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.color
}

func (c *RealARGBConverter) SetColor(argb uint32) {
	c.mu.Lock()
	c.color = argb
	c.mu.Unlock()
}

// Convert returns the packed ARGB value for an intensity.  Every channel of the
// color, alpha included, is scaled by the intensity's position in the range.
func (c *RealARGBConverter) Convert(v float64) uint32 {
	s := c.scale(v)
	color := c.Color()
	var out uint32
	for shift := uint(0); shift < 32; shift += 8 {
		ch := float64((color >> shift) & 0xff)
		out |= uint32(ch*s+0.5) << shift
	}
	return out
}

func (c *RealARGBConverter) String() string {
	min, max := c.DisplayRange()
	return fmt.Sprintf("real to ARGB [%g, %g] color %08x", min, max, c.Color())
}

// ScaledARGBConverter rescales each channel of packed ARGB values.  The volatile
// form is used for sources whose data may not be loaded yet.
type ScaledARGBConverter struct {
	displayRange
	Volatile bool
}

// NewScaledARGBConverter returns a converter with range [0, 255].
func NewScaledARGBConverter(volatile bool) *ScaledARGBConverter {
	c := &ScaledARGBConverter{Volatile: volatile}
	c.min, c.max = 0, 255
	return c
}

// Convert rescales the color channels of argb; alpha is kept.
func (c *ScaledARGBConverter) Convert(argb uint32) uint32 {
	out := argb & 0xff000000
	for shift := uint(0); shift < 24; shift += 8 {
		ch := float64((argb >> shift) & 0xff)
		out |= uint32(c.scale(ch)*255+0.5) << shift
	}
	return out
}

func (c *ScaledARGBConverter) String() string {
	min, max := c.DisplayRange()
	if c.Volatile {
		return fmt.Sprintf("volatile scaled ARGB [%g, %g]", min, max)
	}
	return fmt.Sprintf("scaled ARGB [%g, %g]", min, max)
}

package display

import (
	"errors"
	"fmt"
	"sync"

	"github.com/janelia-flyem/n5viewer/n5v"
	"github.com/janelia-flyem/n5viewer/source"
)

// ErrUnsupportedPixelType is returned when a source's pixels cannot be converted
// for display.
var ErrUnsupportedPixelType = errors.New("unsupported pixel type")

// TransformedSource places a source with two extra transforms that can be changed
// after the source is shown: a fixed one, e.g. for cropping or registration, and an
// incremental one for interactive moves.  The source geometry itself is unchanged.
type TransformedSource struct {
	source.Source

	mu          sync.RWMutex
	fixed       n5v.Affine3D
	incremental n5v.Affine3D
}

// NewTransformedSource wraps src with identity transforms.
func NewTransformedSource(src source.Source) *TransformedSource {
	return &TransformedSource{
		Source:      src,
		fixed:       n5v.IdentityAffine(),
		incremental: n5v.IdentityAffine(),
	}
}

// SourceTransform applies the source's own transform, then the fixed, then the
// incremental transform.
func (ts *TransformedSource) SourceTransform(t, level int) n5v.Affine3D {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.incremental.Concatenate(ts.fixed.Concatenate(ts.Source.SourceTransform(t, level)))
}

func (ts *TransformedSource) FixedTransform() n5v.Affine3D {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.fixed
}

func (ts *TransformedSource) SetFixedTransform(a n5v.Affine3D) {
	ts.mu.Lock()
	ts.fixed = a
	ts.mu.Unlock()
}

func (ts *TransformedSource) IncrementalTransform() n5v.Affine3D {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.incremental
}

func (ts *TransformedSource) SetIncrementalTransform(a n5v.Affine3D) {
	ts.mu.Lock()
	ts.incremental = a
	ts.mu.Unlock()
}

// SourceAndConverter pairs a placed source with its pixel conversion.
type SourceAndConverter struct {
	Source    *TransformedSource
	Converter Converter
}

// ConverterSetup groups display controls for one bound source.
type ConverterSetup struct {
	SetupID   int
	Converter Converter
}

// SetDisplayRange changes the range of the converter.
func (cs *ConverterSetup) SetDisplayRange(min, max float64) {
	cs.Converter.SetDisplayRange(min, max)
}

// Bind chooses the conversion for src from its pixel type.  Real types get a white
// linear mapping over the type's range, packed colors a [0, 255] channel scaling.
// Other types fail with ErrUnsupportedPixelType.
func Bind(src source.Source, setupID int) (*SourceAndConverter, *ConverterSetup, error) {
	pt := src.Type()
	var conv Converter
	switch {
	case pt.IsReal():
		conv = NewRealARGBConverter(pt.MinValue(), pt.MaxValue())
	case pt.IsARGB():
		conv = NewScaledARGBConverter(pt.Volatile)
	default:
		return nil, nil, fmt.Errorf("source %q of type %s: %w", src.Name(), pt, ErrUnsupportedPixelType)
	}
	soc := &SourceAndConverter{
		Source:    NewTransformedSource(src),
		Converter: conv,
	}
	return soc, &ConverterSetup{SetupID: setupID, Converter: conv}, nil
}

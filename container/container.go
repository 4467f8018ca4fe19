/*
	Package container provides read access to hierarchical array containers: the
	attributes of every node, the children of groups, and the chunked blocks of
	datasets.  The N5 layout is implemented on top of gocloud.dev blob buckets so
	local directories, in-memory buckets, and cloud object stores all work the same.
*/
package container

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/janelia-flyem/n5viewer/n5v"
)

var (
	// ErrNotFound is returned when a node or block does not exist.
	ErrNotFound = errors.New("container object not found")

	// ErrNotDataset is returned when an array is opened on a group node.
	ErrNotDataset = errors.New("container node is not a dataset")

	// ErrUnsupportedVersion is returned for containers written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported container version")

	// ErrMalformedDataset is returned when dataset attributes are present but inconsistent.
	ErrMalformedDataset = errors.New("malformed dataset attributes")
)

// Reader is the read-only view of a container used by metadata discovery and
// source assembly.
type Reader interface {
	// Attributes returns the attributes of the node at path.  A node without
	// attributes returns an empty, non-nil map.
	Attributes(ctx context.Context, path string) (Attributes, error)

	// List returns the sorted names of the direct children of the node at path.
	List(ctx context.Context, path string) ([]string, error)

	// DatasetAttributes returns the dataset description of the node at path or
	// nil, nil if the node is a group.
	DatasetAttributes(ctx context.Context, path string) (*DatasetAttributes, error)

	// ReadBlock returns the decoded block at the given grid position or nil, nil
	// if the block has never been written.
	ReadBlock(ctx context.Context, path string, attrs *DatasetAttributes, gridPos []int64) (*Block, error)
}

// Attributes holds the undecoded attribute values of a node.
type Attributes map[string]json.RawMessage

// Has returns true if the key is present.
func (a Attributes) Has(key string) bool {
	_, found := a[key]
	return found
}

// Decode unmarshals the value for key into v.  It returns false if the key is
// absent or the value cannot be decoded into v.
func (a Attributes) Decode(key string, v interface{}) bool {
	raw, found := a[key]
	if !found {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// String returns a string attribute.
func (a Attributes) String(key string) (string, bool) {
	var s string
	ok := a.Decode(key, &s)
	return s, ok
}

// Floats returns a numeric array attribute.
func (a Attributes) Floats(key string) ([]float64, bool) {
	var f []float64
	ok := a.Decode(key, &f)
	return f, ok
}

// Keys returns the sorted attribute keys.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Generic returns the attributes decoded into plain Go values, suitable for
// JSON Schema validation.
func (a Attributes) Generic() (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(a))
	for k, raw := range a {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Compression describes how blocks of a dataset are encoded.
type Compression struct {
	Type  string `json:"type"`
	Level int    `json:"level,omitempty"`
}

// DatasetAttributes are the reserved attributes that make a node a dataset.
type DatasetAttributes struct {
	Dimensions  []int64     `json:"dimensions"`
	BlockSize   []int       `json:"blockSize"`
	DataType    string      `json:"dataType"`
	Compression Compression `json:"compression"`

	// ARGB marks a uint32 dataset as packed 8-bit color.
	ARGB bool `json:"argb,omitempty"`
}

// NumDims returns the dimensionality of the dataset.
func (d *DatasetAttributes) NumDims() int {
	return len(d.Dimensions)
}

// ElementType returns the element type of the dataset.
func (d *DatasetAttributes) ElementType() n5v.DataType {
	t, err := n5v.ParseDataType(d.DataType)
	if err != nil {
		return n5v.T_unknown
	}
	if t == n5v.T_uint32 && d.ARGB {
		return n5v.T_argb
	}
	return t
}

// GridSize returns the number of blocks along each dimension.
func (d *DatasetAttributes) GridSize() []int64 {
	grid := make([]int64, len(d.Dimensions))
	for i, dim := range d.Dimensions {
		bs := int64(d.BlockSize[i])
		grid[i] = (dim + bs - 1) / bs
	}
	return grid
}

// NumBytes returns the uncompressed size of the whole dataset.
func (d *DatasetAttributes) NumBytes() uint64 {
	n := uint64(n5v.DataTypeBytes(d.ElementType()))
	for _, dim := range d.Dimensions {
		n *= uint64(dim)
	}
	return n
}

// parseDatasetAttributes returns nil if the attributes do not describe a dataset.
func parseDatasetAttributes(attrs Attributes) (*DatasetAttributes, error) {
	if !attrs.Has("dimensions") || !attrs.Has("dataType") || !attrs.Has("blockSize") {
		return nil, nil
	}
	var d DatasetAttributes
	if !attrs.Decode("dimensions", &d.Dimensions) || !attrs.Decode("blockSize", &d.BlockSize) {
		return nil, fmt.Errorf("%w: bad dimensions or block size", ErrMalformedDataset)
	}
	if len(d.Dimensions) != len(d.BlockSize) {
		return nil, fmt.Errorf("%w: %d dimensions but %d block sizes", ErrMalformedDataset, len(d.Dimensions), len(d.BlockSize))
	}
	for _, bs := range d.BlockSize {
		if bs <= 0 {
			return nil, fmt.Errorf("%w: block size %v", ErrMalformedDataset, d.BlockSize)
		}
	}
	d.DataType, _ = attrs.String("dataType")
	attrs.Decode("argb", &d.ARGB)

	// compression is either an object or, in older containers, a bare type string
	if !attrs.Decode("compression", &d.Compression) {
		if ctype, ok := attrs.String("compressionType"); ok {
			d.Compression.Type = ctype
		}
	}
	if d.Compression.Type == "" {
		d.Compression.Type = "raw"
	}
	return &d, nil
}

// Block is a decoded chunk of a dataset.  Data holds the elements in big-endian
// byte order with the first dimension varying fastest.
type Block struct {
	GridPosition []int64
	Size         []int
	Data         []byte
}

// NumElements returns the number of elements described by the block size.
func (b *Block) NumElements() int {
	n := 1
	for _, s := range b.Size {
		n *= s
	}
	return n
}

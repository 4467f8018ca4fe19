package container

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/janelia-flyem/n5viewer/n5v"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Writer creates N5 groups, datasets, and blocks in a bucket.  Metadata
// resolution never writes; the writer exists to build test containers and
// sample data.  Readers opened before a write may still hold cached attributes.
type Writer struct {
	bucket *blob.Bucket
}

// NewWriter returns a writer over the bucket.
func NewWriter(bucket *blob.Bucket) *Writer {
	return &Writer{bucket: bucket}
}

// SetAttributes merges attrs into the attributes of the node at path.
func (w *Writer) SetAttributes(ctx context.Context, path string, attrs map[string]interface{}) error {
	key := attributesKey(path)
	current := map[string]interface{}{}
	data, err := w.bucket.ReadAll(ctx, key)
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return err
	}
	if len(data) != 0 {
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("existing attributes of %q: %w", path, err)
		}
	}
	for k, v := range attrs {
		current[k] = v
	}
	out, err := json.Marshal(current)
	if err != nil {
		return err
	}
	return w.bucket.WriteAll(ctx, key, out, nil)
}

// CreateGroup makes sure a group node exists at path.
func (w *Writer) CreateGroup(ctx context.Context, path string) error {
	return w.SetAttributes(ctx, path, map[string]interface{}{})
}

// CreateDataset writes the reserved dataset attributes at path.
func (w *Writer) CreateDataset(ctx context.Context, path string, d *DatasetAttributes) error {
	attrs := map[string]interface{}{
		"dimensions":  d.Dimensions,
		"blockSize":   d.BlockSize,
		"dataType":    d.DataType,
		"compression": d.Compression,
	}
	if d.ARGB {
		attrs["argb"] = true
	}
	return w.SetAttributes(ctx, path, attrs)
}

// WriteBlock encodes and stores one block of a dataset.
func (w *Writer) WriteBlock(ctx context.Context, path string, d *DatasetAttributes, gridPos []int64, size []int, data []byte) error {
	if len(gridPos) != d.NumDims() || len(size) != d.NumDims() {
		return fmt.Errorf("block %v of size %v does not match %d-d dataset %q", gridPos, size, d.NumDims(), path)
	}
	raw, err := encodeBlock(d.Compression.Type, size, data)
	if err != nil {
		return err
	}
	n5v.Debugf("writing block %v of %q (%d bytes)\n", gridPos, path, len(raw))
	return w.bucket.WriteAll(ctx, blockKey(path, gridPos), raw, nil)
}

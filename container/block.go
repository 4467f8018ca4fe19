package container

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/janelia-flyem/n5viewer/n5v"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	blockModeDefault  = 0
	blockModeVarLen   = 1
	blockModeObject   = 2
	blockHeaderPrefix = 4
)

// decodeBlock parses an N5 block: a big-endian header of mode, number of
// dimensions, and per-dimension sizes (plus an element count for varlength
// blocks) followed by the compressed elements.
func decodeBlock(raw []byte, attrs *DatasetAttributes, gridPos []int64) (*Block, error) {
	if len(raw) < blockHeaderPrefix {
		return nil, fmt.Errorf("block %v is truncated (%d bytes)", gridPos, len(raw))
	}
	mode := binary.BigEndian.Uint16(raw[0:2])
	if mode == blockModeObject {
		return nil, fmt.Errorf("block %v holds serialized objects which cannot be displayed", gridPos)
	}
	if mode != blockModeDefault && mode != blockModeVarLen {
		return nil, fmt.Errorf("block %v has unknown mode %d", gridPos, mode)
	}
	ndims := int(binary.BigEndian.Uint16(raw[2:4]))
	pos := blockHeaderPrefix
	if len(raw) < pos+4*ndims {
		return nil, fmt.Errorf("block %v header is truncated", gridPos)
	}
	size := make([]int, ndims)
	for i := 0; i < ndims; i++ {
		size[i] = int(binary.BigEndian.Uint32(raw[pos : pos+4]))
		pos += 4
	}
	block := &Block{
		GridPosition: append([]int64(nil), gridPos...),
		Size:         size,
	}
	numElements := block.NumElements()
	if mode == blockModeVarLen {
		if len(raw) < pos+4 {
			return nil, fmt.Errorf("block %v header is truncated", gridPos)
		}
		numElements = int(binary.BigEndian.Uint32(raw[pos : pos+4]))
		pos += 4
	}
	data, err := decompress(attrs.Compression.Type, raw[pos:])
	if err != nil {
		return nil, fmt.Errorf("block %v: %w", gridPos, err)
	}
	expected := numElements * int(attrs.elementBytes())
	if expected > 0 && len(data) < expected {
		return nil, fmt.Errorf("block %v has %d bytes, expected %d", gridPos, len(data), expected)
	}
	if expected > 0 {
		data = data[:expected]
	}
	block.Data = data
	return block, nil
}

func (d *DatasetAttributes) elementBytes() int32 {
	return n5v.DataTypeBytes(d.ElementType())
}

func decompress(ctype string, in []byte) (out []byte, err error) {
	switch ctype {
	case "raw", "":
		return in, nil
	case "gzip":
		var zr *gzip.Reader
		zr, err = gzip.NewReader(bytes.NewReader(in))
		if err != nil {
			err = fmt.Errorf("can't uncompress gzip data: %v", err)
			return
		}
		defer zr.Close()
		out, err = io.ReadAll(zr)
		if err != nil {
			err = fmt.Errorf("can't read gzip data: %v", err)
		}
		return
	case "zstd":
		var dec *zstd.Decoder
		dec, err = zstd.NewReader(nil)
		if err != nil {
			return
		}
		defer dec.Close()
		out, err = dec.DecodeAll(in, nil)
		if err != nil {
			err = fmt.Errorf("can't uncompress zstd data: %v", err)
		}
		return
	case "bzip2":
		out, err = io.ReadAll(bzip2.NewReader(bytes.NewReader(in)))
		if err != nil {
			err = fmt.Errorf("can't uncompress bzip2 data: %v", err)
		}
		return
	default:
		return nil, fmt.Errorf("unsupported block compression %q", ctype)
	}
}

// encodeBlock writes an N5 default-mode block.  It is the inverse of decodeBlock
// and is used to build fixtures.
func encodeBlock(ctype string, size []int, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	hdr := make([]byte, blockHeaderPrefix+4*len(size))
	binary.BigEndian.PutUint16(hdr[0:2], blockModeDefault)
	binary.BigEndian.PutUint16(hdr[2:4], uint16(len(size)))
	for i, s := range size {
		binary.BigEndian.PutUint32(hdr[blockHeaderPrefix+4*i:], uint32(s))
	}
	buf.Write(hdr)
	switch ctype {
	case "raw", "":
		buf.Write(data)
	case "gzip":
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
	case "zstd":
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		buf.Write(enc.EncodeAll(data, nil))
		enc.Close()
	default:
		return nil, fmt.Errorf("cannot encode block compression %q", ctype)
	}
	return buf.Bytes(), nil
}

package container

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/blang/semver"
	"github.com/golang/groupcache/lru"
	"github.com/janelia-flyem/n5viewer/n5v"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

const (
	attributesFile = "attributes.json"

	// versionKey is the root attribute holding the format version.
	versionKey = "n5"

	// DefaultAttributeCacheEntries bounds the number of cached attribute documents.
	DefaultAttributeCacheEntries = 1024
)

// MaxSupportedVersion is the newest N5 format version that can be read.
var MaxSupportedVersion = semver.MustParse("4.0.0")

// N5Reader reads an N5 container stored in a blob bucket.
type N5Reader struct {
	ref     string
	bucket  *blob.Bucket
	version *semver.Version

	attrCache   *lru.Cache
	attrCacheMu sync.Mutex
}

// NewN5Reader returns a reader over the bucket after checking the container version.
func NewN5Reader(ctx context.Context, ref string, bucket *blob.Bucket, cacheEntries int) (*N5Reader, error) {
	if cacheEntries <= 0 {
		cacheEntries = DefaultAttributeCacheEntries
	}
	n5 := &N5Reader{
		ref:       ref,
		bucket:    bucket,
		attrCache: lru.New(cacheEntries),
	}
	root, err := n5.Attributes(ctx, "")
	if err != nil {
		return nil, err
	}
	if vstr, found := root.String(versionKey); found {
		v, err := semver.ParseTolerant(vstr)
		if err != nil {
			return nil, fmt.Errorf("container %q has bad version %q: %v", ref, vstr, err)
		}
		if v.Major > MaxSupportedVersion.Major {
			return nil, fmt.Errorf("container %q version %s: %w", ref, v, ErrUnsupportedVersion)
		}
		n5.version = &v
	}
	n5v.Infof("Opened N5 container @ %q (version %s)\n", ref, n5.Version())
	return n5, nil
}

// Open opens the container at ref.  See OpenBucket for the accepted references.
func Open(ctx context.Context, ref string, cacheEntries int) (*N5Reader, error) {
	bucket, err := OpenBucket(ctx, ref)
	if err != nil {
		return nil, err
	}
	n5, err := NewN5Reader(ctx, ref, bucket, cacheEntries)
	if err != nil {
		bucket.Close()
		return nil, err
	}
	return n5, nil
}

// Version returns the container format version or "unversioned".
func (n5 *N5Reader) Version() string {
	if n5.version == nil {
		return "unversioned"
	}
	return n5.version.String()
}

// Ref returns the reference used to open the container.
func (n5 *N5Reader) Ref() string {
	return n5.ref
}

// Close releases the bucket.
func (n5 *N5Reader) Close() {
	if err := n5.bucket.Close(); err != nil {
		n5v.Errorf("Error on trying to close container (%s): %v\n", n5.ref, err)
	}
}

func (n5 *N5Reader) String() string {
	return fmt.Sprintf("N5 container [%s] @ %s", n5.Version(), n5.ref)
}

func attributesKey(path string) string {
	path = n5v.NormalizePath(path)
	if path == "" {
		return attributesFile
	}
	return path + "/" + attributesFile
}

// readAll returns nil, nil if key does not exist.
func (n5 *N5Reader) readAll(ctx context.Context, key string) ([]byte, error) {
	data, err := n5.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Attributes implements Reader.
func (n5 *N5Reader) Attributes(ctx context.Context, path string) (Attributes, error) {
	key := attributesKey(path)
	n5.attrCacheMu.Lock()
	cached, found := n5.attrCache.Get(key)
	n5.attrCacheMu.Unlock()
	if found {
		return cached.(Attributes), nil
	}

	data, err := n5.readAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading attributes of %q: %w", path, err)
	}
	attrs := Attributes{}
	if len(data) != 0 {
		if err := json.Unmarshal(data, &attrs); err != nil {
			return nil, fmt.Errorf("attributes of %q are not a JSON object: %w", path, err)
		}
	}
	n5.attrCacheMu.Lock()
	n5.attrCache.Add(key, attrs)
	n5.attrCacheMu.Unlock()
	return attrs, nil
}

// List implements Reader.
func (n5 *N5Reader) List(ctx context.Context, path string) ([]string, error) {
	prefix := n5v.NormalizePath(path)
	if prefix != "" {
		prefix += "/"
	}
	iter := n5.bucket.List(&blob.ListOptions{Prefix: prefix, Delimiter: "/"})
	var children []string
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing %q: %w", path, err)
		}
		if !obj.IsDir {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), "/")
		if name != "" {
			children = append(children, name)
		}
	}
	return children, nil
}

// DatasetAttributes implements Reader.
func (n5 *N5Reader) DatasetAttributes(ctx context.Context, path string) (*DatasetAttributes, error) {
	attrs, err := n5.Attributes(ctx, path)
	if err != nil {
		return nil, err
	}
	d, err := parseDatasetAttributes(attrs)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", path, err)
	}
	return d, nil
}

func blockKey(path string, gridPos []int64) string {
	parts := make([]string, 0, len(gridPos)+1)
	if p := n5v.NormalizePath(path); p != "" {
		parts = append(parts, p)
	}
	for _, g := range gridPos {
		parts = append(parts, strconv.FormatInt(g, 10))
	}
	return strings.Join(parts, "/")
}

// ReadBlock implements Reader.
func (n5 *N5Reader) ReadBlock(ctx context.Context, path string, attrs *DatasetAttributes, gridPos []int64) (*Block, error) {
	if len(gridPos) != attrs.NumDims() {
		return nil, fmt.Errorf("grid position %v does not match %d-d dataset %q", gridPos, attrs.NumDims(), path)
	}
	key := blockKey(path, gridPos)
	raw, err := n5.readAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading block %q: %w", key, err)
	}
	if raw == nil {
		return nil, nil
	}
	return decodeBlock(raw, attrs, gridPos)
}

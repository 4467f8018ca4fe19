package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/janelia-flyem/n5viewer/n5v"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// OpenBucket returns a blob.Bucket for the given container reference.
// The reference should be of the form:
//
//	/path/to/container.n5  or  file:///path/to/container.n5
//	mem://
//	gs://<bucketname>[/<prefix>]
//	s3://<bucketname>[/<prefix>]
func OpenBucket(ctx context.Context, ref string) (bucket *blob.Bucket, err error) {
	switch {
	case strings.HasPrefix(ref, "mem://"):
		return blob.OpenBucket(ctx, "mem://")

	case strings.HasPrefix(ref, "s3://"):
		// Requires AWS credentials where gocloud can find them and AWS_REGION set.
		name, prefix := splitBucketRef(strings.TrimPrefix(ref, "s3://"))
		bucket, err = blob.OpenBucket(ctx, "s3://"+name)
		if err != nil {
			n5v.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}
		return prefixed(bucket, prefix), nil

	case strings.HasPrefix(ref, "gs://"):
		// See https://cloud.google.com/docs/authentication/production
		creds, err := gcp.DefaultCredentials(ctx)
		if err != nil {
			return nil, err
		}
		client, err := gcp.NewHTTPClient(
			gcp.DefaultTransport(),
			gcp.CredentialsTokenSource(creds))
		if err != nil {
			return nil, err
		}
		name, prefix := splitBucketRef(strings.TrimPrefix(ref, "gs://"))
		bucket, err = gcsblob.OpenBucket(ctx, client, name, nil)
		if err != nil {
			n5v.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}
		return prefixed(bucket, prefix), nil

	default:
		dir := strings.TrimPrefix(ref, "file://")
		dir, err = filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		fi, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("container %q: %w", ref, err)
		}
		if !fi.IsDir() {
			return nil, fmt.Errorf("container %q is not a directory", ref)
		}
		return fileblob.OpenBucket(dir, nil)
	}
}

func splitBucketRef(ref string) (name, prefix string) {
	parts := strings.SplitN(ref, "/", 2)
	name = parts[0]
	if len(parts) == 2 {
		prefix = n5v.NormalizePath(parts[1])
	}
	return
}

func prefixed(bucket *blob.Bucket, prefix string) *blob.Bucket {
	if prefix == "" {
		return bucket
	}
	return blob.PrefixedBucket(bucket, prefix+"/")
}

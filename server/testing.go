/*
	This file contains functions useful for testing the HTTP API in other packages.
	They cannot be in a _test.go file since they would be unavailable to test
	files in external packages.  So these functions are exported and contain the
	"Test" keyword.
*/

package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/janelia-flyem/n5viewer/container"
	"gocloud.dev/blob"
)

// OpenTestService returns a service with default configuration that can read the
// in-memory container in bucket under the reference ref.
func OpenTestService(t *testing.T, ref string, bucket *blob.Bucket) *Service {
	reader, err := container.NewN5Reader(context.Background(), ref, bucket, 0)
	if err != nil {
		t.Fatalf("can't open test container %q: %v\n", ref, err)
	}
	c := DefaultConfig()
	c.Viewer.Workers = 2
	c.Cache.BlockCacheMB = 4
	s := NewService(c)
	s.AddContainer(reader)
	return s
}

// TestHTTPResponse returns a response from a test run of the service's API.
// Use TestHTTP if you just want the response body bytes.
func TestHTTPResponse(t *testing.T, h http.Handler, method, urlStr string, payload io.Reader) *httptest.ResponseRecorder {
	req, err := http.NewRequest(method, urlStr, payload)
	if err != nil {
		t.Fatalf("Unsuccessful %s on %q: %v\n", method, urlStr, err)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

// TestHTTP returns the response body bytes for a test request, making sure any response has
// status OK.
func TestHTTP(t *testing.T, h http.Handler, method, urlStr string, payload io.Reader) []byte {
	resp := TestHTTPResponse(t, h, method, urlStr, payload)
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad server response (%d) to %s on %q: %s\n", resp.Code, method, urlStr, resp.Body.String())
	}
	return resp.Body.Bytes()
}

// TestBadHTTP expects a HTTP response with the given error status code.
func TestBadHTTP(t *testing.T, h http.Handler, method, urlStr string, payload io.Reader, status int) {
	resp := TestHTTPResponse(t, h, method, urlStr, payload)
	if resp.Code != status {
		t.Fatalf("Expected status %d to %s on %q, got %d instead.\n", status, method, urlStr, resp.Code)
	}
}

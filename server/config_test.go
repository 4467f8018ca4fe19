package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/n5v"
)

const testConfig = `
[server]
http_address = ":9000"
cors_origins = ["http://localhost:3000"]

[viewer]
workers = 3
title = "fly brain"

[cache]
block_cache_mb = 64

[logging]
logfile = "logs/n5view.log"
max_log_size = 100
max_log_age = 7
level = "warning"

[parsers.generic]
resolution = "voxelSize"
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(filename, []byte(testConfig), 0644); err != nil {
		t.Fatalf("can't write config: %v\n", err)
	}
	c, err := LoadConfig(filename)
	if err != nil {
		t.Fatalf("can't load config: %v\n", err)
	}
	if c.Server.HTTPAddress != ":9000" || len(c.Server.CorsOrigins) != 1 {
		t.Errorf("bad [server] section: %+v\n", c.Server)
	}
	if c.Viewer.Title != "fly brain" {
		t.Errorf("bad title %q\n", c.Viewer.Title)
	}
	if c.Logging.Logfile != filepath.Join(dir, "logs", "n5view.log") {
		t.Errorf("expected logfile relative to config, got %q\n", c.Logging.Logfile)
	}
	if c.Logging.MaxSize != 100 || c.Logging.MaxAge != 7 || c.Logging.Level != "warning" {
		t.Errorf("bad [logging] section: %+v\n", c.Logging)
	}

	opts := c.SessionOptions()
	if opts.NumWorkers != 3 || opts.BlockCacheBytes != 64*n5v.Mega {
		t.Errorf("bad session options: %+v\n", opts)
	}
	if c.Cache.AttributeCacheEntries != container.DefaultAttributeCacheEntries {
		t.Errorf("expected default attribute cache, got %d\n", c.Cache.AttributeCacheEntries)
	}

	// unset generic keys keep their defaults
	if c.Parsers.Generic.ResolutionKey != "voxelSize" || c.Parsers.Generic.OffsetKey != "offset" {
		t.Errorf("bad generic parser keys: %+v\n", c.Parsers.Generic)
	}
	if len(c.DatasetParsers()) != 4 {
		t.Errorf("expected 4 dataset parsers, got %d\n", len(c.DatasetParsers()))
	}
}

func TestBadConfig(t *testing.T) {
	if _, err := LoadConfig(""); err == nil {
		t.Errorf("expected error without config file")
	}
	filename := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(filename, []byte("[viewer\nworkers = "), 0644); err != nil {
		t.Fatalf("can't write config: %v\n", err)
	}
	if _, err := LoadConfig(filename); err == nil {
		t.Errorf("expected error decoding bad TOML")
	}

	c := DefaultConfig()
	if c.Server.HTTPAddress != DefaultWebAddress || c.Viewer.Title != DefaultTitle {
		t.Errorf("bad defaults: %+v\n", c)
	}
	if c.SessionOptions().BlockCacheBytes != DefaultBlockCacheMB*n5v.Mega {
		t.Errorf("bad default block cache size")
	}
}

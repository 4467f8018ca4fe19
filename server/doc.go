/*
Package server runs a headless viewer session over HTTP.  A Registry stands in for
the viewer window: sources bound by the session are registered there and can be
listed, adjusted and added to through the JSON API served by Service.Handler.

Configuration is read from a TOML file:

	[server]
	http_address = "localhost:8000"
	cors_origins = ["http://localhost:3000"]

	[viewer]
	workers = 4
	title = "my volume"

	[cache]
	block_cache_mb = 256
	attribute_cache_entries = 1024

	[logging]
	logfile = "/demo/logs/n5view.log"
	max_log_size = 500 # MB
	max_log_age = 30   # days
	level = "info"     # debug, info, warning, error, critical or silent

	[parsers.generic]
	resolution = "resolution"
	offset = "offset"
	downsampling_factors = "downsamplingFactors"
	unit = "unit"
*/
package server

//go:generate go run ../cmd/gen-version -o version.go

/*
Package n5viewer finds multiscale images in N5 containers and turns them into
sources a viewer can display.

Finding images

A container is read through container.N5Reader, which works over local
directories and gs:// or s3:// buckets.  metadata.Discover walks the container
tree from the leaves up and asks an ordered list of parsers to recognize each
node.  Dataset nodes are tried with, in order:

	cosem          "transform" attribute with axes, scale, translate, units
	n5viewer       "pixelResolution" and/or "downsamplingFactors"
	canonical      "spatialTransform" or "axes", checked against a JSON schema
	generic        configurable attribute keys; matches any 2D or 3D dataset

Group nodes are tried with cosem multiscale, n5viewer multiscale (children s0,
s1, ...), canonical multiscale or multichannel, and n5viewer multichannel
(children c0, c1, ...).  A dataset nobody recognizes is kept as a generic
dataset whose axis labels, if any, can still place it.

Ordering scales

multiscale.Resolve turns recognized metadata into ordered lists of scale levels,
finest first.  Levels are sorted stably by the magnitude of the scale part of
their transform, so containers that list levels out of order still give a
correct pyramid.

Building sources

source.Assembler opens the arrays of a selection and builds one source per
image; channel groups give one source per channel.  2D arrays are lifted to 3D
with a depth of one.  Entries with unusable metadata are skipped and reported;
an error reading the container aborts the batch.  Every source also has a
volatile form that fetches blocks on a worker queue shared by the whole viewer.

Showing sources

display.Session binds sources to pixel converters, numbers them with setup ids
starting at 1, and registers them with a Viewer.  server.Registry is a headless
Viewer that the HTTP API in package server exposes.

	% n5view discover /data/sample.n5
	% n5view resolve /data/sample.n5 raw
	% n5view -config n5view.toml serve /data/sample.n5 raw labels
*/
package n5viewer

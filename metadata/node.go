package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/n5v"
)

// Node is one discovered node of a container tree.  Metadata is nil if no parser
// recognized the node.
type Node struct {
	Path       string
	Name       string
	Attributes container.Attributes
	Dataset    *container.DatasetAttributes
	Children   []*Node
	Metadata   Metadata
}

// IsDataset returns true if the node holds an array.
func (n *Node) IsDataset() bool {
	return n.Dataset != nil
}

// Child returns the direct child with the given name or nil.
func (n *Node) Child(name string) *Node {
	for _, child := range n.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// Find returns the node at the given path, which is relative to the container root,
// or nil if the path is not within this node's tree.
func (n *Node) Find(path string) *Node {
	path = n5v.NormalizePath(path)
	if path == n.Path {
		return n
	}
	rel := path
	if n.Path != "" {
		if !strings.HasPrefix(path, n.Path+"/") {
			return nil
		}
		rel = strings.TrimPrefix(path, n.Path+"/")
	}
	cur := n
	for _, name := range strings.Split(rel, "/") {
		if cur = cur.Child(name); cur == nil {
			return nil
		}
	}
	return cur
}

// Walk calls fn for the node and all its descendants, parents before children.
// Walking stops at the first error.
func (n *Node) Walk(fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, child := range n.Children {
		if err := child.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Selected returns the metadata of every recognized node in walk order.  A node
// whose ancestor was recognized is still listed.
func (n *Node) Selected() []Metadata {
	var selected []Metadata
	n.Walk(func(node *Node) error {
		if node.Metadata != nil {
			selected = append(selected, node.Metadata)
		}
		return nil
	})
	return selected
}

func (n *Node) String() string {
	kind := "group"
	if n.IsDataset() {
		kind = "dataset"
	}
	if n.Metadata != nil {
		return fmt.Sprintf("%s %q (%T)", kind, n.Path, n.Metadata)
	}
	return fmt.Sprintf("%s %q", kind, n.Path)
}

// Discover reads the tree rooted at path and parses every node.  Children are
// parsed before their parent so group parsers can use the children's metadata.
// Only dataset parsers are tried on datasets and only group parsers on groups; a
// dataset no parser recognizes becomes a GenericDataset.  Errors reading the
// container abort discovery.
func Discover(ctx context.Context, reader container.Reader, path string, groupParsers, datasetParsers []Parser) (*Node, error) {
	timedLog := n5v.NewTimeLog()
	root, err := discover(ctx, reader, n5v.NormalizePath(path), groupParsers, datasetParsers)
	if err != nil {
		return nil, err
	}
	var numNodes, numParsed int
	root.Walk(func(node *Node) error {
		numNodes++
		if node.Metadata != nil {
			numParsed++
		}
		return nil
	})
	timedLog.Debugf("Discovered %d nodes under %q, %d with metadata", numNodes, root.Path, numParsed)
	return root, nil
}

func discover(ctx context.Context, reader container.Reader, path string, groupParsers, datasetParsers []Parser) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	attrs, err := reader.Attributes(ctx, path)
	if err != nil {
		return nil, err
	}
	node := &Node{
		Path:       path,
		Name:       n5v.BaseName(path),
		Attributes: attrs,
	}
	node.Dataset, err = reader.DatasetAttributes(ctx, path)
	if err != nil {
		if !errors.Is(err, container.ErrMalformedDataset) {
			return nil, err
		}
		n5v.Warningf("Ignoring dataset attributes of %q: %v\n", path, err)
		node.Dataset = nil
	}

	if node.IsDataset() {
		node.Metadata = parseWith(datasetParsers, node)
		if node.Metadata == nil {
			node.Metadata = NewGenericDataset(path, node.Dataset, axesAttribute(attrs))
		}
		return node, nil
	}

	names, err := reader.List(ctx, path)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		child, err := discover(ctx, reader, n5v.JoinPath(path, name), groupParsers, datasetParsers)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	node.Metadata = parseWith(groupParsers, node)
	return node, nil
}

// parseWith returns the metadata from the first parser that recognizes the node.
func parseWith(parsers []Parser, node *Node) Metadata {
	for _, p := range parsers {
		if md, ok := p.ParseMetadata(node); ok {
			return md
		}
	}
	return nil
}

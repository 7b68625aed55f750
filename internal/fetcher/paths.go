package fetcher

import (
	"errors"
	"fmt"
	"maps"
	"path"
	"path/filepath"
	"slices"
)

// ErrUnknownItem is returned for items the remote layout does not list.
var ErrUnknownItem = errors.New("unknown item")

// RemotePaths resolves items to paths on the file server.
type RemotePaths struct {
	items map[string]string
	root  string
}

// NewRemotePaths creates a resolver. items maps an item name to its
// directory below root.
func NewRemotePaths(root string, items map[string]string) *RemotePaths {
	return &RemotePaths{root: root, items: maps.Clone(items)}
}

// Path returns root/<item dir>/<encoding dir>/<item>.<ext>.
func (p *RemotePaths) Path(item string, enc Encoding) (string, error) {
	dir, ok := p.items[item]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownItem, item)
	}

	return path.Join(p.root, dir, enc.Dir(), item+"."+enc.Ext()), nil
}

// Items lists the known item names in sorted order.
func (p *RemotePaths) Items() []string {
	return slices.Sorted(maps.Keys(p.items))
}

// LocalPaths resolves items to files in the cache directory.
type LocalPaths struct {
	Root string
}

// Path returns <root>/<item>.<ext>.
func (p LocalPaths) Path(item string, enc Encoding) string {
	return filepath.Join(p.Root, item+"."+enc.Ext())
}

package git

import (
	"context"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// treeNode is one directory level while writing the manifest out.
type treeNode struct {
	files map[string]stagedEntry
	dirs  map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{files: make(map[string]stagedEntry), dirs: make(map[string]*treeNode)}
}

// writeTree writes the manifest as nested trees, deepest first, and returns
// the root tree id. An empty manifest produces the empty tree.
func (s *stager) writeTree(ctx context.Context) (plumbing.Hash, error) {
	root := newTreeNode()
	for p, e := range s.entries {
		node := root
		parts := strings.Split(p, "/")
		for _, dir := range parts[:len(parts)-1] {
			child, ok := node.dirs[dir]
			if !ok {
				child = newTreeNode()
				node.dirs[dir] = child
			}
			node = child
		}
		node.files[parts[len(parts)-1]] = e
	}
	return root.write(ctx, s.repo)
}

func (n *treeNode) write(ctx context.Context, r *Repo) (plumbing.Hash, error) {
	entries := make([]object.TreeEntry, 0, len(n.files)+len(n.dirs))
	for name, child := range n.dirs {
		h, err := child.write(ctx, r)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: h})
	}
	for name, e := range n.files {
		entries = append(entries, object.TreeEntry{Name: name, Mode: e.mode, Hash: e.hash})
	}
	return r.writeTree(ctx, entries)
}

// Package reduce merges a configuration chain into an environment-aware tree.
//
// Plugins and presets concatenate in chain order, scalars are last writer
// wins, and environment sections become nested nodes instead of being
// flattened: for an environment E, every contribution after the first E
// section sits one level deeper under env[E] than the one before it.
package reduce

import (
	"sort"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/chain"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/config"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/format"
)

// Scalar is a non-list value together with the format of the layer that
// set it.
type Scalar struct {
	Value  any
	Format format.Format
}

// Tree is one node of a reduced configuration.
type Tree struct {
	// Format renders the node's structural keys.
	Format format.Format

	Plugins []chain.PluginRef
	Presets []chain.PluginRef
	Scalars map[string]Scalar

	// Env holds the environment-specific children. Below the root, a node
	// only ever has a child for its own environment name.
	Env map[string]*Tree
}

func newTree(f format.Format) *Tree {
	return &Tree{Format: f, Scalars: make(map[string]Scalar)}
}

// EnvNames returns the environment names with a branch at this node, sorted.
func (t *Tree) EnvNames() []string {
	names := make([]string, 0, len(t.Env))
	for name := range t.Env {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Depth returns how many nested env[name] levels exist below t.
func (t *Tree) Depth(name string) int {
	depth := 0
	for node := t.Env[name]; node != nil; node = node.Env[name] {
		depth++
	}
	return depth
}

// Reduce merges c into a Tree. It never fails and does not modify c.
func Reduce(c *chain.Chain) *Tree {
	f := format.Relaxed
	if n := len(c.Links); n > 0 {
		f = c.Links[n-1].Format
	}

	root := newTree(f)
	for _, link := range c.Links {
		root.Plugins = append(root.Plugins, link.Plugins...)
		root.Presets = append(root.Presets, link.Presets...)
		for key, value := range link.Scalars {
			root.Scalars[key] = Scalar{Value: value, Format: link.Format}
		}
	}
	// The generated options replace directory lookup.
	root.Scalars[config.FieldBabelrc] = Scalar{Value: false, Format: f}

	for _, name := range c.EnvNames() {
		if root.Env == nil {
			root.Env = make(map[string]*Tree)
		}
		root.Env[name] = reduceEnv(root.Format, linearize(c.Links, name, false), name)
	}
	return root
}

// segment is one link's contribution to an environment, in chain order.
type segment struct {
	link *chain.Link
	env  bool
}

// linearize flattens links for environment name: each link's own data
// followed by its name section sub-chain, recursively.
func linearize(links []*chain.Link, name string, inEnv bool) []segment {
	var out []segment
	for _, link := range links {
		out = append(out, segment{link: link, env: inEnv})
		if sub, ok := link.EnvSections[name]; ok {
			out = append(out, linearize(sub, name, true)...)
		}
	}
	return out
}

func reduceEnv(f format.Format, segments []segment, name string) *Tree {
	node := newTree(f)
	cur := node
	nested := false
	for _, seg := range segments {
		if !seg.env && !nested {
			cur.Plugins = append(cur.Plugins, seg.link.Plugins...)
			cur.Presets = append(cur.Presets, seg.link.Presets...)
			continue
		}
		nested = true
		if segmentEmpty(seg) {
			continue
		}

		child := newTree(seg.link.Format)
		child.Plugins = append(child.Plugins, seg.link.Plugins...)
		child.Presets = append(child.Presets, seg.link.Presets...)
		if seg.env {
			for key, value := range seg.link.Scalars {
				child.Scalars[key] = Scalar{Value: value, Format: seg.link.Format}
			}
		}
		cur.Env = map[string]*Tree{name: child}
		cur = child
	}
	return node
}

// segmentEmpty reports whether seg adds nothing to an env node. Scalars of
// base links live on the root, so they don't count.
func segmentEmpty(seg segment) bool {
	if len(seg.link.Plugins) > 0 || len(seg.link.Presets) > 0 {
		return false
	}
	return !seg.env || len(seg.link.Scalars) == 0
}

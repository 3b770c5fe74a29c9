// Package chain collects the ordered configuration chain for a resolution
// request: directory-local config files, package.json fields, extends
// targets and the caller-supplied options layer.
package chain

import (
	"sort"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/format"
)

// PluginRef is one resolved plugin or preset entry.
type PluginRef struct {
	// Path is the absolute path of the resolved module file.
	Path string

	// Options is the entry's options object. Only meaningful when HasOptions.
	Options map[string]any

	// HasOptions distinguishes ["ref", {}] from "ref".
	HasOptions bool

	// Label is the optional third tuple element.
	Label string

	// Format is the format of the layer that declared the entry.
	Format format.Format
}

// Link is one configuration layer.
type Link struct {
	// Origin is the file path the layer was read from, or the request's
	// source identifier for the caller-supplied layer. Env section links
	// carry "<origin>#env.<name>".
	Origin string

	// Dir is the directory references in this layer resolve against.
	Dir string

	// Virtual marks the caller-supplied layer.
	Virtual bool

	Format format.Format

	// Hash is the content digest of the layer's source. Empty for env
	// section links.
	Hash string

	Plugins []PluginRef
	Presets []PluginRef

	// Scalars holds every key of the layer's data other than plugins,
	// presets, env and extends.
	Scalars map[string]any

	// EnvSections maps an environment name to the sub-chain for that
	// section: the section's extends targets first, its own data last.
	EnvSections map[string][]*Link

	// Section is the environment name for env section links.
	Section string
}

// Empty reports whether the link contributes no plugins, presets or scalars.
// Env sections are not considered.
func (l *Link) Empty() bool {
	return len(l.Plugins) == 0 && len(l.Presets) == 0 && len(l.Scalars) == 0
}

// Dependency is a resolved plugin or preset file.
type Dependency struct {
	Path string
	Hash string
}

// Chain is the ordered result of a collection. It is not modified after
// Collect returns.
type Chain struct {
	// BaseDir is the directory where configuration was found, or the
	// directory lookup started from when none was found.
	BaseDir string

	Links []*Link

	// Files lists every file read, in read order.
	Files []string

	// FileHashes maps each entry of Files to its content digest.
	FileHashes map[string]string

	// Dependencies lists every distinct resolved plugin and preset file in
	// the order first encountered.
	Dependencies []Dependency
}

// Virtual returns the caller-supplied links, in chain order.
func (c *Chain) Virtual() []*Link {
	var links []*Link
	for _, l := range c.Links {
		if l.Virtual {
			links = append(links, l)
		}
	}
	return links
}

// EnvNames returns every environment name declared by a top-level link,
// sorted.
func (c *Chain) EnvNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, l := range c.Links {
		for name := range l.EnvSections {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

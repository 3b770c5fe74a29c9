package chain

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/config"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/resolve"
)

// entry is a parsed, not yet resolved, plugin or preset entry.
type entry struct {
	kind       resolve.Kind
	ref        string
	options    map[string]any
	hasOptions bool
	label      string
}

// parseEntries validates a plugins or presets list. Accepted entries are
// "ref", ["ref"], ["ref", options] and ["ref", options, "label"]. A null
// options element counts as absent.
func parseEntries(origin, field string, kind resolve.Kind, raw any) ([]entry, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, invalid(origin, "%q must be an array", field)
	}

	entries := make([]entry, 0, len(list))
	for i, item := range list {
		e := entry{kind: kind}
		switch v := item.(type) {
		case string:
			e.ref = v
		case []any:
			if len(v) == 0 || len(v) > 3 {
				return nil, invalid(origin, "%s[%d] must have one to three elements", field, i)
			}
			ref, ok := v[0].(string)
			if !ok {
				return nil, invalid(origin, "%s[%d][0] must be a string", field, i)
			}
			e.ref = ref
			if len(v) > 1 && v[1] != nil {
				opts, ok := v[1].(map[string]any)
				if !ok {
					return nil, invalid(origin, "%s[%d] options must be an object", field, i)
				}
				e.options = opts
				e.hasOptions = true
			}
			if len(v) > 2 {
				label, ok := v[2].(string)
				if !ok {
					return nil, invalid(origin, "%s[%d] label must be a string", field, i)
				}
				e.label = label
			}
		default:
			return nil, invalid(origin, "%s[%d] must be a string or an array", field, i)
		}
		if e.ref == "" {
			return nil, invalid(origin, "%s[%d] has an empty reference", field, i)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// entries resolves a layer's plugins and presets. Every reference of the
// layer is resolved and hashed concurrently; list order is preserved.
func (r *run) entries(src layerSource, rawPlugins, rawPresets any) ([]PluginRef, []PluginRef, error) {
	plugins, err := parseEntries(src.origin, config.FieldPlugins, resolve.KindPlugin, rawPlugins)
	if err != nil {
		return nil, nil, err
	}
	presets, err := parseEntries(src.origin, config.FieldPresets, resolve.KindPreset, rawPresets)
	if err != nil {
		return nil, nil, err
	}

	all := append(plugins, presets...)
	if len(all) == 0 {
		return nil, nil, nil
	}

	paths := make([]string, len(all))
	hashes := make([]string, len(all))
	g, ctx := errgroup.WithContext(r.ctx)
	for i, e := range all {
		i, e := i, e
		g.Go(func() error {
			path, err := r.resolveRef(ctx, e.kind, e.ref, src.dir)
			if err != nil {
				return &config.ResolutionError{
					Op:   config.OpResolve,
					Path: src.origin,
					Err:  fmt.Errorf("%s %q: %w", e.kind, e.ref, err),
				}
			}
			hash, err := r.dependencyHash(path)
			if err != nil {
				return err
			}
			paths[i] = path
			hashes[i] = hash
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	refs := make([]PluginRef, len(all))
	for i, e := range all {
		refs[i] = PluginRef{
			Path:       paths[i],
			Options:    e.options,
			HasOptions: e.hasOptions,
			Label:      e.label,
			Format:     src.format,
		}
		if !r.depSeen[paths[i]] {
			r.depSeen[paths[i]] = true
			r.deps = append(r.deps, Dependency{Path: paths[i], Hash: hashes[i]})
		}
	}

	n := len(plugins)
	var pluginRefs, presetRefs []PluginRef
	if n > 0 {
		pluginRefs = refs[:n:n]
	}
	if len(refs) > n {
		presetRefs = refs[n:]
	}
	return pluginRefs, presetRefs, nil
}

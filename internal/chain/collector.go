package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/cache"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/config"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/format"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/hashing"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/resolve"
)

// Collector builds configuration chains. It is safe for concurrent use when
// its Cache is shared; each Collect call keeps its own chain state.
type Collector struct {
	fs       afero.Fs
	resolver resolve.Resolver
	cache    *cache.Cache
	logger   config.Logger
}

// NewCollector creates a Collector. A nil cache is replaced by a fresh one.
func NewCollector(fs afero.Fs, resolver resolve.Resolver, c *cache.Cache) *Collector {
	if c == nil {
		c = cache.New()
	}
	return &Collector{
		fs:       fs,
		resolver: resolver,
		cache:    c,
		logger:   config.DefaultLogger(),
	}
}

// WithLogger sets a custom logger for the collector.
func (c *Collector) WithLogger(logger config.Logger) *Collector {
	c.logger = logger
	return c
}

// Collect builds the chain for a validated request.
//
// Directory configuration is looked up from req.Dir, or from the directory
// containing req.Source, unless the request options set babelrc to false.
// The caller-supplied options become the last link; their extends targets
// come right before it.
func (c *Collector) Collect(ctx context.Context, req *config.Request) (*Chain, error) {
	startDir := req.Dir
	if startDir == "" {
		abs, err := filepath.Abs(req.Source)
		if err != nil {
			return nil, &config.ResolutionError{Op: config.OpStat, Path: req.Source, Err: err}
		}
		startDir = filepath.Dir(abs)
	}

	r := c.newRun(ctx)
	baseDir := startDir
	if !req.DirectoryLookupDisabled() {
		found, err := r.lookup(startDir)
		if err != nil {
			return nil, err
		}
		if found != "" {
			baseDir = found
		}
	} else {
		c.logger.Debug("directory lookup disabled", "source", req.Source)
	}

	hash := req.Hash
	if hash == "" {
		data, err := json.Marshal(req.Options)
		if err != nil {
			return nil, &config.ResolutionError{Op: config.OpHash, Path: req.Source, Err: err}
		}
		hash = hashing.Sum(data)
	}

	f := format.Relaxed
	if !req.RelaxedFormat() {
		f = format.Strict
	}

	links, err := r.layer(layerSource{
		origin:  req.Source,
		dir:     startDir,
		format:  f,
		hash:    hash,
		virtual: true,
	}, req.Options)
	if err != nil {
		return nil, err
	}
	r.links = append(r.links, links...)

	return r.finish(baseDir), nil
}

// CollectDirectory builds the chain for the configuration found from dir
// upwards. There is no caller-supplied link.
func (c *Collector) CollectDirectory(ctx context.Context, dir string) (*Chain, error) {
	startDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, &config.ResolutionError{Op: config.OpStat, Path: dir, Err: err}
	}

	r := c.newRun(ctx)
	found, err := r.lookup(startDir)
	if err != nil {
		return nil, err
	}
	if found == "" {
		found = startDir
	}
	return r.finish(found), nil
}

// run holds the state of one Collect call. Fields are only touched from the
// calling goroutine; concurrent work writes into preallocated slots.
type run struct {
	*Collector
	ctx context.Context

	links      []*Link
	loaded     map[string]bool
	files      []string
	fileHashes map[string]string
	deps       []Dependency
	depSeen    map[string]bool
}

func (c *Collector) newRun(ctx context.Context) *run {
	return &run{
		Collector:  c,
		ctx:        ctx,
		loaded:     make(map[string]bool),
		fileHashes: make(map[string]string),
		depSeen:    make(map[string]bool),
	}
}

func (r *run) finish(baseDir string) *Chain {
	r.logger.Info("collected configuration chain",
		"base_dir", baseDir,
		"links", len(r.links),
		"files", len(r.files),
		"dependencies", len(r.deps))

	return &Chain{
		BaseDir:      baseDir,
		Links:        r.links,
		Files:        r.files,
		FileHashes:   r.fileHashes,
		Dependencies: r.deps,
	}
}

// lookup walks from dir to the filesystem root and loads the first
// directory configuration found. It returns the directory it was found in,
// or "" when there is none.
func (r *run) lookup(dir string) (string, error) {
	for {
		if err := r.ctx.Err(); err != nil {
			return "", err
		}

		rcPath := filepath.Join(dir, config.BabelrcFilename)
		pkgPath := filepath.Join(dir, config.PackageFilename)

		var rcExists, pkgExists bool
		g, _ := errgroup.WithContext(r.ctx)
		g.Go(func() (err error) {
			rcExists, err = r.exists(rcPath)
			return err
		})
		g.Go(func() (err error) {
			pkgExists, err = r.exists(pkgPath)
			return err
		})
		if err := g.Wait(); err != nil {
			return "", err
		}

		var rcData, pkgData []byte
		g, _ = errgroup.WithContext(r.ctx)
		if rcExists {
			g.Go(func() (err error) {
				rcData, err = r.read(rcPath)
				return err
			})
		}
		if pkgExists {
			g.Go(func() (err error) {
				pkgData, err = r.read(pkgPath)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}

		if rcExists {
			rcHash := r.record(rcPath, rcData)
			if pkgExists {
				r.record(pkgPath, pkgData)
			}
			r.logger.Debug("found config file", "path", rcPath)
			links, err := r.loadData(rcPath, format.ForFile(rcPath), rcData, rcHash)
			if err != nil {
				return "", err
			}
			r.links = append(r.links, links...)
			return dir, nil
		}

		if pkgExists {
			pkgHash := r.record(pkgPath, pkgData)
			pkg, err := format.ParseStrict(pkgData)
			if err != nil {
				return "", &config.ResolutionError{Op: config.OpParse, Path: pkgPath, Err: err}
			}
			if raw, ok := pkg[config.PackageField]; ok && raw != nil {
				data, ok := raw.(map[string]any)
				if !ok {
					return "", invalid(pkgPath, "%q field must be an object", config.PackageField)
				}
				r.logger.Debug("found package config", "path", pkgPath)
				r.loaded[pkgPath] = true
				links, err := r.layer(layerSource{
					origin: pkgPath,
					dir:    dir,
					format: format.Strict,
					hash:   pkgHash,
				}, data)
				if err != nil {
					return "", err
				}
				r.links = append(r.links, links...)
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			r.logger.Debug("no directory configuration found")
			return "", nil
		}
		dir = parent
	}
}

// layerSource describes where a layer's data came from.
type layerSource struct {
	origin  string
	dir     string
	format  format.Format
	hash    string
	virtual bool
	section string
}

// layer turns one layer's data into links: its extends targets first, the
// layer itself last.
func (r *run) layer(src layerSource, data map[string]any) ([]*Link, error) {
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	var links []*Link
	if raw, ok := data[config.FieldExtends]; ok && raw != nil {
		ref, ok := raw.(string)
		if !ok || ref == "" {
			return nil, invalid(src.origin, "%q must be a non-empty string", config.FieldExtends)
		}
		extended, err := r.extends(src, ref)
		if err != nil {
			return nil, err
		}
		links = append(links, extended...)
	}

	link := &Link{
		Origin:  src.origin,
		Dir:     src.dir,
		Virtual: src.virtual,
		Format:  src.format,
		Hash:    src.hash,
		Section: src.section,
		Scalars: make(map[string]any),
	}
	for key, value := range data {
		switch key {
		case config.FieldPlugins, config.FieldPresets, config.FieldEnv, config.FieldExtends:
			continue
		}
		link.Scalars[key] = value
	}

	var err error
	link.Plugins, link.Presets, err = r.entries(src, data[config.FieldPlugins], data[config.FieldPresets])
	if err != nil {
		return nil, err
	}

	if link.EnvSections, err = r.envSections(src, data[config.FieldEnv]); err != nil {
		return nil, err
	}

	return append(links, link), nil
}

func (r *run) envSections(src layerSource, raw any) (map[string][]*Link, error) {
	if raw == nil {
		return nil, nil
	}
	sections, ok := raw.(map[string]any)
	if !ok {
		return nil, invalid(src.origin, "%q must be an object", config.FieldEnv)
	}

	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make(map[string][]*Link, len(names))
	for _, name := range names {
		data := map[string]any{}
		if sections[name] != nil {
			section, ok := sections[name].(map[string]any)
			if !ok {
				return nil, invalid(src.origin, "%s.%s must be an object", config.FieldEnv, name)
			}
			data = section
		}

		links, err := r.layer(layerSource{
			origin:  src.origin + "#" + config.FieldEnv + "." + name,
			dir:     src.dir,
			format:  src.format,
			section: name,
		}, data)
		if err != nil {
			return nil, err
		}
		result[name] = links
	}
	return result, nil
}

// extends loads the file ref points at, relative to the referencing layer.
// Files already in the chain are not loaded again.
func (r *run) extends(src layerSource, ref string) ([]*Link, error) {
	var target string
	if filepath.IsAbs(ref) || strings.HasPrefix(ref, ".") {
		target = ref
		if !filepath.IsAbs(target) {
			target = filepath.Join(src.dir, filepath.FromSlash(ref))
		}
		exists, err := r.exists(target)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &config.ResolutionError{
				Op:   config.OpExtends,
				Path: target,
				Err:  fmt.Errorf("extended by %s: %w", src.origin, os.ErrNotExist),
			}
		}
	} else {
		resolved, err := r.resolveRef(r.ctx, resolve.KindModule, ref, src.dir)
		if err != nil {
			return nil, &config.ResolutionError{
				Op:   config.OpExtends,
				Path: ref,
				Err:  fmt.Errorf("extended by %s: %w", src.origin, err),
			}
		}
		target = resolved
	}

	if r.loaded[target] {
		r.logger.Debug("skipping already loaded config", "path", target)
		return nil, nil
	}

	r.logger.Debug("loading extended config", "path", target, "from", src.origin)
	data, err := r.read(target)
	if err != nil {
		return nil, err
	}
	hash := r.record(target, data)
	return r.loadData(target, format.ForFile(target), data, hash)
}

// loadData parses a whole config file and turns it into links.
func (r *run) loadData(path string, f format.Format, data []byte, hash string) ([]*Link, error) {
	obj, err := format.Parse(f, data)
	if err != nil {
		return nil, &config.ResolutionError{Op: config.OpParse, Path: path, Err: err}
	}
	r.loaded[path] = true
	return r.layer(layerSource{
		origin: path,
		dir:    filepath.Dir(path),
		format: f,
		hash:   hash,
	}, obj)
}

func (r *run) exists(path string) (bool, error) {
	exists, err := r.cache.FileExistence.Load(path, func() (bool, error) {
		_, err := r.fs.Stat(path)
		if err == nil {
			return true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	})
	if err != nil {
		return false, &config.ResolutionError{Op: config.OpStat, Path: path, Err: err}
	}
	return exists, nil
}

func (r *run) read(path string) ([]byte, error) {
	data, err := r.cache.Files.Load(path, func() ([]byte, error) {
		return afero.ReadFile(r.fs, path)
	})
	if err != nil {
		return nil, &config.ResolutionError{Op: config.OpRead, Path: path, Err: err}
	}
	return data, nil
}

// record adds path to the chain's file list and returns its content digest.
func (r *run) record(path string, data []byte) string {
	hash, _ := r.cache.SourceHashes.Load(path, func() (string, error) {
		return hashing.Sum(data), nil
	})
	if _, ok := r.fileHashes[path]; !ok {
		r.files = append(r.files, path)
		r.fileHashes[path] = hash
	}
	return hash
}

// resolveRef resolves ref through the shared resolution cache. Other
// collections may join the load this call starts, so the load runs detached
// from ctx cancellation: one collection failing must not fail the others.
func (r *run) resolveRef(ctx context.Context, kind resolve.Kind, ref, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := string(kind) + ":" + ref
	shared := context.WithoutCancel(ctx)
	return r.cache.Resolutions(dir).Load(key, func() (string, error) {
		r.logger.Debug("resolving reference", "kind", kind, "ref", ref, "dir", dir)
		return r.resolver.Resolve(shared, kind, ref, dir)
	})
}

func (r *run) dependencyHash(path string) (string, error) {
	hash, err := r.cache.DependencyHashes.Load(path, func() (string, error) {
		data, err := afero.ReadFile(r.fs, path)
		if err != nil {
			return "", err
		}
		return hashing.Sum(data), nil
	})
	if err != nil {
		return "", &config.ResolutionError{Op: config.OpHash, Path: path, Err: err}
	}
	return hash, nil
}

func invalid(path, msg string, args ...any) error {
	return &config.ResolutionError{
		Op:   config.OpInvalid,
		Path: path,
		Err:  fmt.Errorf(msg, args...),
	}
}

// Package service composes collection, reduction, code generation and
// fingerprinting into the precompile operations used by the CLI and by
// embedding callers.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/cache"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/chain"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/codegen"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/config"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/envname"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/luamod"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/reduce"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/resolve"
	"github.com/ZebulonRouseFrantzich/rcchain/internal/verifier"
)

// PrecompileService resolves configuration chains into generated modules.
// It holds no per-call state and is safe for concurrent use.
type PrecompileService struct {
	fs       afero.Fs
	resolver resolve.Resolver
	clock    Clock
	logger   config.Logger
}

// NewPrecompileService creates a service reading from fs and resolving
// plugins and presets with resolver. A nil resolver is replaced by a
// NodeResolver over fs.
func NewPrecompileService(fs afero.Fs, resolver resolve.Resolver) *PrecompileService {
	if resolver == nil {
		resolver = resolve.NewNodeResolver(fs)
	}
	return &PrecompileService{
		fs:       fs,
		resolver: resolver,
		clock:    RealClock{},
		logger:   config.DefaultLogger(),
	}
}

// WithLogger sets a custom logger for the service and the collectors it creates.
func (s *PrecompileService) WithLogger(logger config.Logger) *PrecompileService {
	s.logger = logger
	return s
}

// WithClock sets the clock used to time resolutions.
func (s *PrecompileService) WithClock(clock Clock) *PrecompileService {
	s.clock = clock
	return s
}

// FromConfig resolves the chain for req. A nil cache means a fresh cache for
// this call only.
func (s *PrecompileService) FromConfig(ctx context.Context, req *config.Request, c *cache.Cache) (*Result, error) {
	if req == nil {
		return nil, &config.ValidationError{Message: "request is nil"}
	}

	start := s.clock.Now()
	ch, err := s.collector(c).Collect(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", req.Source, err)
	}
	return s.finish(ch, req.Source, start), nil
}

// FromDirectory resolves the chain for the configuration found from dir
// upwards. A nil cache means a fresh cache for this call only.
func (s *PrecompileService) FromDirectory(ctx context.Context, dir string, c *cache.Cache) (*Result, error) {
	start := s.clock.Now()
	ch, err := s.collector(c).CollectDirectory(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	return s.finish(ch, dir, start), nil
}

func (s *PrecompileService) collector(c *cache.Cache) *chain.Collector {
	return chain.NewCollector(s.fs, s.resolver, c).WithLogger(s.logger)
}

func (s *PrecompileService) finish(ch *chain.Chain, source string, start time.Time) *Result {
	res := &Result{chain: ch, tree: reduce.Reduce(ch)}
	s.logger.Info("precompiled configuration",
		"source", source,
		"base_dir", ch.BaseDir,
		"links", len(ch.Links),
		"files", len(ch.Files),
		"dependencies", len(ch.Dependencies),
		"envs", res.tree.EnvNames(),
		"duration", s.clock.Now().Sub(start),
	)
	return res
}

// Result is one resolved chain. The reduced tree is computed eagerly; the
// module text is generated on first use.
type Result struct {
	chain *chain.Chain
	tree  *reduce.Tree

	once   sync.Once
	module string
}

// Chain returns the collected chain.
func (r *Result) Chain() *chain.Chain {
	return r.chain
}

// Tree returns the reduced tree.
func (r *Result) Tree() *reduce.Tree {
	return r.tree
}

// GenerateModule returns the generated module source. Repeated calls return
// the same text.
func (r *Result) GenerateModule() string {
	r.once.Do(func() {
		r.module = codegen.NewGenerator().Generate(r.tree)
	})
	return r.module
}

// CreateVerifier fingerprints the inputs of the resolution. Each call
// returns a new Verifier.
func (r *Result) CreateVerifier() *verifier.Verifier {
	return verifier.Build(r.chain)
}

// LoadModule loads the generated module into a sandboxed VM.
func (r *Result) LoadModule(opts ...luamod.Option) (*luamod.Module, error) {
	return luamod.Load(r.GenerateModule(), opts...)
}

// PrepareCache returns an empty cache that can be shared across calls.
func PrepareCache() *cache.Cache {
	return cache.New()
}

// RestoreVerifier reconstructs a Verifier serialized with ToBuffer. A
// malformed buffer fails with *verifier.DeserializeError.
func RestoreVerifier(buf []byte) (*verifier.Verifier, error) {
	return verifier.FromBuffer(buf)
}

// CurrentEnv returns the active environment name of this process.
func CurrentEnv() string {
	return envname.Current()
}

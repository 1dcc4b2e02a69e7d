// Package plugin binds the transform pipeline into a host bundler's
// extension points: configuration contribution, virtual-module resolution
// and loading, HTML transformation, one-time cache initialization, and the
// per-file transform hook.
//
// Serve mode and build mode are two genuinely different pipelines sharing a
// configuration surface: an interactive session routes eligible files
// through the cache-backed pipeline and wires in live refresh, while a
// one-shot production build only contributes equivalent compiler settings
// to the host, because caching and refresh have no value without a session.
package plugin

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/conneroisu/refract/internal/cache"
	"github.com/conneroisu/refract/internal/config"
	"github.com/conneroisu/refract/internal/logging"
	"github.com/conneroisu/refract/internal/runtime"
	"github.com/conneroisu/refract/internal/transform"
	"github.com/conneroisu/refract/internal/types"
)

// Mode selects the serve or build variant of the adapter at construction.
type Mode int

const (
	// ModeServe is an interactive development session.
	ModeServe Mode = iota
	// ModeBuild is a one-shot production build.
	ModeBuild
)

// String returns the string representation of the Mode.
func (m Mode) String() string {
	if m == ModeBuild {
		return "build"
	}
	return "serve"
}

// CompilerSettings configures the host's built-in compiler for production
// builds so its output shape matches what the pipeline produces in serve
// mode.
type CompilerSettings struct {
	MarkupRuntime     string
	DefineClassFields bool
}

// Host is the hook surface the bundler offers plugins.
type Host interface {
	// DisableBuiltinTransform stops the host from compiling the given
	// extensions itself.
	DisableBuiltinTransform(extensions ...string)
	// PreBundle asks the host to pre-bundle dependency entry points.
	PreBundle(specifiers ...string)
	// ConfigureCompiler applies settings to the host's built-in compiler.
	ConfigureCompiler(settings CompilerSettings)
}

// eligibleExtensions are the file extensions the pipeline takes over from
// the host in serve mode.
var eligibleExtensions = []string{".tsx", ".ts", ".jsx"}

// preBundled are the markup runtime's development entry points, warmed so
// the first page load does not stall on dependency optimization.
var preBundled = []string{"react", "react/jsx-dev-runtime", "react-dom/client"}

// Adapter exposes the pipeline through the host's hook surface.
type Adapter struct {
	mode     Mode
	cfg      *config.Config
	root     string // absolute project root
	store    *cache.Store
	pipeline *transform.Pipeline
	tr       transform.Transformer
	logger   logging.Logger

	initOnce sync.Once
	initErr  error
}

// New creates an adapter for the given mode.
func New(cfg *config.Config, mode Mode, store *cache.Store, pipeline *transform.Pipeline, tr transform.Transformer, logger logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.NewLogger(nil)
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		root = cfg.Root
	}
	return &Adapter{
		mode:     mode,
		cfg:      cfg,
		root:     root,
		store:    store,
		pipeline: pipeline,
		tr:       tr,
		logger:   logger.WithComponent("plugin"),
	}
}

// Name returns the plugin's name.
func (a *Adapter) Name() string { return "refract" }

// Configure contributes mode-specific build settings to the host.
func (a *Adapter) Configure(host Host) {
	switch a.mode {
	case ModeServe:
		host.DisableBuiltinTransform(eligibleExtensions...)
		host.PreBundle(preBundled...)
	case ModeBuild:
		host.ConfigureCompiler(CompilerSettings{
			MarkupRuntime:     "automatic",
			DefineClassFields: true,
		})
	}
}

// ConfigResolved runs once the host has resolved its configuration. In
// serve mode it initializes the cache store exactly once per session;
// repeat calls while the cache is already populated are no-ops.
func (a *Adapter) ConfigResolved(ctx context.Context) error {
	if a.mode != ModeServe {
		return nil
	}
	a.initOnce.Do(func() {
		a.initErr = a.store.Initialize(ctx, a.cfg.Root, a.cfg.Cache.Dir, a.tr.Version())
	})
	return a.initErr
}

// ResolveID answers the synthetic module request for the refresh runtime.
func (a *Adapter) ResolveID(specifier string) (string, bool) {
	if a.mode == ModeServe && specifier == transform.RuntimeSpecifier {
		return transform.RuntimeSpecifier, true
	}
	return "", false
}

// Load serves the refresh runtime module for its virtual id.
func (a *Adapter) Load(id string) (string, bool) {
	if a.mode == ModeServe && id == transform.RuntimeSpecifier {
		return runtime.Module(), true
	}
	return "", false
}

// Transform routes one file through the pipeline. path may be absolute or
// project-relative; ssr selects the server-rendering target. In build mode
// the host's own compiler does the work and this hook passes everything
// through.
func (a *Adapter) Transform(ctx context.Context, path, source string, ssr bool) (*types.CompiledModule, error) {
	if a.mode != ModeServe {
		return nil, nil
	}

	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(a.root, path)
		if err != nil {
			return nil, fmt.Errorf("relativizing %s against %s: %w", path, a.root, err)
		}
		rel = r
	}

	id := types.FileIdentity{Path: filepath.ToSlash(rel), SSR: ssr}
	return a.pipeline.Transform(ctx, id, source)
}

// Store exposes the cache store for diagnostics endpoints.
func (a *Adapter) Store() *cache.Store { return a.store }

// Mode reports which variant this adapter was constructed as.
func (a *Adapter) Mode() Mode { return a.mode }

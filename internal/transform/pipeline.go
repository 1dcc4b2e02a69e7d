package transform

import (
	"context"
	"strings"

	"github.com/conneroisu/refract/internal/cache"
	"github.com/conneroisu/refract/internal/errors"
	"github.com/conneroisu/refract/internal/logging"
	"github.com/conneroisu/refract/internal/types"
)

// Pipeline turns one file's source text into compiled output plus a
// position map, using the cache as a fast path and making the output
// refresh-aware when the compiled body carries the registration marker.
type Pipeline struct {
	store       *cache.Store
	transformer Transformer
	target      string
	logger      logging.Logger
}

// NewPipeline creates a pipeline over the given store and transformer.
func NewPipeline(store *cache.Store, transformer Transformer, target string, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewLogger(nil)
	}
	if target == "" {
		target = "es2020"
	}
	return &Pipeline{
		store:       store,
		transformer: transformer,
		target:      target,
		logger:      logger.WithComponent("transform"),
	}
}

// Transform compiles one file. A nil, nil return means the file is not
// eligible and passes through untouched. Compile failures surface as
// *errors.TransformError, enriched with a source position when the
// diagnostic text carries one.
func (p *Pipeline) Transform(ctx context.Context, id types.FileIdentity, source string) (*types.CompiledModule, error) {
	if id.Vendored() {
		return nil, nil
	}
	kind := types.KindForPath(id.Path)
	if !kind.Eligible() {
		return nil, nil
	}

	key := id.Key()
	if entry, ok := p.store.Lookup(key, source); ok {
		p.logger.Debug(ctx, "Cache hit", "key", key)
		return &types.CompiledModule{Code: entry.Code, Map: entry.Map}, nil
	}

	out, err := p.transformer.Transform(ctx, Input{
		Identity: id,
		Kind:     kind,
		Source:   source,
		Options: Options{
			Target:            p.target,
			DefineClassFields: true,
			SourceMaps:        true,
			AutomaticRuntime:  true,
			// SSR output runs in the server process and never refreshes;
			// disabling instrumentation here is what keeps the marker out
			// of server-target compiles.
			Refresh: !id.SSR,
		},
	})
	if err != nil {
		return nil, errors.Enrich(err)
	}

	code, m := out.Code, out.Map
	if strings.Contains(code, RefreshMarker) {
		code, m = injectRefresh(code, m, id)
	}

	p.store.Store(key, cache.Entry{Input: source, Code: code, Map: m})
	return &types.CompiledModule{Code: code, Map: m}, nil
}

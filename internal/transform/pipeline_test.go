package transform

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/refract/internal/cache"
	refracterrors "github.com/conneroisu/refract/internal/errors"
	"github.com/conneroisu/refract/internal/types"
)

// stubTransformer is a deterministic in-process transformer. It emits the
// refresh marker only when instrumentation was requested, mirroring how the
// real transformer behaves across targets.
type stubTransformer struct {
	mu       sync.Mutex
	calls    int
	lastIn   Input
	fail     error
	withMark bool
}

func (s *stubTransformer) Transform(ctx context.Context, in Input) (*Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastIn = in

	if s.fail != nil {
		return nil, s.fail
	}

	code := "const __mod = compile(" + in.Source + ");"
	if s.withMark && in.Options.Refresh {
		code += "\n$RefreshReg$(__mod, \"mod\");"
	}
	return &Output{
		Code: code,
		Map:  &types.SourceMap{Version: 3, Mappings: "AAAA;AACA"},
	}, nil
}

func (s *stubTransformer) Version() string { return "stub-1.0" }

func (s *stubTransformer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestPipeline(t *testing.T, tr Transformer) (*Pipeline, *cache.Store) {
	t.Helper()
	store := cache.NewStore(nil)
	require.NoError(t, store.Initialize(context.Background(), t.TempDir(), "cache", tr.Version()))
	return NewPipeline(store, tr, "es2020", nil), store
}

func TestPipeline_CacheFastPath(t *testing.T) {
	tr := &stubTransformer{}
	p, _ := newTestPipeline(t, tr)
	id := types.FileIdentity{Path: "src/App.tsx"}

	first, err := p.Transform(context.Background(), id, "const a = 1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, tr.callCount())

	second, err := p.Transform(context.Background(), id, "const a = 1")
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, 1, tr.callCount(), "identical input must not invoke the transformer again")
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Map, second.Map)
}

func TestPipeline_ExactInputEquality(t *testing.T) {
	tr := &stubTransformer{}
	p, store := newTestPipeline(t, tr)
	id := types.FileIdentity{Path: "src/App.tsx"}

	first, err := p.Transform(context.Background(), id, "const a = 1")
	require.NoError(t, err)

	// A whitespace-only difference forces recompilation.
	second, err := p.Transform(context.Background(), id, "const a = 1 ")
	require.NoError(t, err)

	assert.Equal(t, 2, tr.callCount())
	assert.NotEqual(t, first.Code, second.Code, "a changed input must never return the prior output")

	stats := store.GetStats()
	assert.Zero(t, stats.Hits, "recompiling a changed file is not a cache hit")
	assert.Equal(t, int64(2), stats.Misses)
}

func TestPipeline_SkipsIneligibleFiles(t *testing.T) {
	tests := []struct {
		name string
		id   types.FileIdentity
	}{
		{"vendored dependency", types.FileIdentity{Path: "node_modules/react/index.ts"}},
		{"nested vendored dependency", types.FileIdentity{Path: "app/node_modules/lib/util.tsx"}},
		{"plain javascript", types.FileIdentity{Path: "src/legacy.js"}},
		{"stylesheet", types.FileIdentity{Path: "src/main.css"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &stubTransformer{}
			p, store := newTestPipeline(t, tr)

			result, err := p.Transform(context.Background(), tt.id, "anything")
			require.NoError(t, err)
			assert.Nil(t, result, "ineligible files pass through")
			assert.Equal(t, 0, tr.callCount())
			assert.Equal(t, 0, store.GetStats().Entries, "skips must not populate the cache")
		})
	}
}

func TestPipeline_TargetIsolation(t *testing.T) {
	tr := &stubTransformer{withMark: true}
	p, store := newTestPipeline(t, tr)
	source := "export const App = () => markup"

	browser, err := p.Transform(context.Background(), types.FileIdentity{Path: "src/App.tsx"}, source)
	require.NoError(t, err)
	server, err := p.Transform(context.Background(), types.FileIdentity{Path: "src/App.tsx", SSR: true}, source)
	require.NoError(t, err)

	assert.Equal(t, 2, tr.callCount(), "each target compiles independently")
	assert.Equal(t, 2, store.GetStats().Entries, "targets cache under distinct keys")

	assert.Contains(t, browser.Code, RuntimeSpecifier, "browser output is refresh-instrumented")
	assert.NotContains(t, server.Code, RefreshMarker, "server output never carries the marker")
	assert.NotContains(t, server.Code, RuntimeSpecifier, "server output is never wrapped")
}

func TestPipeline_RefreshInjection(t *testing.T) {
	tr := &stubTransformer{withMark: true}
	p, _ := newTestPipeline(t, tr)

	result, err := p.Transform(context.Background(), types.FileIdentity{Path: "src/App.tsx"}, "body")
	require.NoError(t, err)

	assert.Contains(t, result.Code, `import RefreshRuntime from "`+RuntimeSpecifier+`"`)
	assert.Contains(t, result.Code, "window.$RefreshReg$ = prevRefreshReg;")
	assert.Contains(t, result.Code, "import.meta.hot.accept")

	// The map offset equals the number of lines prepended before the
	// original body, so original positions still resolve.
	bodyAt := strings.Index(result.Code, "const __mod")
	require.GreaterOrEqual(t, bodyAt, 0)
	prependedLines := strings.Count(result.Code[:bodyAt], "\n")

	prefix := strings.Repeat(";", prependedLines)
	assert.True(t, strings.HasPrefix(result.Map.Mappings, prefix+"AAAA"),
		"mappings %q must start with %d empty segments", result.Map.Mappings, prependedLines)
}

func TestPipeline_NoInjectionWithoutMarker(t *testing.T) {
	tr := &stubTransformer{withMark: false}
	p, _ := newTestPipeline(t, tr)

	result, err := p.Transform(context.Background(), types.FileIdentity{Path: "src/App.tsx"}, "body")
	require.NoError(t, err)

	assert.NotContains(t, result.Code, RuntimeSpecifier)
	assert.Equal(t, "AAAA;AACA", result.Map.Mappings, "map must be untouched without injection")
}

func TestPipeline_CompileErrorEnrichment(t *testing.T) {
	t.Run("position scraped from diagnostic frame", func(t *testing.T) {
		tr := &stubTransformer{fail: &refracterrors.TransformError{
			File:    "src/App.tsx",
			Message: "Unexpected token\n  ╭─[src/App.tsx:12:5]\n  │",
		}}
		p, store := newTestPipeline(t, tr)

		_, err := p.Transform(context.Background(), types.FileIdentity{Path: "src/App.tsx"}, "broken")
		require.Error(t, err)

		var te *refracterrors.TransformError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, 12, te.Line)
		assert.Equal(t, 5, te.Column)

		assert.Equal(t, 0, store.GetStats().Entries, "failed compiles must not populate the cache")
	})

	t.Run("no frame means no position", func(t *testing.T) {
		tr := &stubTransformer{fail: &refracterrors.TransformError{
			File:    "src/App.tsx",
			Message: "something went wrong",
		}}
		p, _ := newTestPipeline(t, tr)

		_, err := p.Transform(context.Background(), types.FileIdentity{Path: "src/App.tsx"}, "broken")
		require.Error(t, err)

		var te *refracterrors.TransformError
		require.ErrorAs(t, err, &te)
		assert.False(t, te.HasPosition())
	})
}

func TestPipeline_SemanticOptions(t *testing.T) {
	tr := &stubTransformer{}
	p, _ := newTestPipeline(t, tr)

	_, err := p.Transform(context.Background(), types.FileIdentity{Path: "src/App.tsx"}, "x")
	require.NoError(t, err)

	opts := tr.lastIn.Options
	assert.Equal(t, "es2020", opts.Target)
	assert.True(t, opts.DefineClassFields)
	assert.True(t, opts.SourceMaps)
	assert.True(t, opts.AutomaticRuntime)
	assert.True(t, opts.Refresh)
	assert.Equal(t, types.KindTypedMarkup, tr.lastIn.Kind)

	_, err = p.Transform(context.Background(), types.FileIdentity{Path: "src/App.tsx", SSR: true}, "x")
	require.NoError(t, err)
	assert.False(t, tr.lastIn.Options.Refresh, "SSR compiles disable instrumentation")
}

func TestPipeline_DialectDispatch(t *testing.T) {
	tests := []struct {
		path string
		want types.FileKind
	}{
		{"src/App.tsx", types.KindTypedMarkup},
		{"src/util.ts", types.KindTyped},
		{"src/Old.jsx", types.KindMarkup},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			tr := &stubTransformer{}
			p, _ := newTestPipeline(t, tr)

			_, err := p.Transform(context.Background(), types.FileIdentity{Path: tt.path}, "x")
			require.NoError(t, err)
			assert.Equal(t, tt.want, tr.lastIn.Kind)
		})
	}
}

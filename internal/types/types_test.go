package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindForPath(t *testing.T) {
	tests := []struct {
		path string
		want FileKind
	}{
		{"src/App.tsx", KindTypedMarkup},
		{"src/util.ts", KindTyped},
		{"src/Legacy.jsx", KindMarkup},
		{"src/plain.js", KindUnknown},
		{"styles/main.css", KindUnknown},
		{"README.md", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, KindForPath(tt.path))
		})
	}
}

func TestFileKind_Eligible(t *testing.T) {
	assert.True(t, KindTypedMarkup.Eligible())
	assert.True(t, KindTyped.Eligible())
	assert.True(t, KindMarkup.Eligible())
	assert.False(t, KindUnknown.Eligible())
}

func TestFileIdentity_Key(t *testing.T) {
	t.Run("flattens path separators", func(t *testing.T) {
		id := FileIdentity{Path: "src/components/App.tsx"}
		assert.Equal(t, "src+components+App.tsx", id.Key())
	})

	t.Run("server target gets its own key", func(t *testing.T) {
		browser := FileIdentity{Path: "src/App.tsx"}
		server := FileIdentity{Path: "src/App.tsx", SSR: true}
		assert.NotEqual(t, browser.Key(), server.Key())
		assert.Equal(t, "src+App.tsx-ssr", server.Key())
	})

	t.Run("distinct paths never collide", func(t *testing.T) {
		a := FileIdentity{Path: "src/a/App.tsx"}
		b := FileIdentity{Path: "src/b/App.tsx"}
		assert.NotEqual(t, a.Key(), b.Key())
	})
}

func TestFileIdentity_Vendored(t *testing.T) {
	assert.True(t, FileIdentity{Path: "node_modules/react/index.ts"}.Vendored())
	assert.True(t, FileIdentity{Path: "packages/app/node_modules/lib/x.tsx"}.Vendored())
	assert.False(t, FileIdentity{Path: "src/App.tsx"}.Vendored())
	assert.False(t, FileIdentity{Path: "src/node_modules_viewer.tsx"}.Vendored())
}

func TestSourceMap_PrependEmptyLines(t *testing.T) {
	t.Run("prefixes empty segments", func(t *testing.T) {
		m := &SourceMap{Version: 3, Mappings: "AAAA;CACA"}
		m.PrependEmptyLines(3)
		assert.Equal(t, ";;;AAAA;CACA", m.Mappings)
	})

	t.Run("zero and negative are no-ops", func(t *testing.T) {
		m := &SourceMap{Version: 3, Mappings: "AAAA"}
		m.PrependEmptyLines(0)
		m.PrependEmptyLines(-1)
		assert.Equal(t, "AAAA", m.Mappings)
	})

	t.Run("nil map is safe", func(t *testing.T) {
		var m *SourceMap
		assert.NotPanics(t, func() { m.PrependEmptyLines(5) })
	})
}

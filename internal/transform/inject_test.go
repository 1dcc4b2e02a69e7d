package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/refract/internal/types"
)

func TestInjectRefresh(t *testing.T) {
	id := types.FileIdentity{Path: "src/App.tsx"}
	body := "const App = () => 1;\n$RefreshReg$(App, \"App\");"
	m := &types.SourceMap{Version: 3, Mappings: "AAAA;CACA"}

	code, outMap := injectRefresh(body, m, id)

	t.Run("wraps the original body", func(t *testing.T) {
		assert.Contains(t, code, body)
		assert.True(t, strings.Contains(code, `import RefreshRuntime from "`+RuntimeSpecifier+`"`))
	})

	t.Run("guards against a missing preamble", func(t *testing.T) {
		assert.Contains(t, code, "__refract_preamble_installed__")
		assert.Contains(t, code, "throw new Error")
	})

	t.Run("saves and restores both hooks", func(t *testing.T) {
		assert.Contains(t, code, "const prevRefreshReg = window.$RefreshReg$;")
		assert.Contains(t, code, "const prevRefreshSig = window.$RefreshSig$;")
		assert.Contains(t, code, "window.$RefreshReg$ = prevRefreshReg;")
		assert.Contains(t, code, "window.$RefreshSig$ = prevRefreshSig;")
	})

	t.Run("installs the hot update handler", func(t *testing.T) {
		assert.Contains(t, code, "import.meta.hot.accept")
		assert.Contains(t, code, "validateRefreshBoundaryAndEnqueueUpdate")
		assert.Contains(t, code, "import.meta.hot.invalidate(invalidateMessage)")
	})

	t.Run("map offset matches prepended line count", func(t *testing.T) {
		bodyAt := strings.Index(code, body)
		require.GreaterOrEqual(t, bodyAt, 0)
		prepended := strings.Count(code[:bodyAt], "\n")

		assert.Equal(t, strings.Repeat(";", prepended)+"AAAA;CACA", outMap.Mappings)
	})

	t.Run("file id is embedded for registration", func(t *testing.T) {
		assert.Contains(t, code, `"src/App.tsx"`)
	})
}

func TestInjectRefresh_NilMap(t *testing.T) {
	id := types.FileIdentity{Path: "src/App.tsx"}
	assert.NotPanics(t, func() {
		code, m := injectRefresh("$RefreshReg$", nil, id)
		assert.NotEmpty(t, code)
		assert.Nil(t, m)
	})
}

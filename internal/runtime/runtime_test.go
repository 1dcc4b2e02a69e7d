package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conneroisu/refract/internal/transform"
)

func TestModule(t *testing.T) {
	code := Module()

	assert.Contains(t, code, "export function injectIntoGlobalHook")
	assert.Contains(t, code, "getRefreshReg")
	assert.Contains(t, code, "createSignatureFunctionForTransform")
	assert.Contains(t, code, "validateRefreshBoundaryAndEnqueueUpdate")
	assert.Contains(t, code, "export default")
}

func TestPreambleJS(t *testing.T) {
	preamble := PreambleJS()

	assert.True(t, strings.HasPrefix(preamble, "import RefreshRuntime from"))
	assert.Contains(t, preamble, transform.RuntimeSpecifier)

	// Modules compiled before the runtime loads must find no-op hooks
	// instead of throwing.
	assert.Contains(t, preamble, "window.$RefreshReg$ = () => {};")
	assert.Contains(t, preamble, "window.$RefreshSig$ = () => (type) => type;")
	assert.Contains(t, preamble, "__refract_preamble_installed__")
}

package transform

import (
	"fmt"
	"strings"

	"github.com/conneroisu/refract/internal/types"
)

// RefreshMarker is the registration token the transformer emits into
// instrumented output. Its presence is what makes a module refresh-aware.
const RefreshMarker = "$RefreshReg$"

// RuntimeSpecifier is the fixed virtual module id the refresh runtime is
// served under.
const RuntimeSpecifier = "/@refract/refresh"

// refreshHeader is prepended to instrumented modules. It imports the
// runtime, refuses to run when the HTML bootstrap preamble never loaded,
// and swaps the two global registration hooks in for the module body.
const refreshHeader = `import RefreshRuntime from "%[2]s";
if (!window.__refract_preamble_installed__) {
  throw new Error("refract: the refresh preamble was not loaded; the HTML bootstrap script is missing or ran too late");
}
const prevRefreshReg = window.$RefreshReg$;
const prevRefreshSig = window.$RefreshSig$;
window.$RefreshReg$ = RefreshRuntime.getRefreshReg(%[1]q);
window.$RefreshSig$ = RefreshRuntime.createSignatureFunctionForTransform;
`

// refreshFooter restores the saved hooks and installs the hot-update
// handler: re-import the module, let the runtime diff-validate the new
// exports against the old, and invalidate the boundary when validation
// reports an error.
const refreshFooter = `
window.$RefreshReg$ = prevRefreshReg;
window.$RefreshSig$ = prevRefreshSig;
if (import.meta.hot) {
  RefreshRuntime.hotModule(import.meta.url).then((currentExports) => {
    RefreshRuntime.registerExportsForRefresh(%[1]q, currentExports);
    import.meta.hot.accept((nextExports) => {
      if (!nextExports) return;
      const invalidateMessage = RefreshRuntime.validateRefreshBoundaryAndEnqueueUpdate(currentExports, nextExports);
      if (invalidateMessage) import.meta.hot.invalidate(invalidateMessage);
    });
  });
}
`

// injectRefresh wraps compiled output with the refresh bootstrap and shifts
// the position map down by the number of prepended lines so positions in
// the original body still resolve correctly. The header lines themselves
// intentionally carry no mapping.
func injectRefresh(code string, m *types.SourceMap, id types.FileIdentity) (string, *types.SourceMap) {
	header := fmt.Sprintf(refreshHeader, id.Path, RuntimeSpecifier)
	footer := fmt.Sprintf(refreshFooter, id.Path)

	m.PrependEmptyLines(strings.Count(header, "\n"))
	return header + code + footer, m
}

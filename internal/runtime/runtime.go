// Package runtime carries the browser-side refresh runtime module and the
// HTML bootstrap preamble that installs it.
package runtime

import (
	_ "embed"
	"fmt"

	"github.com/conneroisu/refract/internal/transform"
)

//go:embed refresh.js
var moduleSource string

// Module returns the refresh runtime module served for the fixed virtual
// specifier.
func Module() string {
	return moduleSource
}

// PreambleJS returns the body of the bootstrap script injected into every
// served HTML document. It initializes the runtime against the global scope
// and installs no-op defaults for the two registration hooks, so modules
// compiled before the runtime finished loading do not throw.
func PreambleJS() string {
	return fmt.Sprintf(`import RefreshRuntime from %q;
RefreshRuntime.injectIntoGlobalHook(window);
window.$RefreshReg$ = () => {};
window.$RefreshSig$ = () => (type) => type;
window.__refract_preamble_installed__ = true;`, transform.RuntimeSpecifier)
}

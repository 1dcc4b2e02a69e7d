// Package transform implements the per-file transform pipeline: dialect
// dispatch, the cache fast path, compile-error enrichment, and conditional
// live-refresh instrumentation of the compiled output.
package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/conneroisu/refract/internal/errors"
	"github.com/conneroisu/refract/internal/types"
	"github.com/conneroisu/refract/internal/version"
)

// Options are the semantic options passed to the transformer for one file.
// They are fixed per target: every browser compile uses the same options,
// and SSR compiles differ only in Refresh being off.
type Options struct {
	// Target is the emitted language level, e.g. "es2020".
	Target string
	// DefineClassFields selects explicit class-field initialization
	// semantics.
	DefineClassFields bool
	// SourceMaps requests position-map generation; the pipeline always
	// sets it.
	SourceMaps bool
	// AutomaticRuntime injects the markup runtime import automatically.
	AutomaticRuntime bool
	// Refresh enables live-refresh instrumentation in the compiled body.
	Refresh bool
}

// Input is one transformer invocation.
type Input struct {
	Identity types.FileIdentity
	Kind     types.FileKind
	Source   string
	Options  Options
}

// Output is a successful transformer result.
type Output struct {
	Code string           `json:"code"`
	Map  *types.SourceMap `json:"map"`
}

// Transformer is the external single-file compiler this pipeline delegates
// to. Implementations report compile failures as *errors.TransformError.
type Transformer interface {
	Transform(ctx context.Context, in Input) (*Output, error)
	// Version identifies the transformer build; it feeds the cache's
	// composite version so a transformer upgrade invalidates prior caches.
	Version() string
}

// ExecTransformer shells out to an external transformer binary. The binary
// receives the source on stdin and per-file options as flags, and prints a
// JSON {code, map} document on stdout. A non-zero exit is a compile error
// whose diagnostic text is whatever the binary printed to stderr.
type ExecTransformer struct {
	command string
	args    []string

	versionOnce sync.Once
	version     string
}

// NewExecTransformer creates a transformer around the given command.
func NewExecTransformer(command string, args []string) *ExecTransformer {
	return &ExecTransformer{command: command, args: args}
}

// Transform compiles one file by invoking the external binary.
func (t *ExecTransformer) Transform(ctx context.Context, in Input) (*Output, error) {
	args := append([]string{}, t.args...)
	args = append(args,
		"--filename", in.Identity.Path,
		"--syntax", in.Kind.String(),
		"--target", in.Options.Target,
	)
	if in.Options.DefineClassFields {
		args = append(args, "--define-class-fields")
	}
	if in.Options.SourceMaps {
		args = append(args, "--source-maps")
	}
	if in.Options.AutomaticRuntime {
		args = append(args, "--runtime", "automatic")
	}
	if in.Options.Refresh {
		args = append(args, "--refresh")
	}

	cmd := exec.CommandContext(ctx, t.command, args...)
	cmd.Stdin = strings.NewReader(in.Source)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("transformer interrupted: %w", ctx.Err())
		}
		return nil, &errors.TransformError{
			File:    in.Identity.Path,
			Message: strings.TrimSpace(stderr.String()),
		}
	}

	var out Output
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("decoding transformer output for %s: %w", in.Identity.Path, err)
	}
	return &out, nil
}

// Version returns the transformer binary's reported version, probed once.
// When probing fails the tool's own version stands in, which still gates
// the cache conservatively across refract upgrades.
func (t *ExecTransformer) Version() string {
	t.versionOnce.Do(func() {
		out, err := exec.Command(t.command, "--version").Output()
		if err != nil {
			t.version = "refract-" + version.GetVersion()
			return
		}
		t.version = strings.TrimSpace(string(out))
	})
	return t.version
}

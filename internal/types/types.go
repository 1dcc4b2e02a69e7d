// Package types defines the shared data model for the transform pipeline:
// file kinds, file identities, compiled modules, and source maps.
package types

import "strings"

// FileKind classifies a source file by dialect.
type FileKind int

const (
	KindUnknown FileKind = iota
	// KindTypedMarkup is a typed component file with markup (.tsx).
	KindTypedMarkup
	// KindTyped is a typed file without markup (.ts).
	KindTyped
	// KindMarkup is an untyped component file with markup (.jsx).
	KindMarkup
)

// String returns the string representation of the FileKind.
func (k FileKind) String() string {
	switch k {
	case KindTypedMarkup:
		return "tsx"
	case KindTyped:
		return "ts"
	case KindMarkup:
		return "jsx"
	default:
		return "unknown"
	}
}

// Eligible reports whether files of this kind pass through the transform
// pipeline. Plain .js files are deliberately left to the host.
func (k FileKind) Eligible() bool {
	switch k {
	case KindTypedMarkup, KindTyped, KindMarkup:
		return true
	default:
		return false
	}
}

// KindForPath determines the FileKind from a path's extension.
func KindForPath(path string) FileKind {
	switch {
	case strings.HasSuffix(path, ".tsx"):
		return KindTypedMarkup
	case strings.HasSuffix(path, ".ts"):
		return KindTyped
	case strings.HasSuffix(path, ".jsx"):
		return KindMarkup
	default:
		return KindUnknown
	}
}

// FileIdentity identifies one compilable unit: a project-relative path plus
// the target it is compiled for. The same path compiled for the browser and
// for server rendering yields two distinct identities.
type FileIdentity struct {
	// Path is the file's path relative to the project root, always
	// slash-separated.
	Path string
	// SSR marks a compile for the server-rendering target.
	SSR bool
}

// ssrSuffix distinguishes server-target cache entries on disk.
const ssrSuffix = "-ssr"

// Key derives the cache key for this identity. Path separators are flattened
// to '+' so the key doubles as an on-disk file name.
func (id FileIdentity) Key() string {
	key := strings.ReplaceAll(id.Path, "/", "+")
	if id.SSR {
		key += ssrSuffix
	}
	return key
}

// Vendored reports whether the file originates from an installed dependency
// tree and must not be compiled.
func (id FileIdentity) Vendored() bool {
	return strings.HasPrefix(id.Path, "node_modules/") ||
		strings.Contains(id.Path, "/node_modules/")
}

// SourceMap is a source-map v3 record correlating compiled output positions
// back to original source positions.
type SourceMap struct {
	Version        int      `json:"version"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// PrependEmptyLines shifts every mapping down by n output lines by prefixing
// n empty line segments. The prepended lines themselves carry no mapping.
func (m *SourceMap) PrependEmptyLines(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Mappings = strings.Repeat(";", n) + m.Mappings
}

// CompiledModule is the result of transforming one file.
type CompiledModule struct {
	Code string
	Map  *SourceMap
}

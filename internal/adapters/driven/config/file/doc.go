// Package file provides the TOML-backed configuration store.
//
// Settings live in a single config.toml under the billtrace config
// directory (default ~/.billtrace). Every pipeline parameter has a
// documented default; a missing file or missing key falls back to it.
// Nothing is read from the environment.
package file

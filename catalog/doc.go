// Package catalog builds deterministically-indexed tables of
// remote-callable functions.
//
// A catalog is loaded once per distinct source and cached by the source's
// identity. Function ids are a 1-based enumeration assigned by sorting
// function names ascending lexicographically, so two peers that load the
// same source content independently always agree on the numbering; the
// wire protocol references functions by the compact integer id alone.
//
// Sources are anything implementing the Source interface. Static covers
// Go-native catalogs; WasmSource exposes the exports of a compiled core
// WebAssembly module, which keeps catalog logic portable between peers
// that do not share a host language.
package catalog

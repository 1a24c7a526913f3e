// Package model defines the provider-agnostic model abstractions and the
// registries that resolve a model identifier from a normalized prompt into a
// concrete handle.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind small interfaces
//     (LanguageModel, ImageModel, SpeechModel)
//   - Deterministic name resolution: exact match, then patterns in
//     registration order, then an optional default
//   - Provider-scoped resolution of "provider/model" identifiers with errors
//     that distinguish an unknown provider from an unregistered model
//   - Lightweight mocking for tests (MockLanguageModel)
//
// Resolution is purely local and synchronous; handles perform network I/O
// only when invoked.
package model

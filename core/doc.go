// Package core defines the provider-agnostic data model shared across
// promptwire: chat messages and their content parts, normalized prompt
// configurations for the four generation kinds (text, object, image,
// speech), per-call adapt options, and the dataset contract consumed by
// experiment runs.
//
// All configuration types preserve the distinction between "setting absent"
// and "setting explicitly zero" by modeling optional settings as pointers.
// Downstream adapters must only forward settings whose pointer is non-nil.
package core

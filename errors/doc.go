// Package errors provides the unified error type for runemaster.
// It implements structured errors with machine-readable codes, HTTP status
// mapping and retryable detection following RFC 7807. Pipeline authoring and
// execution failures all carry one of the codes declared in codes.go.
package errors

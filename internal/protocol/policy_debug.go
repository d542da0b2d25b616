//go:build debug

package protocol

// DefaultPolicy in debug builds fails fast.
const DefaultPolicy = Panic

// Package cli provides shared helpers for the edge command: typed
// command errors and output formatting.
package cli

// Package provider adapts the Anthropic Messages API to the repair loop's
// Invoker interface.
package provider

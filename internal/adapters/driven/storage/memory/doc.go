// Package memory provides in-memory implementations of the driven storage
// ports. State is lost when the process exits; it backs the "memory:"
// database URL and tests that do not need a real database.
package memory

// Package domain defines the core business entities of the ingestor.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Account: An Instagram account whose token and posts are synchronised
//   - Post: A media item ingested from an account's feed
//   - RequestBudget: The per-run ceiling on outbound Graph API calls
//   - ScheduledTask / TaskResult: Periodic runs and their history
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain

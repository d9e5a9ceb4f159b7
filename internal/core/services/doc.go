// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The batch pipeline is built from three parts sharing one
// domain.RequestBudget per run:
//
//   - TokenManager renews tokens close to expiry
//   - PostWalker ingests posts newer than an account's watermark
//   - BatchOrchestrator walks all accounts in priority order
//
// Seeder and MediaRefresher serve the account seeding and media URL
// maintenance entry points. Scheduler re-invokes the batch periodically.
package services

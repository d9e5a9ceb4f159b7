// Package postgres stores accounts, posts and run history in PostgreSQL
// using a pgx connection pool. Table names match the hosted schema so an
// existing Supabase project can be pointed at directly.
package postgres

// Package repository defines the persistence interfaces for the governance
// core's aggregates. Implementations live under infrastructure/repository;
// the core depends only on these interfaces.
package repository

// Store is the combined persistence interface the governance core is wired
// against. It embeds one interface per aggregate to separate concerns.
type Store interface {
	DataSourceRepository
	JobRepository
	ExceptionRepository
	ApprovalRepository
	LineageRepository

	// Close releases resources (such as database connections) used by the store.
	Close() error
}

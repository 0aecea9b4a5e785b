package journal

// IJournal records the outcome of every dispatched request.
// All implementations must be thread-safe as the bridge dispatches concurrently.
type IJournal interface {
	// Record persists an entry keyed by its ID.
	// Recording an entry with an existing ID overwrites it.
	Record(entry *Entry) error

	// Load retrieves an entry by ID.
	// Returns nil if the entry doesn't exist, error only on storage failure.
	Load(id string) (*Entry, error)

	// List returns all entries ordered by timestamp (ascending).
	// Returns empty slice if no entries exist, error only on storage failure.
	List() ([]*Entry, error)

	// Delete removes an entry. Idempotent.
	Delete(id string) error

	// Close cleanly shuts down the journal.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the journal is operational.
	HealthCheck() error
}

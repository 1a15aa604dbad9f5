package core

import "context"

// Store is the persistent registration set.
//
// Implementations live under internal/store. A Store is opened once per
// process and closed on exit; all reads and writes go through RunInTx.
type Store interface {
	// RunInTx runs fn in one transaction, committing if fn returns nil and
	// rolling back otherwise.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// IdentityFinder is the read-only lookup the classifier needs.
type IdentityFinder interface {
	// FindByIdentity returns the id of the registration whose normalized
	// identity matches, and false if there is none.
	FindByIdentity(ctx context.Context, id Identity) (int64, bool, error)
}

// Tx is the set of operations available inside a store transaction.
type Tx interface {
	IdentityFinder

	// Insert stores reg under the next free registration id and returns it.
	// Reserving the id and writing the row are one atomic step; backends
	// that admit concurrent writers must serialize it. Fails with
	// ErrDuplicateIdentity if the identity already exists, leaving the
	// transaction usable.
	Insert(ctx context.Context, reg Registration) (int64, error)

	// Update locates the registration by reg's identity and replaces gender,
	// club, email, medical conditions, emergency contact and last updated.
	// Id, names, date of birth and created are preserved. Fails with
	// ErrRegistrationNotFound when nothing matches.
	Update(ctx context.Context, reg Registration) error

	// ListAll returns every registration ordered by id.
	ListAll(ctx context.Context) ([]Registration, error)

	// JoinOverrides returns every registration with its race gender
	// override, if any, ordered by id.
	JoinOverrides(ctx context.Context) ([]RegistrationWithOverride, error)

	// SetOverride creates or replaces the race gender for a registration.
	// Fails with ErrRegistrationNotFound for an unknown id.
	SetOverride(ctx context.Context, o RaceGenderOverride) error

	// RecordBatch appends an import history entry.
	RecordBatch(ctx context.Context, b ImportBatch) error

	// ListBatches returns the most recent import history entries, newest first.
	ListBatches(ctx context.Context, limit int) ([]ImportBatch, error)
}

// Resetter is implemented by stores that can be emptied in place.
type Resetter interface {
	Reset(ctx context.Context) error
}

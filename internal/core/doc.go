// Package core provides the registration reconciliation and reporting logic.
//
// This package contains all domain logic independent of the CLI and of any
// particular store backend. It can be driven by the racereg command, by
// other tools, or by tests against the in-memory store.
//
// # Architecture
//
//   - Dates: [ParseDate], [ParseTimestamp] and [YearsBetween] turn form text
//     into calendar values and ages.
//   - Classification: [Classify] sorts raw CSV rows into new, updated,
//     invalid and empty sets by consulting the store read-only.
//   - Reconciliation: [Reconcile] inserts new rows, demotes intra-batch
//     duplicates to updates, and applies every update.
//   - Reports: [BuildStartList] and [BuildRoster] derive the race-day views.
//   - Service: [Service] ties the pieces to a [Store] and to the export files.
//
// # Identity
//
// A registration is identified by first name, last name and date of birth.
// Names are compared through [NormalizeName]: case-insensitive, with runs of
// spaces and apostrophes collapsed to a single "_". The same normalized key
// is used for lookups, for the uniqueness constraint enforced on insert and
// for locating the row to update, so the three paths always agree.
//
// # Transactions
//
// Every reconciliation batch runs inside one [Store.RunInTx] call and every
// report inside another. Store backends isolate each insert (savepoint or
// statement-level abort) so a duplicate identity does not poison the batch.
//
// # Error Handling
//
// Row-level problems ([ErrInvalidDateFormat], [ErrInvalidTimestampFormat],
// [ErrDuplicateIdentity], [ErrEmptyRequiredField]) are recovered and reported
// in the result structs. [MapError] turns fatal errors into coded messages
// for the operator.
package core

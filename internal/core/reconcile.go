package core

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/racereg/internal/logging"
)

// RowFailure is a row that reached the store but could not be written.
type RowFailure struct {
	Row ImportRow
	Err error
}

// ReconcileResult summarizes the writes of one batch.
type ReconcileResult struct {
	Inserted int
	Updated  int

	// Demoted rows were classified new but collided with an earlier row of
	// the same batch; they were applied as updates.
	Demoted []ImportRow

	// Failed rows hit a store error other than a duplicate identity.
	Failed []RowFailure
}

// Reconcile applies a classification to the store: every new row is
// inserted, new rows that turn out to duplicate an identity are demoted to
// updates, and then every update is applied. now stamps last updated.
//
// Failures are reported per row and never stop the batch.
func Reconcile(ctx context.Context, tx Tx, cls *ClassifyResult, now time.Time) *ReconcileResult {
	result := &ReconcileResult{}
	logger := logging.FromContext(ctx)

	updates := make([]ImportRow, 0, len(cls.Updated))
	updates = append(updates, cls.Updated...)

	for _, row := range cls.New {
		reg := row.Registration
		reg.LastUpdated = now

		id, err := tx.Insert(ctx, reg)
		switch {
		case err == nil:
			result.Inserted++
			logger.Debug("registration added", "registration_id", id, "line", row.Line)
		case errors.Is(err, ErrDuplicateIdentity):
			// The classifier only saw the store as it was before this batch.
			if existing, found, ferr := tx.FindByIdentity(ctx, reg.Identity()); ferr == nil && found {
				row.ExistingID = existing
			}
			row.Class = ClassUpdated
			result.Demoted = append(result.Demoted, row)
			updates = append(updates, row)
			logger.Info("duplicate within input file, applying as update",
				"line", row.Line, "registration_id", row.ExistingID)
		default:
			rowErr := &RowError{Line: row.Line, Identity: reg.Identity(), Op: "insert", Err: err}
			result.Failed = append(result.Failed, RowFailure{Row: row, Err: rowErr})
			logger.Error("registration not added", "error", rowErr)
		}
	}

	for _, row := range updates {
		reg := row.Registration
		reg.LastUpdated = now

		if err := tx.Update(ctx, reg); err != nil {
			rowErr := &RowError{Line: row.Line, Identity: reg.Identity(), Op: "update", Err: err}
			result.Failed = append(result.Failed, RowFailure{Row: row, Err: rowErr})
			logger.Error("registration not updated", "error", rowErr)
			continue
		}
		result.Updated++
	}

	return result
}

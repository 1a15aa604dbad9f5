package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/racereg/internal/logging"
)

// Classification is the outcome of checking one import row.
type Classification int

const (
	ClassNew Classification = iota
	ClassUpdated
	ClassInvalid
	ClassEmpty
)

func (c Classification) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassUpdated:
		return "updated"
	case ClassInvalid:
		return "invalid"
	case ClassEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// ImportRow is one classified CSV record.
type ImportRow struct {
	Line   int
	Fields []string // padded to NumColumns
	Class  Classification

	// Reason explains an invalid row.
	Reason string

	// ExistingID is the id matched at classification time for updated rows.
	// Writes resolve the registration again by identity.
	ExistingID int64

	// Registration is the parsed row, set for new and updated rows.
	Registration Registration
}

// ClassifyResult holds the disjoint outputs of Classify.
type ClassifyResult struct {
	Header  []string
	New     []ImportRow
	Updated []ImportRow
	Invalid []ImportRow
	Empty   int
}

// Total returns the number of data rows seen.
func (r *ClassifyResult) Total() int {
	return len(r.New) + len(r.Updated) + len(r.Invalid) + r.Empty
}

// Classify sorts raw rows against the current store state. It never writes,
// and a problem with one row never stops the rows after it.
func Classify(ctx context.Context, finder IdentityFinder, header []string, rows []RawRow, loc *time.Location) *ClassifyResult {
	result := &ClassifyResult{Header: header}
	logger := logging.FromContext(ctx)

	for _, raw := range rows {
		row := classifyRow(ctx, finder, raw, loc)

		switch row.Class {
		case ClassEmpty:
			result.Empty++
		case ClassInvalid:
			logger.Debug("invalid registration", "line", row.Line, "reason", row.Reason)
			result.Invalid = append(result.Invalid, row)
		case ClassUpdated:
			result.Updated = append(result.Updated, row)
		default:
			result.New = append(result.New, row)
		}
	}

	return result
}

func classifyRow(ctx context.Context, finder IdentityFinder, raw RawRow, loc *time.Location) ImportRow {
	row := ImportRow{Line: raw.Line, Fields: padRow(raw.Fields)}

	if isEmptyRow(row.Fields) {
		row.Class = ClassEmpty
		return row
	}

	dob, err := ParseDate(row.Fields[ColDOB])
	if err != nil {
		row.Class = ClassInvalid
		row.Reason = ReasonInvalidDOB
		return row
	}

	created, err := ParseTimestamp(row.Fields[ColCreated], loc)
	if err != nil {
		row.Class = ClassInvalid
		row.Reason = ReasonInvalidTimestamp
		return row
	}

	row.Registration = buildRegistration(row.Fields, dob, created)

	id, found, err := finder.FindByIdentity(ctx, row.Registration.Identity())
	if err != nil {
		row.Class = ClassInvalid
		row.Reason = fmt.Sprintf("identity lookup failed: %v", err)
		return row
	}
	if found {
		row.Class = ClassUpdated
		row.ExistingID = id
		return row
	}

	row.Class = ClassNew
	return row
}

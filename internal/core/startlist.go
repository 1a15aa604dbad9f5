package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/racereg/internal/logging"
)

// Distance labels.
const (
	Distance5K  = "5km"
	Distance10K = "10km"
)

// DistancePolicy assigns a distance label to every entry of a start list.
type DistancePolicy func(entries []StartListEntry)

// FirstEntryLongest gives every runner 5km and the first entry 10km.
//
// Runners pick their distance on the day; the timing software only needs
// each distance to appear at least once in the imported list.
func FirstEntryLongest(entries []StartListEntry) {
	for i := range entries {
		entries[i].Distance = Distance5K
	}
	if len(entries) > 0 {
		entries[0].Distance = Distance10K
	}
}

// StartList is a built start list with the warnings raised while building it.
type StartList struct {
	RaceDate Date
	Entries  []StartListEntry
	Warnings []string
}

// BuildStartList derives the start list for raceDate from every
// registration and its race gender override. A nil policy means
// FirstEntryLongest.
func BuildStartList(ctx context.Context, tx Tx, raceDate Date, policy DistancePolicy) (*StartList, error) {
	joined, err := tx.JoinOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registrations: %w", err)
	}
	if policy == nil {
		policy = FirstEntryLongest
	}

	logger := logging.FromContext(ctx)
	list := &StartList{RaceDate: raceDate, Entries: make([]StartListEntry, 0, len(joined))}

	if len(joined) == 0 {
		list.warn(logger, "the database was empty when creating a start list")
		return list, nil
	}

	for _, r := range joined {
		gender, warning := resolveRaceGender(r)
		if warning != "" {
			list.warn(logger, warning, "registration_id", r.ID)
		}
		list.Entries = append(list.Entries, StartListEntry{
			Bib:       r.ID,
			FirstName: r.FirstName,
			LastName:  r.LastName,
			Club:      r.Club,
			Age:       YearsBetween(r.DOB, raceDate),
			Gender:    gender,
		})
	}

	policy(list.Entries)
	return list, nil
}

// resolveRaceGender picks the category a registrant races in. Only
// non-binary registrants may race under an override.
func resolveRaceGender(r RegistrationWithOverride) (string, string) {
	nonBinary := IsNonBinary(r.Gender)

	switch {
	case nonBinary && r.Override != nil:
		return r.Override.Gender, ""
	case nonBinary:
		return NonBinary, fmt.Sprintf("no race gender specified for registration_id=%d; add one and recreate this start list", r.ID)
	case r.Override != nil:
		return r.Gender, fmt.Sprintf("conflicting genders for registration_id=%d; race genders only apply to %q registrations", r.ID, NonBinary)
	default:
		return r.Gender, ""
	}
}

func (l *StartList) warn(logger *slog.Logger, msg string, args ...any) {
	l.Warnings = append(l.Warnings, msg)
	logger.Warn(msg, args...)
}

// Rows returns the entries as export records.
func (l *StartList) Rows() [][]string {
	rows := make([][]string, len(l.Entries))
	for i, e := range l.Entries {
		rows[i] = []string{
			fmt.Sprint(e.Bib), e.FirstName, e.LastName, e.Club,
			fmt.Sprint(e.Age), e.Gender, e.Distance,
		}
	}
	return rows
}

// StartListHeaders are the columns the timing software expects.
var StartListHeaders = []string{"Bib", "First name", "Last name", "Team name", "Age", "Gender", "Distance"}

package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/racereg/internal/logging"
)

// RosterHeaders are the columns of the printable roster.
var RosterHeaders = []string{"Last Name", "First Name", "Bib Number"}

// Roster is the alphabetical list of registrants.
type Roster struct {
	Entries  []RosterEntry
	Warnings []string
}

// BuildRoster lists every registrant sorted by last name then first name,
// ignoring case.
func BuildRoster(ctx context.Context, tx Tx) (*Roster, error) {
	regs, err := tx.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registrations: %w", err)
	}

	roster := &Roster{Entries: make([]RosterEntry, 0, len(regs))}
	if len(regs) == 0 {
		msg := "the database was empty when creating a registrations list"
		roster.Warnings = append(roster.Warnings, msg)
		logging.FromContext(ctx).Warn(msg)
		return roster, nil
	}

	for _, r := range regs {
		roster.Entries = append(roster.Entries, RosterEntry{LastName: r.LastName, FirstName: r.FirstName, Bib: r.ID})
	}

	sort.SliceStable(roster.Entries, func(i, j int) bool {
		a, b := roster.Entries[i], roster.Entries[j]
		if la, lb := strings.ToLower(a.LastName), strings.ToLower(b.LastName); la != lb {
			return la < lb
		}
		return strings.ToLower(a.FirstName) < strings.ToLower(b.FirstName)
	})

	return roster, nil
}

// Rows returns the entries as export records.
func (r *Roster) Rows() [][]string {
	rows := make([][]string, len(r.Entries))
	for i, e := range r.Entries {
		rows[i] = []string{e.LastName, e.FirstName, fmt.Sprint(e.Bib)}
	}
	return rows
}

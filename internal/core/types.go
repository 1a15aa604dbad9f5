package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Date is a calendar date without a time of day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the date y-m-d. Values are not normalized.
func NewDate(y int, m time.Month, d int) Date {
	return Date{Year: y, Month: m, Day: d}
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Identity is the uniqueness key of a Registration.
type Identity struct {
	FirstName string
	LastName  string
	DOB       Date
}

// Key returns the normalized form used for lookups and uniqueness.
func (i Identity) Key() IdentityKey {
	return IdentityKey{
		First: NormalizeName(i.FirstName),
		Last:  NormalizeName(i.LastName),
		DOB:   i.DOB,
	}
}

func (i Identity) String() string {
	return fmt.Sprintf("%s %s (%s)", i.FirstName, i.LastName, i.DOB)
}

// IdentityKey is an Identity with normalized names.
type IdentityKey struct {
	First string
	Last  string
	DOB   Date
}

// Registration is a person's persisted race entry.
type Registration struct {
	ID                int64
	FirstName         string
	LastName          string
	Gender            string
	DOB               Date
	Club              string
	Email             string
	MedicalConditions string
	EmergencyName     string
	EmergencyContact  string
	Created           time.Time
	LastUpdated       time.Time
}

// Identity returns the registration's identity triple.
func (r Registration) Identity() Identity {
	return Identity{FirstName: r.FirstName, LastName: r.LastName, DOB: r.DOB}
}

// RaceGenderOverride is the race category chosen by a non-binary registrant.
type RaceGenderOverride struct {
	RegistrationID int64
	Gender         string
}

// RegistrationWithOverride is a registration joined with its optional override.
type RegistrationWithOverride struct {
	Registration
	Override *RaceGenderOverride
}

// StartListEntry is one line of the race-day start list.
type StartListEntry struct {
	Bib       int64
	FirstName string
	LastName  string
	Club      string
	Age       int
	Gender    string
	Distance  string
}

// RosterEntry is one line of the printable roster.
type RosterEntry struct {
	LastName  string
	FirstName string
	Bib       int64
}

// ImportBatch records one reconciliation run.
type ImportBatch struct {
	ID         uuid.UUID
	FileName   string
	Inserted   int
	Updated    int
	Invalid    int
	Empty      int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

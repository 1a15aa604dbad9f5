package core

// convert.go cleans raw CSV cells and builds registrations from them.

import (
	"regexp"
	"strings"
	"time"
)

// Input columns in export order.
const (
	ColCreated = iota
	ColEmail
	ColFirstName
	ColLastName
	ColGender
	ColDOB
	ColAge
	ColClub
	ColMedicalConditions
	ColEmergencyName
	ColEmergencyContact
	ColAcceptedTerms
	NumColumns
)

// InputColumns are the headers used when the file's own header row is short.
var InputColumns = []string{
	"Timestamp",
	"Email address",
	"First name",
	"Last name",
	"Gender",
	"Date of birth",
	"Age",
	"Club",
	"Medical conditions",
	"Emergency contact name",
	"Emergency contact number",
	"Accepted terms",
}

// requiredColumns must be non-empty for a row to be considered at all.
var requiredColumns = []int{ColCreated, ColEmail, ColFirstName, ColGender, ColDOB}

// NonBinary is the registered gender that may carry a race gender override.
const NonBinary = "non-binary"

var nameSeparators = regexp.MustCompile(`[ '\x{2019}]+`)

// NormalizeName returns the comparison form of a name: trimmed, lower-case,
// with each run of spaces and apostrophes collapsed to "_".
func NormalizeName(s string) string {
	return nameSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
}

// IsNonBinary reports whether gender is the non-binary category.
func IsNonBinary(gender string) bool {
	return strings.EqualFold(strings.TrimSpace(gender), NonBinary)
}

// CleanCell trims whitespace and strips an Excel formula wrapper (="...").
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return s
}

// padRow returns row extended with empty cells to NumColumns.
func padRow(row []string) []string {
	if len(row) >= NumColumns {
		return row
	}
	out := make([]string, NumColumns)
	copy(out, row)
	return out
}

// isEmptyRow reports whether any required column is blank.
func isEmptyRow(row []string) bool {
	for _, col := range requiredColumns {
		if CleanCell(row[col]) == "" {
			return true
		}
	}
	return false
}

// buildRegistration assembles a Registration from a padded row and its
// already parsed dates.
func buildRegistration(row []string, dob Date, created time.Time) Registration {
	return Registration{
		FirstName:         CleanCell(row[ColFirstName]),
		LastName:          CleanCell(row[ColLastName]),
		Gender:            CleanCell(row[ColGender]),
		DOB:               dob,
		Club:              CleanCell(row[ColClub]),
		Email:             CleanCell(row[ColEmail]),
		MedicalConditions: CleanCell(row[ColMedicalConditions]),
		EmergencyName:     CleanCell(row[ColEmergencyName]),
		EmergencyContact:  CleanCell(row[ColEmergencyContact]),
		Created:           created,
	}
}

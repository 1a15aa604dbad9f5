package core

// error_messages.go maps technical errors to operator-facing messages with
// a code for support reference.
//
// # Store Errors (DB001-DB099)
//
//	DB001 - Duplicate registration: same first name, last name and date of birth
//	DB002 - Missing registration: a race gender refers to an unknown bib
//	DB003 - Connection refused: the store could not be reached
//	DB004 - Store busy: another process holds the database
//	DB005 - Store not created: the operator declined to create the store
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date of birth
//	VAL002 - Invalid signup timestamp
//	VAL003 - Required field empty
//	VAL004 - Unknown registration
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Input not found
//	FILE002 - File too large
//	FILE003 - Invalid CSV
//
// # Default Error (ERR000)
//
// Sentinel errors are matched with errors.Is first. Otherwise patterns are
// matched case-insensitively with strings.Contains and the first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides operator-friendly error information with guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

func (m UserMessage) String() string {
	return fmt.Sprintf("[%s] %s: %s", m.Code, m.Message, m.Action)
}

var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrDuplicateIdentity, UserMessage{"A registration with this name and date of birth already exists", "The row was applied as an update", "DB001"}},
	{ErrStoreNotCreated, UserMessage{"No database was created", "Run again and confirm creation, or pass --yes", "DB005"}},
	{ErrInvalidDateFormat, UserMessage{"Invalid date format", "Use DD/MM/YYYY for dates of birth and YYYY-MM-DD for race dates", "VAL001"}},
	{ErrInvalidTimestampFormat, UserMessage{"Invalid signup timestamp", "Timestamps must look like DD/MM/YYYY HH:MM:SS", "VAL002"}},
	{ErrEmptyRequiredField, UserMessage{"Required field is empty", "Fill in timestamp, email, first name, gender and date of birth", "VAL003"}},
	{ErrRegistrationNotFound, UserMessage{"No registration with that bib number", "Check the roster for the correct bib", "VAL004"}},
	{ErrInputNotFound, UserMessage{"Could not find the registrations file", "Check that the file exists before trying again", "FILE001"}},
	{ErrFileTooLarge, UserMessage{"File exceeds the maximum size", "Split the export or raise IMPORT_MAX_FILE_SIZE", "FILE002"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"unique constraint", UserMessage{"A duplicate registration was found", "Review the duplicate registrations file", "DB001"}},
	{"duplicate key", UserMessage{"A duplicate registration was found", "Review the duplicate registrations file", "DB001"}},
	{"foreign key", UserMessage{"Referenced registration does not exist", "Check the bib number against the roster", "DB002"}},
	{"connection refused", UserMessage{"Unable to connect to the database", "Check DATABASE_URL and try again", "DB003"}},
	{"database is locked", UserMessage{"The database is busy", "Close other programs using the database and try again", "DB004"}},
	{"parse error on line", UserMessage{"The file is not a valid CSV", "Export the signups again as comma-separated values", "FILE003"}},
	{"wrong number of fields", UserMessage{"The file is not a valid CSV", "Export the signups again as comma-separated values", "FILE003"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the log output for details",
	Code:    "ERR000",
}

// MapError converts a technical error into an operator-facing message.
// Returns the zero UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	lower := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(lower, p.pattern) {
			return p.msg
		}
	}

	return defaultMessage
}

package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

// mapFinder resolves identities from a fixed map of normalized keys.
type mapFinder struct {
	ids map[IdentityKey]int64
	err error
}

func (f mapFinder) FindByIdentity(_ context.Context, id Identity) (int64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	regID, ok := f.ids[id.Key()]
	return regID, ok, nil
}

func rawRows(rows ...[]string) []RawRow {
	out := make([]RawRow, len(rows))
	for i, r := range rows {
		out[i] = RawRow{Line: i + 2, Fields: r}
	}
	return out
}

func TestClassify(t *testing.T) {
	existing := Identity{FirstName: "Sean", LastName: "O'Neil", DOB: NewDate(1975, time.July, 4)}
	finder := mapFinder{ids: map[IdentityKey]int64{existing.Key(): 7}}

	rows := rawRows(
		testRow("01/03/2025 10:00:00", "ann@example.com", "Ann", "Lee", "female", "01.02.1990"),
		testRow("01/03/2025 10:05:00", "sean@example.com", "sean", "O Neil", "male", "04-07-1975"),
		testRow("01/03/2025 10:10:00", "bob@example.com", "Bob", "Ray", "male", "1990/02/01"),
		testRow("2025-03-01 10:15", "cat@example.com", "Cat", "Ng", "female", "03.03.2003"),
		testRow("01/03/2025 10:20:00", "", "Dee", "Fox", "female", "05.05.2005"),
		[]string{"", "", "", ""},
	)

	got := Classify(context.Background(), finder, []string{"Timestamp"}, rows, time.UTC)

	if len(got.New) != 1 || got.New[0].Registration.FirstName != "Ann" {
		t.Errorf("New = %+v", got.New)
	}
	if len(got.Updated) != 1 || got.Updated[0].ExistingID != 7 {
		t.Fatalf("Updated = %+v", got.Updated)
	}
	if got.Updated[0].Registration.LastName != "O Neil" {
		t.Errorf("update keeps the submitted spelling, got %q", got.Updated[0].Registration.LastName)
	}
	if len(got.Invalid) != 2 {
		t.Fatalf("Invalid = %+v", got.Invalid)
	}
	if got.Invalid[0].Reason != ReasonInvalidDOB || got.Invalid[0].Line != 4 {
		t.Errorf("first invalid = %+v", got.Invalid[0])
	}
	if got.Invalid[1].Reason != ReasonInvalidTimestamp {
		t.Errorf("second invalid reason = %q", got.Invalid[1].Reason)
	}
	if got.Empty != 2 {
		t.Errorf("Empty = %d, want 2", got.Empty)
	}
	if got.Total() != len(rows) {
		t.Errorf("Total = %d, want %d", got.Total(), len(rows))
	}
}

func TestClassify_InvalidDOBBeforeTimestamp(t *testing.T) {
	rows := rawRows(testRow("bad", "x@example.com", "X", "Y", "male", "bad"))
	got := Classify(context.Background(), mapFinder{}, nil, rows, time.UTC)

	if len(got.Invalid) != 1 || got.Invalid[0].Reason != ReasonInvalidDOB {
		t.Errorf("Invalid = %+v", got.Invalid)
	}
}

func TestClassify_LookupFailureIsRowLevel(t *testing.T) {
	rows := rawRows(
		testRow("01/03/2025 10:00:00", "ann@example.com", "Ann", "Lee", "female", "01.02.1990"),
		testRow("01/03/2025 10:00:00", "bo@example.com", "Bo", "Lee", "male", "01.02.1991"),
	)
	got := Classify(context.Background(), mapFinder{err: errors.New("database is locked")}, nil, rows, time.UTC)

	if len(got.Invalid) != 2 {
		t.Fatalf("Invalid = %+v", got.Invalid)
	}
	if len(got.New) != 0 || len(got.Updated) != 0 {
		t.Errorf("no row should pass a failed lookup: %+v", got)
	}
}

func TestClassify_TimestampLocation(t *testing.T) {
	loc := time.FixedZone("AEST", 10*60*60)
	rows := rawRows(testRow("01/03/2025 10:00:00", "ann@example.com", "Ann", "Lee", "female", "01.02.1990"))
	got := Classify(context.Background(), mapFinder{}, nil, rows, loc)

	want := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !got.New[0].Registration.Created.Equal(want) {
		t.Errorf("Created = %v, want %v", got.New[0].Registration.Created, want)
	}
}

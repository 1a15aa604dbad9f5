package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Date
		wantErr bool
	}{
		// Accepted separators
		{name: "period", input: "01.02.1990", want: NewDate(1990, time.February, 1)},
		{name: "hyphen", input: "01-02-1990", want: NewDate(1990, time.February, 1)},
		{name: "space", input: "01 02 1990", want: NewDate(1990, time.February, 1)},
		{name: "surrounding whitespace", input: "  15.06.1985 ", want: NewDate(1985, time.June, 15)},
		{name: "leap day in leap year", input: "29.02.1992", want: NewDate(1992, time.February, 29)},
		{name: "leap day in century leap year", input: "29-02-2000", want: NewDate(2000, time.February, 29)},

		// Rejected
		{name: "slash separator", input: "2020/01/01", wantErr: true},
		{name: "slash day first", input: "01/02/1990", wantErr: true},
		{name: "year first", input: "1990-02-01", wantErr: true},
		{name: "single digit day", input: "1.02.1990", wantErr: true},
		{name: "two digit year", input: "01.02.90", wantErr: true},
		{name: "month out of range", input: "01.13.1990", wantErr: true},
		{name: "leap day in common year", input: "29.02.1990", wantErr: true},
		{name: "mixed trailing text", input: "01.02.1990 x", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDateFormat) {
					t.Fatalf("ParseDate(%q) error = %v, want ErrInvalidDateFormat", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("03/04/2024 09:15:30", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, time.April, 3, 9, 15, 30, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	for _, bad := range []string{"2024-04-03 09:15:30", "03/04/2024", "03/04/2024 9:15", ""} {
		if _, err := ParseTimestamp(bad, nil); !errors.Is(err, ErrInvalidTimestampFormat) {
			t.Errorf("ParseTimestamp(%q) error = %v, want ErrInvalidTimestampFormat", bad, err)
		}
	}
}

func TestParseISODate(t *testing.T) {
	got, err := ParseISODate("2025-05-17")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != NewDate(2025, time.May, 17) {
		t.Errorf("got %v", got)
	}
	if _, err := ParseISODate("17/05/2025"); !errors.Is(err, ErrInvalidDateFormat) {
		t.Errorf("error = %v, want ErrInvalidDateFormat", err)
	}
}

func TestYearsBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b Date
		want int
	}{
		{
			name: "leap day birth on march 1",
			a:    NewDate(1990, time.February, 29),
			b:    NewDate(2021, time.March, 1),
			want: 31,
		},
		{
			name: "leap day birth on feb 28",
			a:    NewDate(1990, time.February, 29),
			b:    NewDate(2021, time.February, 28),
			want: 30,
		},
		{
			name: "real leap day birth before anniversary",
			a:    NewDate(1992, time.February, 29),
			b:    NewDate(2023, time.February, 28),
			want: 30,
		},
		{
			name: "real leap day birth in leap year",
			a:    NewDate(1992, time.February, 29),
			b:    NewDate(2024, time.February, 29),
			want: 32,
		},
		{
			name: "on birthday",
			a:    NewDate(1980, time.June, 15),
			b:    NewDate(2025, time.June, 15),
			want: 45,
		},
		{
			name: "day before birthday",
			a:    NewDate(1980, time.June, 15),
			b:    NewDate(2025, time.June, 14),
			want: 44,
		},
		{
			name: "same day",
			a:    NewDate(2000, time.January, 1),
			b:    NewDate(2000, time.January, 1),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := YearsBetween(tt.a, tt.b); got != tt.want {
				t.Errorf("YearsBetween(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := YearsBetween(tt.b, tt.a); got != tt.want {
				t.Errorf("YearsBetween(%v, %v) = %d, want %d (reversed)", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

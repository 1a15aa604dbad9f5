package core_test

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/racereg/internal/core"
)

func writeSignups(t *testing.T, rows ...[]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "new_registrations.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write(core.InputColumns))
	require.NoError(t, w.WriteAll(rows))
	return path
}

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func fixedClock(t time.Time) core.Option {
	return core.WithClock(func() time.Time { return t })
}

func TestService_ImportFile(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	st := newMemory()
	svc := core.NewService(st, cfg, fixedClock(day1))

	path := writeSignups(t,
		signup("Ann", "Lee", "female", "01.02.1990"),
		signup("Bob", "Ray", "male", "2020/01/01"),
		signup("", "", "", ""),
		signup("Ann", "Lee", "female", "01 02 1990"),
	)

	report, err := svc.ImportFile(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, "new_registrations.csv", report.FileName)
	assert.Equal(t, 1, report.Reconcile.Inserted)
	assert.Equal(t, 1, report.Reconcile.Updated)
	assert.Equal(t, 2, report.Skipped())

	invalid := readRecords(t, report.InvalidFile)
	require.Len(t, invalid, 2)
	assert.Equal(t, "Invalid Reason", invalid[0][0])
	assert.Equal(t, core.ReasonInvalidDOB, invalid[1][0])
	assert.Equal(t, "Bob", invalid[1][1+core.ColFirstName])

	dups := readRecords(t, report.DuplicateFile)
	require.Len(t, dups, 2)
	assert.Equal(t, "Existing Registration ID", dups[0][0])
	assert.Equal(t, "1", dups[1][0])

	batches, err := svc.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, report.BatchID, batches[0].ID)
	assert.Equal(t, 1, batches[0].Inserted)
	assert.Equal(t, 1, batches[0].Invalid)
	assert.Equal(t, 1, batches[0].Empty)
}

func TestService_ImportFile_NoDiagnosticsWhenClean(t *testing.T) {
	cfg := testConfig(t)
	svc := core.NewService(newMemory(), cfg, fixedClock(day1))

	report, err := svc.ImportFile(context.Background(), writeSignups(t, signup("Ann", "Lee", "female", "01.02.1990")))
	require.NoError(t, err)

	assert.Empty(t, report.InvalidFile)
	assert.Empty(t, report.DuplicateFile)
	_, err = os.Stat(cfg.Paths.ConflictsDir)
	assert.True(t, os.IsNotExist(err), "conflicts directory should not be created")
}

func TestService_ImportFile_MissingInput(t *testing.T) {
	ctx := context.Background()
	st := newMemory()
	svc := core.NewService(st, testConfig(t))

	_, err := svc.ImportFile(ctx, filepath.Join(t.TempDir(), "nope.csv"))
	require.ErrorIs(t, err, core.ErrInputNotFound)

	batches, err := svc.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, batches, "nothing may be written for a missing file")
	assert.Empty(t, listAll(t, st))
}

func TestService_WriteStartList(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	svc := core.NewService(newMemory(), cfg, fixedClock(day1))

	_, err := svc.ImportFile(ctx, writeSignups(t, signup("Ann", "Lee", "female", "18.05.1990")))
	require.NoError(t, err)

	list, path, err := svc.WriteStartList(ctx, raceDay, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Paths.StartListsDir, "startlist20250517.csv"), path)
	assert.Len(t, list.Entries, 1)

	recs := readRecords(t, path)
	assert.Equal(t, core.StartListHeaders, recs[0])
	assert.Equal(t, []string{"1", "Ann", "Lee", "Harbour Runners", "34", "female", "10km"}, recs[1])

	_, labelled, err := svc.WriteStartList(ctx, raceDay, "spring fun/run")
	require.NoError(t, err)
	assert.Equal(t, "startlistspring_fun_run.csv", filepath.Base(labelled))
}

func TestService_WriteRoster(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Export.XLSX = true
	now := time.Date(2025, time.May, 10, 14, 5, 0, 0, time.UTC)
	svc := core.NewService(newMemory(), cfg, fixedClock(now))

	roster, path, err := svc.WriteRoster(ctx)
	require.NoError(t, err)
	assert.Equal(t, "registrations_list_2025May10-1405.csv", filepath.Base(path))
	assert.Len(t, roster.Warnings, 1)

	recs := readRecords(t, path)
	assert.Equal(t, [][]string{core.RosterHeaders}, recs)

	_, err = os.Stat(strings.TrimSuffix(path, ".csv") + ".xlsx")
	assert.NoError(t, err)
}

func TestService_SetRaceGender(t *testing.T) {
	ctx := context.Background()
	svc := core.NewService(newMemory(), testConfig(t), fixedClock(day1))

	_, err := svc.ImportFile(ctx, writeSignups(t, signup("Robin", "Hart", "non-binary", "17.05.2000")))
	require.NoError(t, err)

	require.ErrorIs(t, svc.SetRaceGender(ctx, 99, "female"), core.ErrRegistrationNotFound)
	require.ErrorIs(t, svc.SetRaceGender(ctx, 1, "  "), core.ErrEmptyRequiredField)
	require.NoError(t, svc.SetRaceGender(ctx, 1, "female"))

	list, err := svc.StartList(ctx, raceDay)
	require.NoError(t, err)
	assert.Equal(t, "female", list.Entries[0].Gender)
	assert.Empty(t, list.Warnings)
}

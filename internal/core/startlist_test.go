package core_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/racereg/internal/core"
)

var raceDay = core.NewDate(2025, time.May, 17)

func buildStartList(t *testing.T, st core.Store, policy core.DistancePolicy) *core.StartList {
	t.Helper()
	ctx := context.Background()
	var list *core.StartList
	err := st.RunInTx(ctx, func(tx core.Tx) error {
		var err error
		list, err = core.BuildStartList(ctx, tx, raceDay, policy)
		return err
	})
	require.NoError(t, err)
	return list
}

func TestBuildStartList(t *testing.T) {
	st := newMemory()
	reconcile(t, st, day1,
		signup("Ann", "Lee", "female", "18.05.1990"),
		signup("Robin", "Hart", "non-binary", "17.05.2000"),
		signup("Bob", "Ray", "male", "02.03.1985"),
	)
	setOverride(t, st, 2, "female")

	list := buildStartList(t, st, nil)
	require.Len(t, list.Entries, 3)
	assert.Empty(t, list.Warnings)
	assert.Equal(t, raceDay, list.RaceDate)

	ann, robin, bob := list.Entries[0], list.Entries[1], list.Entries[2]

	assert.Equal(t, int64(1), ann.Bib)
	assert.Equal(t, 34, ann.Age, "birthday is the day after the race")
	assert.Equal(t, "female", ann.Gender)
	assert.Equal(t, core.Distance10K, ann.Distance)
	assert.Equal(t, "Harbour Runners", ann.Club)

	assert.Equal(t, 25, robin.Age, "birthday on race day counts")
	assert.Equal(t, "female", robin.Gender, "override applies to non-binary registrants")
	assert.Equal(t, core.Distance5K, robin.Distance)

	assert.Equal(t, "male", bob.Gender)
	assert.Equal(t, core.Distance5K, bob.Distance)
}

func TestBuildStartList_MissingOverride(t *testing.T) {
	st := newMemory()
	reconcile(t, st, day1, signup("Robin", "Hart", "Non-Binary", "17.05.2000"))

	list := buildStartList(t, st, nil)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, core.NonBinary, list.Entries[0].Gender)
	require.Len(t, list.Warnings, 1)
	assert.Contains(t, list.Warnings[0], "registration_id=1")
}

func TestBuildStartList_ConflictingOverride(t *testing.T) {
	st := newMemory()
	reconcile(t, st, day1, signup("Bob", "Ray", "male", "02.03.1985"))
	setOverride(t, st, 1, "female")

	list := buildStartList(t, st, nil)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "male", list.Entries[0].Gender, "registered gender wins")
	require.Len(t, list.Warnings, 1)
	assert.True(t, strings.Contains(list.Warnings[0], "conflicting"))
}

func TestBuildStartList_SingleEntryGetsLongest(t *testing.T) {
	st := newMemory()
	reconcile(t, st, day1, signup("Ann", "Lee", "female", "18.05.1990"))

	list := buildStartList(t, st, nil)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, core.Distance10K, list.Entries[0].Distance)
}

func TestBuildStartList_EmptyStore(t *testing.T) {
	list := buildStartList(t, newMemory(), nil)
	assert.Empty(t, list.Entries)
	require.Len(t, list.Warnings, 1)
	assert.Contains(t, list.Warnings[0], "empty")
	assert.Empty(t, list.Rows())
}

func TestBuildStartList_CustomPolicy(t *testing.T) {
	st := newMemory()
	reconcile(t, st, day1,
		signup("Ann", "Lee", "female", "18.05.1990"),
		signup("Bob", "Ray", "male", "02.03.1985"),
	)

	allLong := func(entries []core.StartListEntry) {
		for i := range entries {
			entries[i].Distance = core.Distance10K
		}
	}
	for _, e := range buildStartList(t, st, allLong).Entries {
		assert.Equal(t, core.Distance10K, e.Distance)
	}
}

func TestStartList_Rows(t *testing.T) {
	list := &core.StartList{Entries: []core.StartListEntry{
		{Bib: 3, FirstName: "Ann", LastName: "Lee", Club: "", Age: 34, Gender: "female", Distance: "10km"},
	}}
	assert.Equal(t, [][]string{{"3", "Ann", "Lee", "", "34", "female", "10km"}}, list.Rows())
	assert.Len(t, core.StartListHeaders, 7)
}

func TestFirstEntryLongest(t *testing.T) {
	entries := make([]core.StartListEntry, 4)
	core.FirstEntryLongest(entries)

	assert.Equal(t, core.Distance10K, entries[0].Distance)
	for _, e := range entries[1:] {
		assert.Equal(t, core.Distance5K, e.Distance)
	}

	core.FirstEntryLongest(nil)
}

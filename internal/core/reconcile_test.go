package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/racereg/internal/core"
)

func TestReconcile_InsertsWithSequentialIDs(t *testing.T) {
	st := newMemory()

	_, res := reconcile(t, st, day1,
		signup("Ann", "Lee", "female", "01.02.1990"),
		signup("Bob", "Ray", "male", "02.03.1985"),
		signup("Cat", "Ng", "female", "03.04.2001"),
	)
	assert.Equal(t, 3, res.Inserted)
	assert.Zero(t, res.Updated)

	regs := listAll(t, st)
	require.Len(t, regs, 3)
	for i, r := range regs {
		assert.Equal(t, int64(i+1), r.ID)
		assert.True(t, r.LastUpdated.Equal(day1))
	}

	_, res = reconcile(t, st, day2, signup("Dee", "Fox", "female", "05.05.2005"))
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, int64(4), listAll(t, st)[3].ID)
}

func TestReconcile_IntraBatchDuplicateIsDemoted(t *testing.T) {
	st := newMemory()

	first := signup("Ann", "Lee", "female", "01.02.1990")
	second := signup("ann", "LEE", "female", "01-02-1990")
	second[core.ColEmail] = "ann.new@example.com"

	cls, res := reconcile(t, st, day1, first, second)
	require.Len(t, cls.New, 2, "both rows are new against the pre-batch store")

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	require.Len(t, res.Demoted, 1)
	assert.Equal(t, int64(1), res.Demoted[0].ExistingID)
	assert.Equal(t, core.ClassUpdated, res.Demoted[0].Class)
	assert.Empty(t, res.Failed)

	regs := listAll(t, st)
	require.Len(t, regs, 1)
	assert.Equal(t, "ann.new@example.com", regs[0].Email)
	assert.Equal(t, "Ann", regs[0].FirstName, "names are never rewritten by an update")
}

func TestReconcile_RoundTripUpdate(t *testing.T) {
	st := newMemory()
	reconcile(t, st, day1, signup("Sean", "O'Neil", "male", "04.07.1975"))
	before := listAll(t, st)[0]

	again := signup("Sean", "O Neil", "non-binary", "04.07.1975")
	again[core.ColClub] = "Trail Collective"
	cls, res := reconcile(t, st, day2, again)

	require.Len(t, cls.Updated, 1)
	assert.Equal(t, before.ID, cls.Updated[0].ExistingID)
	assert.Equal(t, 1, res.Updated)

	after := listAll(t, st)
	require.Len(t, after, 1)
	got := after[0]
	assert.Equal(t, before.ID, got.ID)
	assert.Equal(t, "O'Neil", got.LastName)
	assert.Equal(t, before.DOB, got.DOB)
	assert.True(t, got.Created.Equal(before.Created))
	assert.Equal(t, "non-binary", got.Gender)
	assert.Equal(t, "Trail Collective", got.Club)
	assert.True(t, got.LastUpdated.After(before.LastUpdated))
}

// failingTx rejects updates for one last name.
type failingTx struct {
	core.Tx
	lastName string
}

func (f failingTx) Update(ctx context.Context, reg core.Registration) error {
	if reg.LastName == f.lastName {
		return errors.New("CHECK constraint failed: registrations")
	}
	return f.Tx.Update(ctx, reg)
}

func TestReconcile_UpdateFailureDoesNotStopBatch(t *testing.T) {
	st := newMemory()
	reconcile(t, st, day1,
		signup("Ann", "Lee", "female", "01.02.1990"),
		signup("Bob", "Ray", "male", "02.03.1985"),
	)

	ctx := context.Background()
	var res *core.ReconcileResult
	err := st.RunInTx(ctx, func(tx core.Tx) error {
		ftx := failingTx{Tx: tx, lastName: "Lee"}
		cls := core.Classify(ctx, ftx, nil, raw(
			signup("Ann", "Lee", "female", "01.02.1990"),
			signup("Bob", "Ray", "male", "02.03.1985"),
			signup("Cat", "Ng", "female", "03.04.2001"),
		), nil)
		res = core.Reconcile(ctx, ftx, cls, day2)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	require.Len(t, res.Failed, 1)

	var rowErr *core.RowError
	require.ErrorAs(t, res.Failed[0].Err, &rowErr)
	assert.Equal(t, "update", rowErr.Op)
	assert.Equal(t, 2, rowErr.Line)
	assert.Equal(t, "Lee", rowErr.Identity.LastName)
}

// Package memory is an in-process core.Store used by tests.
//
// A transaction holds the store lock for its whole duration and works on the
// live maps; a failed transaction restores the snapshot taken when it began.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/racereg/internal/core"
)

// Store keeps registrations, overrides and import history in maps.
type Store struct {
	mu    sync.Mutex
	state state
}

type state struct {
	regs      map[int64]core.Registration
	byKey     map[core.IdentityKey]int64
	overrides map[int64]string
	batches   []core.ImportBatch
}

// New returns an empty Store.
func New() *Store {
	return &Store{state: state{
		regs:      make(map[int64]core.Registration),
		byKey:     make(map[core.IdentityKey]int64),
		overrides: make(map[int64]string),
	}}
}

func (s state) clone() state {
	c := state{
		regs:      make(map[int64]core.Registration, len(s.regs)),
		byKey:     make(map[core.IdentityKey]int64, len(s.byKey)),
		overrides: make(map[int64]string, len(s.overrides)),
		batches:   append([]core.ImportBatch(nil), s.batches...),
	}
	for k, v := range s.regs {
		c.regs[k] = v
	}
	for k, v := range s.byKey {
		c.byKey[k] = v
	}
	for k, v := range s.overrides {
		c.overrides[k] = v
	}
	return c
}

// RunInTx implements core.Store.
func (s *Store) RunInTx(ctx context.Context, fn func(tx core.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.state.clone()
	if err := fn(&tx{st: &s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Reset empties the store.
func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = New().state
	return nil
}

// Close implements core.Store.
func (s *Store) Close() error { return nil }

type tx struct {
	st *state
}

func (t *tx) FindByIdentity(_ context.Context, id core.Identity) (int64, bool, error) {
	regID, ok := t.st.byKey[id.Key()]
	return regID, ok, nil
}

func (t *tx) Insert(_ context.Context, reg core.Registration) (int64, error) {
	key := reg.Identity().Key()
	if _, exists := t.st.byKey[key]; exists {
		return 0, fmt.Errorf("%w: %s", core.ErrDuplicateIdentity, reg.Identity())
	}

	var next int64
	for id := range t.st.regs {
		if id > next {
			next = id
		}
	}
	next++

	reg.ID = next
	t.st.regs[next] = reg
	t.st.byKey[key] = next
	return next, nil
}

func (t *tx) Update(_ context.Context, reg core.Registration) error {
	id, ok := t.st.byKey[reg.Identity().Key()]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrRegistrationNotFound, reg.Identity())
	}

	cur := t.st.regs[id]
	cur.Gender = reg.Gender
	cur.Club = reg.Club
	cur.Email = reg.Email
	cur.MedicalConditions = reg.MedicalConditions
	cur.EmergencyName = reg.EmergencyName
	cur.EmergencyContact = reg.EmergencyContact
	cur.LastUpdated = reg.LastUpdated
	t.st.regs[id] = cur
	return nil
}

func (t *tx) ListAll(_ context.Context) ([]core.Registration, error) {
	out := make([]core.Registration, 0, len(t.st.regs))
	for _, r := range t.st.regs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) JoinOverrides(ctx context.Context) ([]core.RegistrationWithOverride, error) {
	regs, _ := t.ListAll(ctx)
	out := make([]core.RegistrationWithOverride, len(regs))
	for i, r := range regs {
		out[i].Registration = r
		if g, ok := t.st.overrides[r.ID]; ok {
			out[i].Override = &core.RaceGenderOverride{RegistrationID: r.ID, Gender: g}
		}
	}
	return out, nil
}

func (t *tx) SetOverride(_ context.Context, o core.RaceGenderOverride) error {
	if _, ok := t.st.regs[o.RegistrationID]; !ok {
		return fmt.Errorf("%w: id %d", core.ErrRegistrationNotFound, o.RegistrationID)
	}
	t.st.overrides[o.RegistrationID] = o.Gender
	return nil
}

func (t *tx) RecordBatch(_ context.Context, b core.ImportBatch) error {
	t.st.batches = append(t.st.batches, b)
	return nil
}

func (t *tx) ListBatches(_ context.Context, limit int) ([]core.ImportBatch, error) {
	n := len(t.st.batches)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]core.ImportBatch, 0, n)
	for i := len(t.st.batches) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, t.st.batches[i])
	}
	return out, nil
}

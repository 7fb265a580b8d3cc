package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/crew-engine/domain"
)

// MemoryJournal is a SyncJournal that survives as long as the value does.
// Tests share one between two trackers to simulate a restart.
type MemoryJournal struct {
	mu    sync.Mutex
	items map[domain.ShiftID]domain.PendingSync
}

var _ domain.SyncJournal = (*MemoryJournal)(nil)

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{items: make(map[domain.ShiftID]domain.PendingSync)}
}

func (j *MemoryJournal) SavePending(_ context.Context, p domain.PendingSync) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	p.Shift = cloneShift(p.Shift)
	j.items[p.Shift.ID] = p
	return nil
}

func (j *MemoryJournal) DeletePending(_ context.Context, id domain.ShiftID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.items, id)
	return nil
}

func (j *MemoryJournal) ListPending(_ context.Context) ([]domain.PendingSync, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.PendingSync, 0, len(j.items))
	for _, p := range j.items {
		p.Shift = cloneShift(p.Shift)
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Shift.Start.Before(out[b].Shift.Start) })
	return out, nil
}

func (j *MemoryJournal) ClearPending(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.items = make(map[domain.ShiftID]domain.PendingSync)
	return nil
}

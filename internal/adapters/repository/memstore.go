package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/dealsync/internal/domain/actions"
	"github.com/okian/dealsync/pkg/logger"
	"github.com/okian/dealsync/pkg/metrics"
)

// MemStore is an in-memory Store. Safe for concurrent use; reads and writes
// of the license index happen under the same lock, so a lookup never races a
// create for the same license.
type MemStore struct {
	mu     sync.RWMutex
	deals  map[actions.DealRef]*Deal
	order  []actions.DealRef
	owners map[string]actions.DealRef

	newID func() string
	now   func() time.Time
	log   logger.Logger
}

// NewMemStore creates an empty store.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		deals:  make(map[actions.DealRef]*Deal),
		owners: make(map[string]actions.DealRef),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("repository")
	}
	return s
}

// Seed loads existing deals, keeping their refs. Used to restore the CRM state
// before a run.
func (s *MemStore) Seed(ctx context.Context, deals []Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range deals {
		if d.Ref == "" {
			return fmt.Errorf("seed deal %q: empty ref", d.Properties.Name)
		}
		if _, exists := s.deals[d.Ref]; exists {
			return fmt.Errorf("seed deal %s: %w", d.Ref, ErrConflict)
		}
		if err := s.claimLocked(d.Ref, d.Properties.LicenseIDs); err != nil {
			return fmt.Errorf("seed deal %s: %w", d.Ref, err)
		}
		stored := cloneDeal(d)
		s.deals[d.Ref] = &stored
		s.order = append(s.order, d.Ref)
	}
	metrics.UpdateDealsTotal(len(s.deals))
	s.log.Info(ctx, "deals seeded", logger.Int("deals", len(deals)))
	return nil
}

func (s *MemStore) Lookup(ctx context.Context, licenseID string) (actions.DealRef, bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.owners[licenseID]
	return ref, ok, nil
}

func (s *MemStore) Current(ctx context.Context, ref actions.DealRef) (actions.Properties, error) {
	d, err := s.Get(ctx, ref)
	if err != nil {
		return actions.Properties{}, err
	}
	return d.Properties, nil
}

func (s *MemStore) Create(ctx context.Context, props actions.Properties) (actions.DealRef, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	ref := actions.DealRef(s.newID())
	if _, exists := s.deals[ref]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("create deal %s: %w", ref, ErrConflict)
	}
	if err := s.claimLocked(ref, props.LicenseIDs); err != nil {
		s.mu.Unlock()
		metrics.RecordErrorByComponent("repository", "conflict")
		return "", fmt.Errorf("create deal: %w", err)
	}
	now := s.now()
	s.deals[ref] = &Deal{Ref: ref, Properties: props.Clone(), CreatedAt: now, UpdatedAt: now}
	s.order = append(s.order, ref)
	count := len(s.deals)
	s.mu.Unlock()

	metrics.UpdateDealsTotal(count)
	return ref, nil
}

func (s *MemStore) Update(ctx context.Context, ref actions.DealRef, props actions.Properties) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[ref]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return fmt.Errorf("update deal %s: %w", ref, ErrNotFound)
	}
	if err := s.claimLocked(ref, props.LicenseIDs); err != nil {
		metrics.RecordErrorByComponent("repository", "conflict")
		return fmt.Errorf("update deal %s: %w", ref, err)
	}
	// Licenses dropped from the deal no longer resolve to it.
	for _, id := range d.Properties.LicenseIDs {
		if !slices.Contains(props.LicenseIDs, id) && s.owners[id] == ref {
			delete(s.owners, id)
		}
	}
	d.Properties = props.Clone()
	d.UpdatedAt = s.now()
	return nil
}

func (s *MemStore) Associate(ctx context.Context, ref actions.DealRef, a Association) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[ref]
	if !ok {
		return fmt.Errorf("associate deal %s: %w", ref, ErrNotFound)
	}
	d.Contacts = slices.Clone(a.Contacts)
	d.Companies = slices.Clone(a.Companies)
	d.Partner = a.Partner
	return nil
}

func (s *MemStore) Get(ctx context.Context, ref actions.DealRef) (Deal, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := ctx.Err(); err != nil {
		return Deal{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deals[ref]
	if !ok {
		return Deal{}, fmt.Errorf("deal %s: %w", ref, ErrNotFound)
	}
	return cloneDeal(*d), nil
}

func (s *MemStore) Deals(ctx context.Context) []Deal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Deal, 0, len(s.order))
	for _, ref := range s.order {
		out = append(out, cloneDeal(*s.deals[ref]))
	}
	return out
}

func (s *MemStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.deals)
}

// claimLocked indexes licenseIDs under ref. Must be called with s.mu held.
func (s *MemStore) claimLocked(ref actions.DealRef, licenseIDs []string) error {
	for _, id := range licenseIDs {
		if owner, ok := s.owners[id]; ok && owner != ref {
			return fmt.Errorf("license %s owned by deal %s: %w", id, owner, ErrConflict)
		}
	}
	for _, id := range licenseIDs {
		s.owners[id] = ref
	}
	return nil
}

func cloneDeal(d Deal) Deal {
	d.Properties = d.Properties.Clone()
	d.Contacts = slices.Clone(d.Contacts)
	d.Companies = slices.Clone(d.Companies)
	return d
}

var _ Store = (*MemStore)(nil)

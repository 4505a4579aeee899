package memory

import (
	"context"
	"sync"
	"time"

	domainavailability "spothire/internal/domain/availability"
	domainbooking "spothire/internal/domain/booking"
	domainlocation "spothire/internal/domain/location"
)

// LocationRepository is an in-memory implementation for demo and test runs.
type LocationRepository struct {
	mu    sync.RWMutex
	items map[domainlocation.LocationID]*domainlocation.Location
}

func NewLocationRepository() *LocationRepository {
	return &LocationRepository{
		items: make(map[domainlocation.LocationID]*domainlocation.Location),
	}
}

func (r *LocationRepository) ByID(ctx context.Context, id domainlocation.LocationID) (*domainlocation.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.items[id]
	if !ok {
		return nil, domainlocation.ErrLocationNotFound
	}
	copied := *loc
	return &copied, nil
}

func (r *LocationRepository) Save(ctx context.Context, loc *domainlocation.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *loc
	r.items[loc.ID] = &copied
	return nil
}

func (r *LocationRepository) ListCalendarConnected(ctx context.Context) ([]*domainlocation.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainlocation.Location
	for _, loc := range r.items {
		if !loc.CalendarConnected {
			continue
		}
		copied := *loc
		out = append(out, &copied)
	}
	return out, nil
}

var _ domainlocation.Repository = (*LocationRepository)(nil)

// BookingRepository keeps bookings in a map guarded by a RWMutex. Save bumps
// the version the same way the persistent store's optimistic filter would.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		items: make(map[domainbooking.BookingID]*domainbooking.Booking),
	}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.Version++
	copied := *b
	copied.ClearEvents()
	r.items[b.ID] = &copied
	return nil
}

func (r *BookingRepository) ListByRequester(ctx context.Context, requesterID string) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.items {
		if b.RequesterID != requesterID {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	return out, nil
}

func (r *BookingRepository) ListByLocation(ctx context.Context, id domainlocation.LocationID) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.items {
		if b.LocationID != id {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	return out, nil
}

func (r *BookingRepository) ListStale(ctx context.Context, status domainbooking.Status, cutoff time.Time) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.items {
		if b.Status != status || !b.CreatedAt.Before(cutoff) {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	return out, nil
}

func (r *BookingRepository) ListEnded(ctx context.Context, now time.Time) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.items {
		if b.Status != domainbooking.StatusConfirmed || b.Range.End.After(now) {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	return out, nil
}

var _ domainbooking.Repository = (*BookingRepository)(nil)

// AvailabilityRepository lazily creates an empty calendar per location so
// every location answers availability queries from day one.
type AvailabilityRepository struct {
	mu    sync.RWMutex
	items map[domainlocation.LocationID]*domainavailability.Calendar
}

func NewAvailabilityRepository() *AvailabilityRepository {
	return &AvailabilityRepository{
		items: make(map[domainlocation.LocationID]*domainavailability.Calendar),
	}
}

func (r *AvailabilityRepository) Calendar(ctx context.Context, id domainlocation.LocationID) (*domainavailability.Calendar, error) {
	r.mu.RLock()
	cal, ok := r.items[id]
	r.mu.RUnlock()
	if !ok {
		return domainavailability.NewCalendar(id), nil
	}
	return cloneCalendar(cal), nil
}

func (r *AvailabilityRepository) Save(ctx context.Context, cal *domainavailability.Calendar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cal.Version++
	copied := cloneCalendar(cal)
	r.items[cal.LocationID] = copied
	return nil
}

func cloneCalendar(cal *domainavailability.Calendar) *domainavailability.Calendar {
	copied := &domainavailability.Calendar{
		LocationID: cal.LocationID,
		Holds:      append([]domainavailability.Hold(nil), cal.Holds...),
		Blackouts:  append([]time.Time(nil), cal.Blackouts...),
		LastSyncAt: cal.LastSyncAt,
		Version:    cal.Version,
	}
	return copied
}

var _ domainavailability.Repository = (*AvailabilityRepository)(nil)

// OutcomeStore records processed payment-outcome keys. First writer wins;
// every later Record for the same key reports a duplicate, mirroring the
// unique-index behavior of the persistent store. Unlike the mongo store,
// whose insert joins the session and rolls back with it, a key recorded
// here outlives a failed unit of work. The memory mode provides no
// isolation anywhere, so a reconcile that errors after Record leaves that
// outcome key burned.
type OutcomeStore struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{items: make(map[string]time.Time)}
}

func (s *OutcomeStore) Record(ctx context.Context, key string, receivedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; ok {
		return true, nil
	}
	s.items[key] = receivedAt.UTC()
	return false, nil
}

var _ domainbooking.ProcessedOutcomes = (*OutcomeStore)(nil)

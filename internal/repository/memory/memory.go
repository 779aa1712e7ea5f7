// Package memory is an in-process implementation of the service storage
// ports.  It enforces the same uniqueness rules as the MySQL schema and is
// used by the service and handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/tennis-court-reservation/internal/model"
	"github.com/iliyamo/tennis-court-reservation/internal/repository"
	"github.com/iliyamo/tennis-court-reservation/internal/service"
)

type state struct {
	seq          uint64
	guests       map[uint64]model.Guest
	courts       map[uint64]model.TennisCourt
	schedules    map[uint64]model.Schedule
	reservations map[uint64]model.Reservation
}

func (s *state) clone() *state {
	c := &state{
		seq:          s.seq,
		guests:       make(map[uint64]model.Guest, len(s.guests)),
		courts:       make(map[uint64]model.TennisCourt, len(s.courts)),
		schedules:    make(map[uint64]model.Schedule, len(s.schedules)),
		reservations: make(map[uint64]model.Reservation, len(s.reservations)),
	}
	for k, v := range s.guests {
		c.guests[k] = v
	}
	for k, v := range s.courts {
		c.courts[k] = v
	}
	for k, v := range s.schedules {
		c.schedules[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	return c
}

func (s *state) next() uint64 {
	s.seq++
	return s.seq
}

// Store holds every table behind one mutex.  A transaction holds the mutex
// for its whole duration, which serialises writers the same way the row
// locks do in MySQL.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		st: &state{
			guests:       map[uint64]model.Guest{},
			courts:       map[uint64]model.TennisCourt{},
			schedules:    map[uint64]model.Schedule{},
			reservations: map[uint64]model.Reservation{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Stores returns a non-transactional view.  Each call takes the mutex on its
// own.
func (m *Store) Stores() service.Stores {
	v := &view{store: m}
	return service.Stores{
		Guests:       guestView{v},
		Courts:       courtView{v},
		Schedules:    scheduleView{v},
		Reservations: reservationView{v},
	}
}

// WithinTx runs fn against a snapshot of the store.  The snapshot replaces
// the live state only when fn returns nil.
func (m *Store) WithinTx(ctx context.Context, fn func(service.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.st.clone()
	v := &view{store: m, locked: true, st: work}
	err := fn(service.Stores{
		Guests:       guestView{v},
		Courts:       courtView{v},
		Schedules:    scheduleView{v},
		Reservations: reservationView{v},
	})
	if err != nil {
		return err
	}
	m.st = work
	return nil
}

// AddGuest seeds a guest and returns it with its ID set.
func (m *Store) AddGuest(name, email, role string) model.Guest {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	g := model.Guest{ID: m.st.next(), Name: name, Email: email, Role: role, CreatedAt: now, UpdatedAt: now}
	m.st.guests[g.ID] = g
	return g
}

// AddCourt seeds a tennis court.
func (m *Store) AddCourt(name string) model.TennisCourt {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	c := model.TennisCourt{ID: m.st.next(), Name: name, CreatedAt: now, UpdatedAt: now}
	m.st.courts[c.ID] = c
	return c
}

// AddSchedule seeds a one-hour slot without any business check, so tests
// can place slots in the past.
func (m *Store) AddSchedule(courtID uint64, start time.Time) model.Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	start = start.UTC()
	s := model.Schedule{
		ID:            m.st.next(),
		TennisCourtID: courtID,
		StartDateTime: start,
		EndDateTime:   start.Add(model.SlotDuration),
		CreatedAt:     m.now(),
	}
	m.st.schedules[s.ID] = s
	return s
}

// view resolves the state to operate on.  Inside WithinTx the mutex is
// already held and st is the working snapshot.
type view struct {
	store  *Store
	locked bool
	st     *state
}

func (v *view) do(fn func(st *state) error) error {
	if v.locked {
		return fn(v.st)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

type guestView struct{ v *view }

func (g guestView) GetByID(_ context.Context, id uint64) (*model.Guest, error) {
	var out *model.Guest
	err := g.v.do(func(st *state) error {
		found, ok := st.guests[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &found
		return nil
	})
	return out, err
}

type courtView struct{ v *view }

func (c courtView) GetByID(_ context.Context, id uint64) (*model.TennisCourt, error) {
	var out *model.TennisCourt
	err := c.v.do(func(st *state) error {
		found, ok := st.courts[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &found
		return nil
	})
	return out, err
}

type scheduleView struct{ v *view }

func (s scheduleView) Create(_ context.Context, sch *model.Schedule) error {
	return s.v.do(func(st *state) error {
		for _, existing := range st.schedules {
			if existing.TennisCourtID == sch.TennisCourtID && existing.StartDateTime.Equal(sch.StartDateTime) {
				return repository.ErrDuplicate
			}
		}
		cp := *sch
		cp.ID = st.next()
		cp.StartDateTime = cp.StartDateTime.UTC()
		cp.EndDateTime = cp.EndDateTime.UTC()
		cp.CreatedAt = s.v.store.now()
		st.schedules[cp.ID] = cp
		*sch = cp
		return nil
	})
}

func (s scheduleView) GetByID(_ context.Context, id uint64) (*model.Schedule, error) {
	var out *model.Schedule
	err := s.v.do(func(st *state) error {
		found, ok := st.schedules[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &found
		return nil
	})
	return out, err
}

func (s scheduleView) LockByID(ctx context.Context, id uint64) (*model.Schedule, error) {
	return s.GetByID(ctx, id)
}

func (s scheduleView) FindByCourtAndStart(_ context.Context, courtID uint64, start time.Time) (*model.Schedule, error) {
	var out *model.Schedule
	err := s.v.do(func(st *state) error {
		for _, existing := range st.schedules {
			if existing.TennisCourtID == courtID && existing.StartDateTime.Equal(start) {
				found := existing
				out = &found
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (s scheduleView) ListInRange(_ context.Context, start, end time.Time) ([]model.Schedule, error) {
	return s.list(func(sch model.Schedule) bool {
		return !sch.StartDateTime.Before(start) && !sch.EndDateTime.After(end)
	})
}

func (s scheduleView) ListByCourt(_ context.Context, courtID uint64) ([]model.Schedule, error) {
	return s.list(func(sch model.Schedule) bool { return sch.TennisCourtID == courtID })
}

func (s scheduleView) list(keep func(model.Schedule) bool) ([]model.Schedule, error) {
	out := make([]model.Schedule, 0)
	err := s.v.do(func(st *state) error {
		for _, sch := range st.schedules {
			if keep(sch) {
				out = append(out, sch)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDateTime.Equal(out[j].StartDateTime) {
			return out[i].StartDateTime.Before(out[j].StartDateTime)
		}
		return out[i].TennisCourtID < out[j].TennisCourtID
	})
	return out, err
}

type reservationView struct{ v *view }

// storedReservation drops the attached relations; they are never persisted.
func storedReservation(r model.Reservation) model.Reservation {
	r.Schedule, r.Guest = nil, nil
	if r.PreviousReservationID != nil {
		id := *r.PreviousReservationID
		r.PreviousReservationID = &id
	}
	return r
}

func activeOn(st *state, scheduleID, exceptID uint64) bool {
	for _, r := range st.reservations {
		if r.ID != exceptID && r.ScheduleID == scheduleID && r.Status() == model.StatusReadyToPlay {
			return true
		}
	}
	return false
}

func (rv reservationView) Create(_ context.Context, r *model.Reservation) error {
	return rv.v.do(func(st *state) error {
		if r.Status() == model.StatusReadyToPlay && activeOn(st, r.ScheduleID, 0) {
			return repository.ErrDuplicate
		}
		cp := storedReservation(*r)
		cp.ID = st.next()
		if cp.State == nil {
			cp.State = model.ReadyToPlay{}
		}
		now := rv.v.store.now()
		cp.CreatedAt, cp.UpdatedAt = now, now
		st.reservations[cp.ID] = cp

		r.ID, r.State, r.CreatedAt, r.UpdatedAt = cp.ID, cp.State, now, now
		return nil
	})
}

func (rv reservationView) Update(_ context.Context, r *model.Reservation) error {
	return rv.v.do(func(st *state) error {
		existing, ok := st.reservations[r.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if r.Status() == model.StatusReadyToPlay && activeOn(st, existing.ScheduleID, r.ID) {
			return repository.ErrDuplicate
		}
		existing.State = r.State
		existing.ValueCents = r.ValueCents
		existing.UpdatedAt = rv.v.store.now()
		st.reservations[r.ID] = existing
		r.UpdatedAt = existing.UpdatedAt
		return nil
	})
}

func (rv reservationView) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	var out *model.Reservation
	err := rv.v.do(func(st *state) error {
		found, ok := st.reservations[id]
		if !ok {
			return repository.ErrNotFound
		}
		cp := storedReservation(found)
		out = &cp
		return nil
	})
	return out, err
}

func (rv reservationView) LockByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return rv.GetByID(ctx, id)
}

func (rv reservationView) ListBySchedule(_ context.Context, scheduleID uint64) ([]model.Reservation, error) {
	out, err := rv.list(func(r model.Reservation) bool { return r.ScheduleID == scheduleID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (rv reservationView) ListByGuest(_ context.Context, guestID uint64) ([]model.Reservation, error) {
	out, err := rv.list(func(r model.Reservation) bool { return r.GuestID == guestID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

func (rv reservationView) list(keep func(model.Reservation) bool) ([]model.Reservation, error) {
	out := make([]model.Reservation, 0)
	err := rv.v.do(func(st *state) error {
		for _, r := range st.reservations {
			if keep(r) {
				out = append(out, storedReservation(r))
			}
		}
		return nil
	})
	return out, err
}

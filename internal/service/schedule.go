package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/tennis-court-reservation/internal/apperror"
	"github.com/iliyamo/tennis-court-reservation/internal/clock"
	"github.com/iliyamo/tennis-court-reservation/internal/model"
	"github.com/iliyamo/tennis-court-reservation/internal/repository"
)

// ErrPastDate is wrapped by the InvalidArgument error CreateSlot returns for
// a start time before now.
var ErrPastDate = errors.New("slot start is in the past")

// ScheduleService allocates and looks up schedule slots.
type ScheduleService struct {
	schedules ScheduleStore
	courts    CourtLookup
	clock     clock.Clock
}

// NewScheduleService panics when a dependency is missing.
func NewScheduleService(schedules ScheduleStore, courts CourtLookup, clk clock.Clock) *ScheduleService {
	if schedules == nil || courts == nil || clk == nil {
		panic("nil dependency passed to NewScheduleService")
	}
	return &ScheduleService{schedules: schedules, courts: courts, clock: clk}
}

// CreateSlot adds a one-hour slot starting at start on the given court.
// Checks run in order: past date, duplicate slot, unknown court.
func (s *ScheduleService) CreateSlot(ctx context.Context, courtID uint64, start time.Time) (*model.Schedule, error) {
	if start.Before(s.clock.Now()) {
		return nil, &apperror.Error{
			Kind:    apperror.ErrInvalidArgument,
			Message: "It's forbidden add slots on the past",
			Err:     ErrPastDate,
		}
	}
	// DATETIME columns keep whole seconds; normalise so lookups match.
	start = start.UTC().Truncate(time.Second)

	_, err := s.schedules.FindByCourtAndStart(ctx, courtID, start)
	switch {
	case err == nil:
		return nil, apperror.AlreadyExists("Schedule slot already exists.")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperror.Storage("failed to check schedule slot", err)
	}

	if _, err := s.courts.GetByID(ctx, courtID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Tennis Court not found.")
		}
		return nil, apperror.Storage("failed to load tennis court", err)
	}

	slot := &model.Schedule{
		TennisCourtID: courtID,
		StartDateTime: start,
		EndDateTime:   start.Add(model.SlotDuration),
	}
	if err := s.schedules.Create(ctx, slot); err != nil {
		// Lost a race with a concurrent insert of the same slot.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.AlreadyExists("Schedule slot already exists.")
		}
		return nil, apperror.Storage("failed to create schedule slot", err)
	}
	return slot, nil
}

// GetSlot returns the slot with the given id.
func (s *ScheduleService) GetSlot(ctx context.Context, id uint64) (*model.Schedule, error) {
	slot, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, slotLookupError(id, err)
	}
	return slot, nil
}

// ListSlotsInRange returns every slot that lies fully inside [start, end].
// Ordering is left to the store.  A reversed range holds no slot.
func (s *ScheduleService) ListSlotsInRange(ctx context.Context, start, end time.Time) ([]model.Schedule, error) {
	if end.Before(start) {
		return []model.Schedule{}, nil
	}
	slots, err := s.schedules.ListInRange(ctx, start.UTC(), end.UTC())
	if err != nil {
		return nil, apperror.Storage("failed to list schedule slots", err)
	}
	return slots, nil
}

// ListSlotsForCourt returns a court's slots ordered by start time.
func (s *ScheduleService) ListSlotsForCourt(ctx context.Context, courtID uint64) ([]model.Schedule, error) {
	slots, err := s.schedules.ListByCourt(ctx, courtID)
	if err != nil {
		return nil, apperror.Storage("failed to list schedule slots", err)
	}
	return slots, nil
}

func slotLookupError(id uint64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(fmt.Sprintf("Schedule (#%d) was not found", id))
	}
	return apperror.Storage("failed to load schedule slot", err)
}

package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidRange  = errors.New("window end must be after window start")
	ErrPastDate      = errors.New("cannot declare availability on a past date")
	ErrWindowOverlap = errors.New("window overlaps an existing availability window")
	ErrNotOwner      = errors.New("window does not belong to the requesting doctor")
)

const (
	EventWindowAdded   = "WINDOW_ADDED"
	EventWindowRemoved = "WINDOW_REMOVED"
)

// AvailabilityService is the registry of doctor-declared open time windows.
type AvailabilityService struct {
	repo Repository
	log  zerolog.Logger
	now  func() time.Time
}

func NewAvailabilityService(repo Repository, log zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// AddWindow declares a new open window for the doctor on the given day.
// start and end carry the wall-clock of day; only their time-of-day is used.
// allowPastBackfill is the administrative override for loading historical
// data, the normal doctor flow passes false.
func (s *AvailabilityService) AddWindow(ctx context.Context, doctorID uuid.UUID, day, start, end time.Time, notes *string, allowPastBackfill bool) (*AvailabilityWindow, error) {
	day = DayOf(day)
	startsAt := CombineDayTime(day, start)
	endsAt := CombineDayTime(day, end)

	if !endsAt.After(startsAt) {
		return nil, ErrInvalidRange
	}
	if !allowPastBackfill && day.Before(DayOf(s.now())) {
		return nil, ErrPastDate
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	existing, err := s.repo.ListWindowsForDay(ctx, doctorID, day)
	if err != nil {
		return nil, fmt.Errorf("list windows for day: %w", err)
	}
	for i := range existing {
		if Overlaps(startsAt, endsAt, existing[i].StartsAt, existing[i].EndsAt) {
			return nil, ErrWindowOverlap
		}
	}

	created, err := s.repo.CreateWindow(ctx, AvailabilityWindow{
		DoctorID: doctorID,
		Day:      day,
		StartsAt: startsAt,
		EndsAt:   endsAt,
		Notes:    notes,
	})
	if err != nil {
		if errors.Is(err, ErrWindowOverlap) {
			return nil, ErrWindowOverlap
		}
		return nil, fmt.Errorf("create window: %w", err)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Str("window_id", created.ID.String()).
		Time("starts_at", created.StartsAt).
		Time("ends_at", created.EndsAt).
		Msg("availability window added")

	return created, nil
}

// RemoveWindow deletes a window, but only for the doctor that owns it.
func (s *AvailabilityService) RemoveWindow(ctx context.Context, windowID, requesterDoctorID uuid.UUID) error {
	w, err := s.repo.GetWindowByID(ctx, windowID)
	if err != nil {
		if errors.Is(err, ErrWindowNotFound) {
			return err
		}
		return fmt.Errorf("load window: %w", err)
	}
	if w.DoctorID != requesterDoctorID {
		return ErrNotOwner
	}

	if err := s.repo.DeleteWindow(ctx, windowID); err != nil {
		return fmt.Errorf("delete window: %w", err)
	}

	s.log.Info().
		Str("doctor_id", requesterDoctorID.String()).
		Str("window_id", windowID.String()).
		Msg("availability window removed")

	return nil
}

// ListOpenWindows pages through the doctor's windows with day >= fromDay,
// ordered by (day, start). The ordering is what gives callers deterministic
// first-available-slot semantics.
func (s *AvailabilityService) ListOpenWindows(ctx context.Context, doctorID uuid.UUID, fromDay time.Time, limit, offset int) ([]AvailabilityWindow, error) {
	if limit <= 0 {
		limit = 50 // default
	}
	if limit > 200 {
		limit = 200 // max
	}
	if offset < 0 {
		offset = 0
	}

	windows, err := s.repo.ListWindowsFrom(ctx, doctorID, DayOf(fromDay), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	return windows, nil
}

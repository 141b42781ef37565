package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibook/hospital-scheduling/internal/config"
	redisclient "github.com/medibook/hospital-scheduling/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventTreatmentRecorded    = "TREATMENT_RECORDED"
	EventAppointmentReminder  = "APPOINTMENT_REMINDER"
)

// Content-quality thresholds. Data-quality guards, not a security boundary.
const (
	minReasonLength       = 5
	minDiagnosisLength    = 10
	minPrescriptionLength = 10
)

var (
	ErrSlotTaken         = errors.New("this slot overlaps with an existing appointment")
	ErrBookingContended  = errors.New("slot is currently being booked, please retry")
	ErrPatientRestricted = errors.New("patient is not permitted to book appointments")
	ErrInvalidReason     = errors.New("booking reason is missing or too short")
	ErrInvalidTreatment  = errors.New("diagnosis and prescription must be filled in")
	ErrInvalidTransition = errors.New("invalid appointment status transition")
	ErrAccessDenied      = errors.New("requester may not perform this action")
	ErrDoctorInactive    = errors.New("doctor is no longer taking appointments")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	log    zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    log,
	}
}

// BookAppointment reserves a whole availability window for a patient. The
// window's full span becomes the appointment span. A per-doctor distributed
// lock serializes the overlap check and the insert so that concurrent
// requests for overlapping spans cannot both succeed; the schema-level
// constraints on appointments are the backstop if the lock ever fails us.
func (s *Service) BookAppointment(ctx context.Context, doctorID, patientID, windowID uuid.UUID, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) < minReasonLength {
		return nil, ErrInvalidReason
	}

	patient, err := s.repo.GetPatientByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if patient.Blacklisted {
		return nil, ErrPatientRestricted
	}

	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.Active {
		return nil, ErrDoctorInactive
	}

	window, err := s.repo.GetWindowByID(ctx, windowID)
	if err != nil {
		if errors.Is(err, ErrWindowNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load window: %w", err)
	}
	if window.DoctorID != doctorID {
		return nil, ErrWindowNotFound
	}

	startsAt, endsAt := WindowSpan(window)

	var created *Appointment

	err = s.locker.WithDoctorLock(ctx, doctorID, func(lockCtx context.Context) error {
		// Inside the critical section re-check against every non-cancelled
		// appointment of this doctor.
		active, err := s.repo.ListActiveAppointmentsByDoctor(lockCtx, doctorID)
		if err != nil {
			return fmt.Errorf("list active appointments: %w", err)
		}
		for i := range active {
			if Overlaps(startsAt, endsAt, active[i].StartsAt, active[i].EndsAt) {
				return ErrSlotTaken
			}
		}

		appt, err := s.repo.CreateBookedAppointment(lockCtx, doctorID, patientID, startsAt, endsAt, reason)
		if err != nil {
			return err
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":  doctorID.String(),
			"patient_id": patientID.String(),
			"window_id":  windowID.String(),
			"starts_at":  startsAt,
			"ends_at":    endsAt,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingContended
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", doctorID.String()).
		Str("patient_id", patientID.String()).
		Time("starts_at", startsAt).
		Msg("appointment booked")

	return created, nil
}

// CancelAppointment moves a BOOKED appointment to CANCELLED. Patients may
// cancel their own appointments, administrators any; doctors use the
// treatment flow or an explicit completion instead.
func (s *Service) CancelAppointment(ctx context.Context, appointmentID, requesterID uuid.UUID, role Role, actorTag ActorTag) error {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("load appointment: %w", err)
	}

	switch role {
	case RolePatient:
		if appt.PatientID != requesterID {
			return ErrAccessDenied
		}
		if actorTag != ActorPatient && actorTag != ActorPatientReschedule {
			return ErrAccessDenied
		}
	case RoleAdmin:
		actorTag = ActorAdmin
	default:
		return ErrAccessDenied
	}

	if !CanTransition(appt.Status, StatusCancelled) {
		return ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusBooked, StatusCancelled, &actorTag)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race against another transition.
			return ErrInvalidTransition
		}
		return fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"canceled_by": string(actorTag),
	})

	s.log.Info().
		Str("appointment_id", appointmentID.String()).
		Str("canceled_by", string(actorTag)).
		Msg("appointment cancelled")

	return nil
}

// RescheduleAppointment is cancel-then-rebook: the old appointment is
// cancelled with the PATIENT_RESCHEDULE tag, then the normal booking flow
// runs for the new window. If the new booking fails the old appointment
// stays cancelled, exactly as if the patient had done the two steps by hand.
func (s *Service) RescheduleAppointment(ctx context.Context, appointmentID, patientID, newWindowID uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if err := s.CancelAppointment(ctx, appointmentID, patientID, RolePatient, ActorPatientReschedule); err != nil {
		return nil, err
	}

	return s.BookAppointment(ctx, appt.DoctorID, patientID, newWindowID, reason)
}

// TransitionStatus is the doctor's explicit status update on an owned
// appointment. Only BOOKED -> COMPLETED is offered here; cancellations go
// through the patient or administrator paths.
func (s *Service) TransitionStatus(ctx context.Context, appointmentID, requesterDoctorID uuid.UUID, target AppointmentStatus) error {
	if !ValidStatus(target) {
		return ErrInvalidTransition
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("load appointment: %w", err)
	}
	if appt.DoctorID != requesterDoctorID {
		return ErrNotOwner
	}

	if !CanTransition(appt.Status, target) {
		return ErrInvalidTransition
	}
	if target == StatusCancelled {
		return ErrAccessDenied
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusBooked, target, nil)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return ErrInvalidTransition
		}
		return fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{
		"by": "doctor",
	})

	return nil
}

// TreatmentFields is the doctor-entered clinical content of a treatment.
type TreatmentFields struct {
	Diagnosis    string
	Prescription string
	Notes        *string
	DoctorNotes  *string
}

// AttachTreatment creates or updates the single treatment record of an
// appointment and completes the appointment through the transition guard.
// Calling it again with the same fields is a no-op update, never a second
// row.
func (s *Service) AttachTreatment(ctx context.Context, appointmentID, requesterDoctorID uuid.UUID, fields TreatmentFields) (*Treatment, error) {
	fields.Diagnosis = strings.TrimSpace(fields.Diagnosis)
	fields.Prescription = strings.TrimSpace(fields.Prescription)
	if len(fields.Diagnosis) < minDiagnosisLength || len(fields.Prescription) < minPrescriptionLength {
		return nil, ErrInvalidTreatment
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.DoctorID != requesterDoctorID {
		return nil, ErrNotOwner
	}
	// BOOKED is about to complete, COMPLETED is an edit. CANCELLED gets no
	// treatment record.
	if appt.Status != StatusBooked && appt.Status != StatusCompleted {
		return nil, ErrInvalidTransition
	}

	treatment, err := s.repo.UpsertTreatment(ctx, Treatment{
		AppointmentID: appt.ID,
		Diagnosis:     fields.Diagnosis,
		Prescription:  fields.Prescription,
		Notes:         fields.Notes,
		DoctorNotes:   fields.DoctorNotes,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert treatment: %w", err)
	}

	s.logEvent(ctx, appt.ID, EventTreatmentRecorded, map[string]any{
		"treatment_id": treatment.ID.String(),
	})

	if appt.Status == StatusBooked {
		if !CanTransition(appt.Status, StatusCompleted) {
			return nil, ErrInvalidTransition
		}
		if _, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusBooked, StatusCompleted, nil); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return nil, ErrInvalidTransition
			}
			return nil, fmt.Errorf("complete appointment: %w", err)
		}
		s.logEvent(ctx, appt.ID, EventAppointmentCompleted, map[string]any{
			"by": "treatment",
		})
	}

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("treatment_id", treatment.ID.String()).
		Msg("treatment recorded")

	return treatment, nil
}

// DeleteDoctor force-cancels every BOOKED appointment of the doctor with the
// ADMIN actor tag and then deactivates the record. This is an administrative
// override of the per-appointment ownership guards; the transitions
// themselves are still ordinary BOOKED -> CANCELLED moves.
func (s *Service) DeleteDoctor(ctx context.Context, doctorID uuid.UUID) error {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return err
		}
		return fmt.Errorf("load doctor: %w", err)
	}

	booked, err := s.repo.ListBookedByDoctor(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("list booked appointments: %w", err)
	}

	tag := ActorAdmin
	for _, appt := range booked {
		if !CanTransition(appt.Status, StatusCancelled) {
			continue
		}
		if _, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusBooked, StatusCancelled, &tag); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			return fmt.Errorf("cascade cancel appointment %s: %w", appt.ID, err)
		}
		s.logEvent(ctx, appt.ID, EventAppointmentCancelled, map[string]any{
			"canceled_by": string(ActorAdmin),
			"reason":      "doctor_removed",
		})
	}

	if err := s.repo.DeactivateDoctor(ctx, doctorID); err != nil {
		return fmt.Errorf("deactivate doctor: %w", err)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Int("cancelled_appointments", len(booked)).
		Msg("doctor removed")

	return nil
}

// RemindUpcoming is called periodically by the reminder worker. It marks
// BOOKED appointments that start within the configured lead time and logs a
// reminder event for each; marking is idempotent per appointment.
func (s *Service) RemindUpcoming(ctx context.Context) error {
	now := time.Now()
	upcoming, err := s.repo.FindUpcomingUnreminded(ctx, now, now.Add(s.cfg.ReminderLead))
	if err != nil {
		return fmt.Errorf("find upcoming appointments: %w", err)
	}

	for _, appt := range upcoming {
		if err := s.repo.MarkReminded(ctx, appt.ID, now); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to mark appointment reminded")
			continue
		}
		s.logEvent(ctx, appt.ID, EventAppointmentReminder, map[string]any{
			"starts_at": appt.StartsAt,
		})
	}

	return nil
}

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

// ListAppointmentsByPatient retrieves appointments for a specific patient
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, status *AppointmentStatus, limit, offset int) ([]AppointmentDetail, error) {
	limit, offset = clampPage(limit, offset)
	appointments, err := s.repo.ListAppointmentsByPatient(ctx, patientID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

// ListAppointmentsByDoctor retrieves appointments for a specific doctor,
// optionally filtered by status; this is the doctor dashboard feed.
func (s *Service) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, status *AppointmentStatus, limit, offset int) ([]AppointmentDetail, error) {
	limit, offset = clampPage(limit, offset)
	appointments, err := s.repo.ListAppointmentsByDoctor(ctx, doctorID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return appointments, nil
}

// ListAllAppointments is the administrator's view across every doctor.
func (s *Service) ListAllAppointments(ctx context.Context, limit, offset int) ([]AppointmentDetail, error) {
	limit, offset = clampPage(limit, offset)
	appointments, err := s.repo.ListAllAppointments(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list all appointments: %w", err)
	}
	return appointments, nil
}

// GetPatientHistory returns the patient's completed appointments, newest
// first, with treatments attached.
func (s *Service) GetPatientHistory(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	status := StatusCompleted
	return s.ListAppointmentsByPatient(ctx, patientID, &status, limit, offset)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

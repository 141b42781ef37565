package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrWindowNotFound      = errors.New("availability window not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrTreatmentNotFound   = errors.New("treatment not found")
)

// Repository contains all DB interactions needed by the scheduling services.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	DeactivateDoctor(ctx context.Context, id uuid.UUID) error

	// Availability registry
	CreateWindow(ctx context.Context, w AvailabilityWindow) (*AvailabilityWindow, error)
	GetWindowByID(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error)
	DeleteWindow(ctx context.Context, id uuid.UUID) error
	ListWindowsForDay(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]AvailabilityWindow, error)
	ListWindowsFrom(ctx context.Context, doctorID uuid.UUID, fromDay time.Time, limit, offset int) ([]AvailabilityWindow, error)

	// For conflict checks: every appointment of the doctor whose status is
	// not CANCELLED.
	ListActiveAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error)

	// Creation and updates. CreateBookedAppointment must surface ErrSlotTaken
	// when the schema-level overlap constraints reject the insert.
	CreateBookedAppointment(ctx context.Context, doctorID, patientID uuid.UUID, startsAt, endsAt time.Time, reason string) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, canceledBy *ActorTag) (*Appointment, error)

	// Read side
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, status *AppointmentStatus, limit, offset int) ([]AppointmentDetail, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, status *AppointmentStatus, limit, offset int) ([]AppointmentDetail, error)
	ListAllAppointments(ctx context.Context, limit, offset int) ([]AppointmentDetail, error)
	ListBookedByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error)

	// Treatments
	GetTreatmentByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Treatment, error)
	UpsertTreatment(ctx context.Context, t Treatment) (*Treatment, error)

	// Reminder worker
	FindUpcomingUnreminded(ctx context.Context, from, until time.Time) ([]Appointment, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

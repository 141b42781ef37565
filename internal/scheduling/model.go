package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "BOOKED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
)

// ActorTag records which role initiated a cancellation.
type ActorTag string

const (
	ActorPatient           ActorTag = "PATIENT"
	ActorAdmin             ActorTag = "ADMIN"
	ActorPatientReschedule ActorTag = "PATIENT_RESCHEDULE"
)

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
)

type Department struct {
	ID          uuid.UUID
	Name        string
	Description *string
	CreatedAt   time.Time
}

type Doctor struct {
	ID            uuid.UUID
	Name          string
	Email         string
	DepartmentID  *uuid.UUID
	Qualification *string
	Bio           *string
	Blacklisted   bool
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Patient struct {
	ID          uuid.UUID
	Name        string
	Email       string
	Phone       *string
	DateOfBirth *time.Time
	Gender      *string
	Address     *string
	Blacklisted bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AvailabilityWindow is a doctor-declared open interval on a given day.
// StartsAt and EndsAt are full timestamps on Day; the interval is half-open
// [StartsAt, EndsAt).
type AvailabilityWindow struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Day       time.Time
	StartsAt  time.Time
	EndsAt    time.Time
	Notes     *string
	CreatedAt time.Time
}

type Appointment struct {
	ID             uuid.UUID
	DoctorID       uuid.UUID
	PatientID      uuid.UUID
	StartsAt       time.Time
	EndsAt         time.Time
	Status         AppointmentStatus
	Reason         string
	CanceledBy     *ActorTag
	ReminderSentAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Treatment is the single clinical record attached to a completed appointment.
type Treatment struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Diagnosis     string
	Prescription  string
	Notes         *string
	DoctorNotes   *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Doctor    *Doctor
	Patient   *Patient
	Treatment *Treatment
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medibook/hospital-scheduling/internal/scheduling"
)

// AvailabilityService is the slice of the availability registry the handlers
// need. *scheduling.AvailabilityService satisfies it.
type AvailabilityService interface {
	AddWindow(ctx context.Context, doctorID uuid.UUID, day, start, end time.Time, notes *string, allowPastBackfill bool) (*scheduling.AvailabilityWindow, error)
	RemoveWindow(ctx context.Context, windowID, requesterDoctorID uuid.UUID) error
	ListOpenWindows(ctx context.Context, doctorID uuid.UUID, fromDay time.Time, limit, offset int) ([]scheduling.AvailabilityWindow, error)
}

// BookingService is the slice of the booking core the handlers need.
// *scheduling.Service satisfies it.
type BookingService interface {
	BookAppointment(ctx context.Context, doctorID, patientID, windowID uuid.UUID, reason string) (*scheduling.Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID, requesterID uuid.UUID, role scheduling.Role, actorTag scheduling.ActorTag) error
	RescheduleAppointment(ctx context.Context, appointmentID, patientID, newWindowID uuid.UUID, reason string) (*scheduling.Appointment, error)
	TransitionStatus(ctx context.Context, appointmentID, requesterDoctorID uuid.UUID, target scheduling.AppointmentStatus) error
	AttachTreatment(ctx context.Context, appointmentID, requesterDoctorID uuid.UUID, fields scheduling.TreatmentFields) (*scheduling.Treatment, error)
	DeleteDoctor(ctx context.Context, doctorID uuid.UUID) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.AppointmentDetail, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, status *scheduling.AppointmentStatus, limit, offset int) ([]scheduling.AppointmentDetail, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, status *scheduling.AppointmentStatus, limit, offset int) ([]scheduling.AppointmentDetail, error)
	ListAllAppointments(ctx context.Context, limit, offset int) ([]scheduling.AppointmentDetail, error)
	GetPatientHistory(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]scheduling.AppointmentDetail, error)
}

type RouterConfig struct {
	Booking      BookingService
	Availability AvailabilityService
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	JWTSecret    string
	Env          string
	Version      string
	Logger       zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints stay unauthenticated.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		// Availability registry
		r.Get("/doctors/{doctorID}/windows", listWindowsHandler(cfg.Availability))
		r.With(RequireRole(scheduling.RoleDoctor, scheduling.RoleAdmin)).
			Post("/doctors/{doctorID}/windows", addWindowHandler(cfg.Availability))
		r.With(RequireRole(scheduling.RoleDoctor)).
			Delete("/windows/{windowID}", removeWindowHandler(cfg.Availability))

		// Appointments
		r.With(RequireRole(scheduling.RolePatient)).
			Post("/appointments", bookAppointmentHandler(cfg.Booking))
		r.Get("/appointments", listAppointmentsHandler(cfg.Booking))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
		r.With(RequireRole(scheduling.RolePatient, scheduling.RoleAdmin)).
			Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Booking))
		r.With(RequireRole(scheduling.RolePatient)).
			Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Booking))
		r.With(RequireRole(scheduling.RoleDoctor)).
			Post("/appointments/{id}/status", transitionStatusHandler(cfg.Booking))
		r.With(RequireRole(scheduling.RoleDoctor)).
			Put("/appointments/{id}/treatment", attachTreatmentHandler(cfg.Booking))

		// Histories and administration
		r.Get("/patients/{patientID}/history", patientHistoryHandler(cfg.Booking))
		r.With(RequireRole(scheduling.RoleAdmin)).
			Delete("/doctors/{doctorID}", deleteDoctorHandler(cfg.Booking))
	})

	return r
}

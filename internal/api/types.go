package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medibook/hospital-scheduling/internal/scheduling"
)

type AddWindowRequest struct {
	Date         string  `json:"date"`       // 2006-01-02
	StartTime    string  `json:"start_time"` // 15:04
	EndTime      string  `json:"end_time"`   // 15:04
	Notes        *string `json:"notes,omitempty"`
	PastBackfill bool    `json:"past_backfill,omitempty"` // admin only
}

type WindowResponse struct {
	ID       uuid.UUID `json:"id"`
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Notes    *string   `json:"notes,omitempty"`
}

type BookAppointmentRequest struct {
	DoctorID string `json:"doctor_id"`
	WindowID string `json:"window_id"`
	Reason   string `json:"reason"`
}

type RescheduleRequest struct {
	WindowID string `json:"window_id"`
	Reason   string `json:"reason"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type TreatmentRequest struct {
	Diagnosis    string  `json:"diagnosis"`
	Prescription string  `json:"prescription"`
	Notes        *string `json:"notes,omitempty"`
	DoctorNotes  *string `json:"doctor_notes,omitempty"`
}

type TreatmentResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Diagnosis     string    `json:"diagnosis"`
	Prescription  string    `json:"prescription"`
	Notes         *string   `json:"notes,omitempty"`
	DoctorNotes   *string   `json:"doctor_notes,omitempty"`
}

type AppointmentResponse struct {
	ID         uuid.UUID          `json:"id"`
	DoctorID   uuid.UUID          `json:"doctor_id"`
	PatientID  uuid.UUID          `json:"patient_id"`
	StartsAt   time.Time          `json:"starts_at"`
	EndsAt     time.Time          `json:"ends_at"`
	Status     string             `json:"status"`
	Reason     string             `json:"reason"`
	CanceledBy *string            `json:"canceled_by,omitempty"`
	Doctor     *string            `json:"doctor_name,omitempty"`
	Patient    *string            `json:"patient_name,omitempty"`
	Treatment  *TreatmentResponse `json:"treatment,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func windowResponse(w *scheduling.AvailabilityWindow) WindowResponse {
	return WindowResponse{
		ID:       w.ID,
		DoctorID: w.DoctorID,
		Date:     w.Day.Format("2006-01-02"),
		StartsAt: w.StartsAt,
		EndsAt:   w.EndsAt,
		Notes:    w.Notes,
	}
}

func treatmentResponse(t *scheduling.Treatment) *TreatmentResponse {
	if t == nil {
		return nil
	}
	return &TreatmentResponse{
		ID:            t.ID,
		AppointmentID: t.AppointmentID,
		Diagnosis:     t.Diagnosis,
		Prescription:  t.Prescription,
		Notes:         t.Notes,
		DoctorNotes:   t.DoctorNotes,
	}
}

func appointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		StartsAt:  a.StartsAt,
		EndsAt:    a.EndsAt,
		Status:    string(a.Status),
		Reason:    a.Reason,
	}
	if a.CanceledBy != nil {
		tag := string(*a.CanceledBy)
		resp.CanceledBy = &tag
	}
	return resp
}

func detailResponse(d *scheduling.AppointmentDetail) AppointmentResponse {
	resp := appointmentResponse(&d.Appointment)
	if d.Doctor != nil {
		resp.Doctor = &d.Doctor.Name
	}
	if d.Patient != nil {
		resp.Patient = &d.Patient.Name
	}
	resp.Treatment = treatmentResponse(d.Treatment)
	return resp
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medibook/hospital-scheduling/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleSchedulingError translates the core's sentinel errors into the HTTP
// vocabulary. Every domain rejection carries a specific message; only truly
// unexpected failures fall through to 500.
func handleSchedulingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrWindowNotFound):
		writeError(w, http.StatusNotFound, "window_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrTreatmentNotFound):
		writeError(w, http.StatusNotFound, "treatment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
	case errors.Is(err, scheduling.ErrPastDate):
		writeError(w, http.StatusBadRequest, "past_date", err.Error())
	case errors.Is(err, scheduling.ErrInvalidReason):
		writeError(w, http.StatusBadRequest, "invalid_reason", err.Error())
	case errors.Is(err, scheduling.ErrInvalidTreatment):
		writeError(w, http.StatusBadRequest, "invalid_treatment", err.Error())
	case errors.Is(err, scheduling.ErrWindowOverlap):
		writeError(w, http.StatusConflict, "window_overlap", err.Error())
	case errors.Is(err, scheduling.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, scheduling.ErrBookingContended):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, scheduling.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, scheduling.ErrDoctorInactive):
		writeError(w, http.StatusConflict, "doctor_inactive", err.Error())
	case errors.Is(err, scheduling.ErrPatientRestricted):
		writeError(w, http.StatusForbidden, "patient_restricted", err.Error())
	case errors.Is(err, scheduling.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not_owner", err.Error())
	case errors.Is(err, scheduling.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access_denied", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parsePaging(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// Availability handlers

func addWindowHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())

		doctorID, ok := parseUUIDParam(r, "doctorID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}
		// Doctors manage their own calendar; administrators may manage any.
		if actor.Role == scheduling.RoleDoctor && actor.ID != doctorID {
			writeError(w, http.StatusForbidden, "not_owner", "doctors may only manage their own availability")
			return
		}

		var req AddWindowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		day, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		start, err := time.ParseInLocation("15:04", req.StartTime, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
			return
		}
		end, err := time.ParseInLocation("15:04", req.EndTime, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_time", "end_time must be HH:MM")
			return
		}

		backfill := req.PastBackfill && actor.Role == scheduling.RoleAdmin

		window, err := svc.AddWindow(r.Context(), doctorID, day, start, end, req.Notes, backfill)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, windowResponse(window))
	}
}

func listWindowsHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(r, "doctorID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		fromDay := time.Now()
		if from := r.URL.Query().Get("from"); from != "" {
			parsed, err := time.ParseInLocation("2006-01-02", from, time.Local)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
				return
			}
			fromDay = parsed
		}
		limit, offset := parsePaging(r)

		windows, err := svc.ListOpenWindows(r.Context(), doctorID, fromDay, limit, offset)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := make([]WindowResponse, 0, len(windows))
		for i := range windows {
			resp = append(resp, windowResponse(&windows[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func removeWindowHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())

		windowID, ok := parseUUIDParam(r, "windowID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_window_id", "windowID must be a valid UUID")
			return
		}

		if err := svc.RemoveWindow(r.Context(), windowID, actor.ID); err != nil {
			handleSchedulingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Appointment handlers

func bookAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		windowID, err := uuid.Parse(req.WindowID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_window_id", "window_id must be a valid UUID")
			return
		}

		appt, err := svc.BookAppointment(r.Context(), doctorID, actor.ID, windowID, req.Reason)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, appointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())

		id, ok := parseUUIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		tag := scheduling.ActorPatient
		if actor.Role == scheduling.RoleAdmin {
			tag = scheduling.ActorAdmin
		}

		if err := svc.CancelAppointment(r.Context(), id, actor.ID, actor.Role, tag); err != nil {
			handleSchedulingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func rescheduleAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())

		id, ok := parseUUIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		windowID, err := uuid.Parse(req.WindowID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_window_id", "window_id must be a valid UUID")
			return
		}

		appt, err := svc.RescheduleAppointment(r.Context(), id, actor.ID, windowID, req.Reason)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, appointmentResponse(appt))
	}
}

func transitionStatusHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())

		id, ok := parseUUIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := svc.TransitionStatus(r.Context(), id, actor.ID, scheduling.AppointmentStatus(req.Status)); err != nil {
			handleSchedulingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func attachTreatmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())

		id, ok := parseUUIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req TreatmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		treatment, err := svc.AttachTreatment(r.Context(), id, actor.ID, scheduling.TreatmentFields{
			Diagnosis:    req.Diagnosis,
			Prescription: req.Prescription,
			Notes:        req.Notes,
			DoctorNotes:  req.DoctorNotes,
		})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, treatmentResponse(treatment))
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())

		id, ok := parseUUIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		// Patients and doctors see only their own appointments.
		switch actor.Role {
		case scheduling.RolePatient:
			if detail.PatientID != actor.ID {
				writeError(w, http.StatusForbidden, "access_denied", "appointment belongs to another patient")
				return
			}
		case scheduling.RoleDoctor:
			if detail.DoctorID != actor.ID {
				writeError(w, http.StatusForbidden, "access_denied", "appointment belongs to another doctor")
				return
			}
		}

		writeJSON(w, http.StatusOK, detailResponse(detail))
	}
}

func listAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())
		limit, offset := parsePaging(r)

		var status *scheduling.AppointmentStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			s := scheduling.AppointmentStatus(raw)
			if !scheduling.ValidStatus(s) {
				writeError(w, http.StatusBadRequest, "invalid_status", "status must be BOOKED, COMPLETED or CANCELLED")
				return
			}
			status = &s
		}

		var (
			details []scheduling.AppointmentDetail
			err     error
		)
		switch actor.Role {
		case scheduling.RolePatient:
			details, err = svc.ListAppointmentsByPatient(r.Context(), actor.ID, status, limit, offset)
		case scheduling.RoleDoctor:
			details, err = svc.ListAppointmentsByDoctor(r.Context(), actor.ID, status, limit, offset)
		default:
			details, err = svc.ListAllAppointments(r.Context(), limit, offset)
		}
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(details))
		for i := range details {
			resp = append(resp, detailResponse(&details[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func patientHistoryHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())

		patientID, ok := parseUUIDParam(r, "patientID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientID must be a valid UUID")
			return
		}
		if actor.Role == scheduling.RolePatient && actor.ID != patientID {
			writeError(w, http.StatusForbidden, "access_denied", "patients may only view their own history")
			return
		}
		limit, offset := parsePaging(r)

		history, err := svc.GetPatientHistory(r.Context(), patientID, limit, offset)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(history))
		for i := range history {
			resp = append(resp, detailResponse(&history[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func deleteDoctorHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(r, "doctorID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		if err := svc.DeleteDoctor(r.Context(), doctorID); err != nil {
			handleSchedulingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibook/hospital-scheduling/internal/scheduling"
)

const testSecret = "test-secret"

// stubAvailability and stubBooking let handler tests script the core without
// a database. Unset functions return zero values.

type stubAvailability struct {
	addWindow func(ctx context.Context, doctorID uuid.UUID, day, start, end time.Time, notes *string, allowPastBackfill bool) (*scheduling.AvailabilityWindow, error)
	remove    func(ctx context.Context, windowID, requesterDoctorID uuid.UUID) error
	list      func(ctx context.Context, doctorID uuid.UUID, fromDay time.Time, limit, offset int) ([]scheduling.AvailabilityWindow, error)
}

func (s *stubAvailability) AddWindow(ctx context.Context, doctorID uuid.UUID, day, start, end time.Time, notes *string, allowPastBackfill bool) (*scheduling.AvailabilityWindow, error) {
	if s.addWindow == nil {
		return &scheduling.AvailabilityWindow{ID: uuid.New(), DoctorID: doctorID}, nil
	}
	return s.addWindow(ctx, doctorID, day, start, end, notes, allowPastBackfill)
}

func (s *stubAvailability) RemoveWindow(ctx context.Context, windowID, requesterDoctorID uuid.UUID) error {
	if s.remove == nil {
		return nil
	}
	return s.remove(ctx, windowID, requesterDoctorID)
}

func (s *stubAvailability) ListOpenWindows(ctx context.Context, doctorID uuid.UUID, fromDay time.Time, limit, offset int) ([]scheduling.AvailabilityWindow, error) {
	if s.list == nil {
		return nil, nil
	}
	return s.list(ctx, doctorID, fromDay, limit, offset)
}

type stubBooking struct {
	book       func(ctx context.Context, doctorID, patientID, windowID uuid.UUID, reason string) (*scheduling.Appointment, error)
	cancel     func(ctx context.Context, appointmentID, requesterID uuid.UUID, role scheduling.Role, actorTag scheduling.ActorTag) error
	reschedule func(ctx context.Context, appointmentID, patientID, newWindowID uuid.UUID, reason string) (*scheduling.Appointment, error)
	transition func(ctx context.Context, appointmentID, requesterDoctorID uuid.UUID, target scheduling.AppointmentStatus) error
	attach     func(ctx context.Context, appointmentID, requesterDoctorID uuid.UUID, fields scheduling.TreatmentFields) (*scheduling.Treatment, error)
	delete     func(ctx context.Context, doctorID uuid.UUID) error
	get        func(ctx context.Context, id uuid.UUID) (*scheduling.AppointmentDetail, error)
	byPatient  func(ctx context.Context, patientID uuid.UUID, status *scheduling.AppointmentStatus, limit, offset int) ([]scheduling.AppointmentDetail, error)
	byDoctor   func(ctx context.Context, doctorID uuid.UUID, status *scheduling.AppointmentStatus, limit, offset int) ([]scheduling.AppointmentDetail, error)
	listAll    func(ctx context.Context, limit, offset int) ([]scheduling.AppointmentDetail, error)
	history    func(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]scheduling.AppointmentDetail, error)
}

func (s *stubBooking) BookAppointment(ctx context.Context, doctorID, patientID, windowID uuid.UUID, reason string) (*scheduling.Appointment, error) {
	if s.book == nil {
		return &scheduling.Appointment{ID: uuid.New(), DoctorID: doctorID, PatientID: patientID, Status: scheduling.StatusBooked, Reason: reason}, nil
	}
	return s.book(ctx, doctorID, patientID, windowID, reason)
}

func (s *stubBooking) CancelAppointment(ctx context.Context, appointmentID, requesterID uuid.UUID, role scheduling.Role, actorTag scheduling.ActorTag) error {
	if s.cancel == nil {
		return nil
	}
	return s.cancel(ctx, appointmentID, requesterID, role, actorTag)
}

func (s *stubBooking) RescheduleAppointment(ctx context.Context, appointmentID, patientID, newWindowID uuid.UUID, reason string) (*scheduling.Appointment, error) {
	if s.reschedule == nil {
		return &scheduling.Appointment{ID: uuid.New(), PatientID: patientID, Status: scheduling.StatusBooked}, nil
	}
	return s.reschedule(ctx, appointmentID, patientID, newWindowID, reason)
}

func (s *stubBooking) TransitionStatus(ctx context.Context, appointmentID, requesterDoctorID uuid.UUID, target scheduling.AppointmentStatus) error {
	if s.transition == nil {
		return nil
	}
	return s.transition(ctx, appointmentID, requesterDoctorID, target)
}

func (s *stubBooking) AttachTreatment(ctx context.Context, appointmentID, requesterDoctorID uuid.UUID, fields scheduling.TreatmentFields) (*scheduling.Treatment, error) {
	if s.attach == nil {
		return &scheduling.Treatment{ID: uuid.New(), AppointmentID: appointmentID, Diagnosis: fields.Diagnosis, Prescription: fields.Prescription}, nil
	}
	return s.attach(ctx, appointmentID, requesterDoctorID, fields)
}

func (s *stubBooking) DeleteDoctor(ctx context.Context, doctorID uuid.UUID) error {
	if s.delete == nil {
		return nil
	}
	return s.delete(ctx, doctorID)
}

func (s *stubBooking) GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.AppointmentDetail, error) {
	if s.get == nil {
		return nil, scheduling.ErrAppointmentNotFound
	}
	return s.get(ctx, id)
}

func (s *stubBooking) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, status *scheduling.AppointmentStatus, limit, offset int) ([]scheduling.AppointmentDetail, error) {
	if s.byPatient == nil {
		return nil, nil
	}
	return s.byPatient(ctx, patientID, status, limit, offset)
}

func (s *stubBooking) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, status *scheduling.AppointmentStatus, limit, offset int) ([]scheduling.AppointmentDetail, error) {
	if s.byDoctor == nil {
		return nil, nil
	}
	return s.byDoctor(ctx, doctorID, status, limit, offset)
}

func (s *stubBooking) ListAllAppointments(ctx context.Context, limit, offset int) ([]scheduling.AppointmentDetail, error) {
	if s.listAll == nil {
		return nil, nil
	}
	return s.listAll(ctx, limit, offset)
}

func (s *stubBooking) GetPatientHistory(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]scheduling.AppointmentDetail, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history(ctx, patientID, limit, offset)
}

func newTestRouter(t *testing.T, booking BookingService, availability AvailabilityService) http.Handler {
	t.Helper()
	if booking == nil {
		booking = &stubBooking{}
	}
	if availability == nil {
		availability = &stubAvailability{}
	}
	return NewRouter(RouterConfig{
		Booking:      booking,
		Availability: availability,
		JWTSecret:    testSecret,
		Env:          "test",
		Version:      "test",
		Logger:       zerolog.Nop(),
	})
}

func signToken(t *testing.T, secret string, subject uuid.UUID, role string, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  subject.String(),
		"role": role,
		"exp":  time.Now().Add(expiresIn).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// Auth

func TestAuthRejectsMissingToken(t *testing.T) {
	h := newTestRouter(t, nil, nil)
	rec := doRequest(t, h, "GET", "/appointments", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != "missing_token" {
		t.Errorf("error = %q, want missing_token", resp.Error)
	}
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	h := newTestRouter(t, nil, nil)
	token := signToken(t, "some-other-secret", uuid.New(), "PATIENT", time.Hour)
	rec := doRequest(t, h, "GET", "/appointments", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	h := newTestRouter(t, nil, nil)
	token := signToken(t, testSecret, uuid.New(), "PATIENT", -time.Minute)
	rec := doRequest(t, h, "GET", "/appointments", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthRejectsUnknownRole(t *testing.T) {
	h := newTestRouter(t, nil, nil)
	token := signToken(t, testSecret, uuid.New(), "JANITOR", time.Hour)
	rec := doRequest(t, h, "GET", "/appointments", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRoleBlocksDoctorBooking(t *testing.T) {
	h := newTestRouter(t, nil, nil)
	token := signToken(t, testSecret, uuid.New(), "DOCTOR", time.Hour)
	rec := doRequest(t, h, "POST", "/appointments", token, BookAppointmentRequest{
		DoctorID: uuid.New().String(),
		WindowID: uuid.New().String(),
		Reason:   "persistent cough",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

// Booking

func TestBookAppointmentUsesTokenIdentity(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	windowID := uuid.New()

	var gotPatient uuid.UUID
	booking := &stubBooking{
		book: func(ctx context.Context, dID, pID, wID uuid.UUID, reason string) (*scheduling.Appointment, error) {
			gotPatient = pID
			return &scheduling.Appointment{
				ID: uuid.New(), DoctorID: dID, PatientID: pID,
				Status: scheduling.StatusBooked, Reason: reason,
			}, nil
		},
	}
	h := newTestRouter(t, booking, nil)

	token := signToken(t, testSecret, patientID, "PATIENT", time.Hour)
	rec := doRequest(t, h, "POST", "/appointments", token, BookAppointmentRequest{
		DoctorID: doctorID.String(),
		WindowID: windowID.String(),
		Reason:   "persistent cough",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if gotPatient != patientID {
		t.Errorf("booked for patient %s, want token subject %s", gotPatient, patientID)
	}

	var resp AppointmentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "BOOKED" {
		t.Errorf("status = %q, want BOOKED", resp.Status)
	}
}

func TestBookAppointmentConflictMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantTag  string
	}{
		{"slot taken", scheduling.ErrSlotTaken, http.StatusConflict, "slot_taken"},
		{"contended", scheduling.ErrBookingContended, http.StatusConflict, "slot_being_booked"},
		{"restricted", scheduling.ErrPatientRestricted, http.StatusForbidden, "patient_restricted"},
		{"short reason", scheduling.ErrInvalidReason, http.StatusBadRequest, "invalid_reason"},
		{"no doctor", scheduling.ErrDoctorNotFound, http.StatusNotFound, "doctor_not_found"},
		{"inactive", scheduling.ErrDoctorInactive, http.StatusConflict, "doctor_inactive"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			booking := &stubBooking{
				book: func(ctx context.Context, dID, pID, wID uuid.UUID, reason string) (*scheduling.Appointment, error) {
					return nil, tc.err
				},
			}
			h := newTestRouter(t, booking, nil)
			token := signToken(t, testSecret, uuid.New(), "PATIENT", time.Hour)
			rec := doRequest(t, h, "POST", "/appointments", token, BookAppointmentRequest{
				DoctorID: uuid.New().String(),
				WindowID: uuid.New().String(),
				Reason:   "persistent cough",
			})

			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if resp := decodeError(t, rec); resp.Error != tc.wantTag {
				t.Errorf("error = %q, want %q", resp.Error, tc.wantTag)
			}
		})
	}
}

// Cancellation

func TestCancelTagsFollowRole(t *testing.T) {
	apptID := uuid.New()

	var gotTag scheduling.ActorTag
	var gotRole scheduling.Role
	booking := &stubBooking{
		cancel: func(ctx context.Context, id, requester uuid.UUID, role scheduling.Role, tag scheduling.ActorTag) error {
			gotRole = role
			gotTag = tag
			return nil
		},
	}
	h := newTestRouter(t, booking, nil)

	patientToken := signToken(t, testSecret, uuid.New(), "PATIENT", time.Hour)
	rec := doRequest(t, h, "POST", "/appointments/"+apptID.String()+"/cancel", patientToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("patient cancel status = %d, want 204", rec.Code)
	}
	if gotRole != scheduling.RolePatient || gotTag != scheduling.ActorPatient {
		t.Errorf("patient cancel passed role=%s tag=%s", gotRole, gotTag)
	}

	adminToken := signToken(t, testSecret, uuid.New(), "ADMIN", time.Hour)
	rec = doRequest(t, h, "POST", "/appointments/"+apptID.String()+"/cancel", adminToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin cancel status = %d, want 204", rec.Code)
	}
	if gotRole != scheduling.RoleAdmin || gotTag != scheduling.ActorAdmin {
		t.Errorf("admin cancel passed role=%s tag=%s", gotRole, gotTag)
	}
}

func TestCancelDoubleCancelConflict(t *testing.T) {
	booking := &stubBooking{
		cancel: func(ctx context.Context, id, requester uuid.UUID, role scheduling.Role, tag scheduling.ActorTag) error {
			return scheduling.ErrInvalidTransition
		},
	}
	h := newTestRouter(t, booking, nil)
	token := signToken(t, testSecret, uuid.New(), "PATIENT", time.Hour)
	rec := doRequest(t, h, "POST", "/appointments/"+uuid.New().String()+"/cancel", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != "invalid_status_transition" {
		t.Errorf("error = %q, want invalid_status_transition", resp.Error)
	}
}

// Availability

func TestAddWindowDoctorCannotTouchOthers(t *testing.T) {
	called := false
	availability := &stubAvailability{
		addWindow: func(ctx context.Context, doctorID uuid.UUID, day, start, end time.Time, notes *string, allowPastBackfill bool) (*scheduling.AvailabilityWindow, error) {
			called = true
			return &scheduling.AvailabilityWindow{ID: uuid.New(), DoctorID: doctorID}, nil
		},
	}
	h := newTestRouter(t, nil, availability)

	token := signToken(t, testSecret, uuid.New(), "DOCTOR", time.Hour)
	otherDoctor := uuid.New()
	rec := doRequest(t, h, "POST", "/doctors/"+otherDoctor.String()+"/windows", token, AddWindowRequest{
		Date:      "2026-09-10",
		StartTime: "09:00",
		EndTime:   "12:00",
	})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if called {
		t.Error("service was called despite ownership rejection")
	}
}

func TestAddWindowBackfillOnlyForAdmin(t *testing.T) {
	var gotBackfill bool
	availability := &stubAvailability{
		addWindow: func(ctx context.Context, doctorID uuid.UUID, day, start, end time.Time, notes *string, allowPastBackfill bool) (*scheduling.AvailabilityWindow, error) {
			gotBackfill = allowPastBackfill
			return &scheduling.AvailabilityWindow{ID: uuid.New(), DoctorID: doctorID}, nil
		},
	}
	h := newTestRouter(t, nil, availability)

	doctorID := uuid.New()
	req := AddWindowRequest{
		Date:         "2026-09-10",
		StartTime:    "09:00",
		EndTime:      "12:00",
		PastBackfill: true,
	}

	doctorToken := signToken(t, testSecret, doctorID, "DOCTOR", time.Hour)
	rec := doRequest(t, h, "POST", "/doctors/"+doctorID.String()+"/windows", doctorToken, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("doctor add status = %d, want 201", rec.Code)
	}
	if gotBackfill {
		t.Error("doctor request must not carry backfill override")
	}

	adminToken := signToken(t, testSecret, uuid.New(), "ADMIN", time.Hour)
	rec = doRequest(t, h, "POST", "/doctors/"+doctorID.String()+"/windows", adminToken, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin add status = %d, want 201", rec.Code)
	}
	if !gotBackfill {
		t.Error("admin backfill override was dropped")
	}
}

func TestAddWindowRejectsBadTimes(t *testing.T) {
	h := newTestRouter(t, nil, nil)
	doctorID := uuid.New()
	token := signToken(t, testSecret, doctorID, "DOCTOR", time.Hour)

	rec := doRequest(t, h, "POST", "/doctors/"+doctorID.String()+"/windows", token, AddWindowRequest{
		Date:      "10/09/2026",
		StartTime: "09:00",
		EndTime:   "12:00",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, "POST", "/doctors/"+doctorID.String()+"/windows", token, AddWindowRequest{
		Date:      "2026-09-10",
		StartTime: "9am",
		EndTime:   "12:00",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad time status = %d, want 400", rec.Code)
	}
}

func TestListWindowsOpenToAllRoles(t *testing.T) {
	doctorID := uuid.New()
	availability := &stubAvailability{
		list: func(ctx context.Context, dID uuid.UUID, fromDay time.Time, limit, offset int) ([]scheduling.AvailabilityWindow, error) {
			return []scheduling.AvailabilityWindow{{ID: uuid.New(), DoctorID: dID}}, nil
		},
	}
	h := newTestRouter(t, nil, availability)

	for _, role := range []string{"PATIENT", "DOCTOR", "ADMIN"} {
		token := signToken(t, testSecret, uuid.New(), role, time.Hour)
		rec := doRequest(t, h, "GET", "/doctors/"+doctorID.String()+"/windows", token, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("role %s: status = %d, want 200", role, rec.Code)
		}
	}
}

// Visibility

func TestGetAppointmentScopedToOwners(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	apptID := uuid.New()

	booking := &stubBooking{
		get: func(ctx context.Context, id uuid.UUID) (*scheduling.AppointmentDetail, error) {
			return &scheduling.AppointmentDetail{
				Appointment: scheduling.Appointment{
					ID: apptID, DoctorID: doctorID, PatientID: patientID,
					Status: scheduling.StatusBooked, Reason: "persistent cough",
				},
			}, nil
		},
	}
	h := newTestRouter(t, booking, nil)
	path := "/appointments/" + apptID.String()

	ownToken := signToken(t, testSecret, patientID, "PATIENT", time.Hour)
	if rec := doRequest(t, h, "GET", path, ownToken, nil); rec.Code != http.StatusOK {
		t.Errorf("owner read status = %d, want 200", rec.Code)
	}

	strangerToken := signToken(t, testSecret, uuid.New(), "PATIENT", time.Hour)
	if rec := doRequest(t, h, "GET", path, strangerToken, nil); rec.Code != http.StatusForbidden {
		t.Errorf("stranger read status = %d, want 403", rec.Code)
	}

	otherDoctorToken := signToken(t, testSecret, uuid.New(), "DOCTOR", time.Hour)
	if rec := doRequest(t, h, "GET", path, otherDoctorToken, nil); rec.Code != http.StatusForbidden {
		t.Errorf("other doctor read status = %d, want 403", rec.Code)
	}

	adminToken := signToken(t, testSecret, uuid.New(), "ADMIN", time.Hour)
	if rec := doRequest(t, h, "GET", path, adminToken, nil); rec.Code != http.StatusOK {
		t.Errorf("admin read status = %d, want 200", rec.Code)
	}
}

func TestListAppointmentsDispatchesByRole(t *testing.T) {
	patientID := uuid.New()

	var patientCalls, doctorCalls, allCalls int
	booking := &stubBooking{
		byPatient: func(ctx context.Context, pID uuid.UUID, status *scheduling.AppointmentStatus, limit, offset int) ([]scheduling.AppointmentDetail, error) {
			patientCalls++
			if pID != patientID {
				t.Errorf("listed for patient %s, want token subject %s", pID, patientID)
			}
			return nil, nil
		},
		byDoctor: func(ctx context.Context, dID uuid.UUID, status *scheduling.AppointmentStatus, limit, offset int) ([]scheduling.AppointmentDetail, error) {
			doctorCalls++
			return nil, nil
		},
		listAll: func(ctx context.Context, limit, offset int) ([]scheduling.AppointmentDetail, error) {
			allCalls++
			return nil, nil
		},
	}
	h := newTestRouter(t, booking, nil)

	doRequest(t, h, "GET", "/appointments", signToken(t, testSecret, patientID, "PATIENT", time.Hour), nil)
	doRequest(t, h, "GET", "/appointments", signToken(t, testSecret, uuid.New(), "DOCTOR", time.Hour), nil)
	doRequest(t, h, "GET", "/appointments", signToken(t, testSecret, uuid.New(), "ADMIN", time.Hour), nil)

	if patientCalls != 1 || doctorCalls != 1 || allCalls != 1 {
		t.Errorf("dispatch counts patient=%d doctor=%d all=%d, want 1 each", patientCalls, doctorCalls, allCalls)
	}
}

func TestListAppointmentsRejectsBadStatus(t *testing.T) {
	h := newTestRouter(t, nil, nil)
	token := signToken(t, testSecret, uuid.New(), "PATIENT", time.Hour)
	rec := doRequest(t, h, "GET", "/appointments?status=PENDING", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPatientHistoryScopedToSelf(t *testing.T) {
	patientID := uuid.New()
	h := newTestRouter(t, nil, nil)

	ownToken := signToken(t, testSecret, patientID, "PATIENT", time.Hour)
	rec := doRequest(t, h, "GET", "/patients/"+patientID.String()+"/history", ownToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("own history status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, h, "GET", "/patients/"+uuid.New().String()+"/history", ownToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign history status = %d, want 403", rec.Code)
	}
}

// Administration

func TestDeleteDoctorAdminOnly(t *testing.T) {
	var deleted uuid.UUID
	booking := &stubBooking{
		delete: func(ctx context.Context, doctorID uuid.UUID) error {
			deleted = doctorID
			return nil
		},
	}
	h := newTestRouter(t, booking, nil)
	doctorID := uuid.New()

	doctorToken := signToken(t, testSecret, doctorID, "DOCTOR", time.Hour)
	rec := doRequest(t, h, "DELETE", "/doctors/"+doctorID.String(), doctorToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("doctor delete status = %d, want 403", rec.Code)
	}

	adminToken := signToken(t, testSecret, uuid.New(), "ADMIN", time.Hour)
	rec = doRequest(t, h, "DELETE", "/doctors/"+doctorID.String(), adminToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin delete status = %d, want 204", rec.Code)
	}
	if deleted != doctorID {
		t.Errorf("deleted %s, want %s", deleted, doctorID)
	}
}

// Treatment

func TestAttachTreatmentMapsValidation(t *testing.T) {
	booking := &stubBooking{
		attach: func(ctx context.Context, id, requester uuid.UUID, fields scheduling.TreatmentFields) (*scheduling.Treatment, error) {
			return nil, scheduling.ErrInvalidTreatment
		},
	}
	h := newTestRouter(t, booking, nil)
	token := signToken(t, testSecret, uuid.New(), "DOCTOR", time.Hour)
	rec := doRequest(t, h, "PUT", "/appointments/"+uuid.New().String()+"/treatment", token, TreatmentRequest{
		Diagnosis:    "flu",
		Prescription: "rest",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != "invalid_treatment" {
		t.Errorf("error = %q, want invalid_treatment", resp.Error)
	}
}

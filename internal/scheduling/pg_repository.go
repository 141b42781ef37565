package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes that mean the schema-level overlap guards fired.
const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Email,
		&d.DepartmentID,
		&d.Qualification,
		&d.Bio,
		&d.Blacklisted,
		&d.Active,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.DateOfBirth,
		&p.Gender,
		&p.Address,
		&p.Blacklisted,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanWindow(row pgx.Row) (*AvailabilityWindow, error) {
	var w AvailabilityWindow

	err := row.Scan(
		&w.ID,
		&w.DoctorID,
		&w.Day,
		&w.StartsAt,
		&w.EndsAt,
		&w.Notes,
		&w.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		return nil, err
	}

	return &w, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var canceledBy *string

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.StartsAt,
		&a.EndsAt,
		&a.Status,
		&a.Reason,
		&canceledBy,
		&a.ReminderSentAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if canceledBy != nil {
		tag := ActorTag(*canceledBy)
		a.CanceledBy = &tag
	}
	return &a, nil
}

func scanTreatment(row pgx.Row) (*Treatment, error) {
	var t Treatment

	err := row.Scan(
		&t.ID,
		&t.AppointmentID,
		&t.Diagnosis,
		&t.Prescription,
		&t.Notes,
		&t.DoctorNotes,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTreatmentNotFound
		}
		return nil, err
	}

	return &t, nil
}

func isOverlapConstraint(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation || pgErr.Code == pgExclusionViolation
	}
	return false
}

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, department_id, qualification, bio, blacklisted, active, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, date_of_birth, gender, address, blacklisted, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) DeactivateDoctor(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctors
		SET active = false,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *PgRepository) CreateWindow(ctx context.Context, w AvailabilityWindow) (*AvailabilityWindow, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_windows (id, doctor_id, day, starts_at, ends_at, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, doctor_id, day, starts_at, ends_at, notes, created_at
	`, id, w.DoctorID, w.Day, w.StartsAt, w.EndsAt, w.Notes)

	created, err := scanWindow(row)
	if err != nil {
		if isOverlapConstraint(err) {
			return nil, ErrWindowOverlap
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetWindowByID(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, day, starts_at, ends_at, notes, created_at
		FROM availability_windows
		WHERE id = $1
	`, id)
	return scanWindow(row)
}

func (r *PgRepository) DeleteWindow(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_windows
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWindowNotFound
	}
	return nil
}

func (r *PgRepository) ListWindowsForDay(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, day, starts_at, ends_at, notes, created_at
		FROM availability_windows
		WHERE doctor_id = $1 AND day = $2
		ORDER BY starts_at
	`, doctorID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectWindows(rows)
}

func (r *PgRepository) ListWindowsFrom(ctx context.Context, doctorID uuid.UUID, fromDay time.Time, limit, offset int) ([]AvailabilityWindow, error) {
	// (day, starts_at) ordering is load-bearing for first-available semantics.
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, day, starts_at, ends_at, notes, created_at
		FROM availability_windows
		WHERE doctor_id = $1 AND day >= $2
		ORDER BY day, starts_at
		LIMIT $3 OFFSET $4
	`, doctorID, fromDay, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectWindows(rows)
}

func collectWindows(rows pgx.Rows) ([]AvailabilityWindow, error) {
	var result []AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ListActiveAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_id, starts_at, ends_at, status, reason, canceled_by, reminder_sent_at, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1 AND status <> 'CANCELLED'
		ORDER BY starts_at
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListBookedByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_id, starts_at, ends_at, status, reason, canceled_by, reminder_sent_at, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1 AND status = 'BOOKED'
		ORDER BY starts_at
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) CreateBookedAppointment(ctx context.Context, doctorID, patientID uuid.UUID, startsAt, endsAt time.Time, reason string) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, starts_at, ends_at, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'BOOKED', $6, now(), now())
		RETURNING id, doctor_id, patient_id, starts_at, ends_at, status, reason, canceled_by, reminder_sent_at, created_at, updated_at
	`, id, doctorID, patientID, startsAt, endsAt, reason)

	created, err := scanAppointment(row)
	if err != nil {
		// A lost booking race surfaces here as a constraint violation; the
		// insert is a single statement so nothing is left behind.
		if isOverlapConstraint(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, patient_id, starts_at, ends_at, status, reason, canceled_by, reminder_sent_at, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, canceledBy *ActorTag) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    canceled_by = COALESCE($4, canceled_by),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, doctor_id, patient_id, starts_at, ends_at, status, reason, canceled_by, reminder_sent_at, created_at, updated_at
	`, id, to, from, canceledBy)

	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := AppointmentDetail{Appointment: *appt}

	if doctor, err := r.GetDoctorByID(ctx, appt.DoctorID); err == nil {
		detail.Doctor = doctor
	} else if !errors.Is(err, ErrDoctorNotFound) {
		return nil, err
	}

	if patient, err := r.GetPatientByID(ctx, appt.PatientID); err == nil {
		detail.Patient = patient
	} else if !errors.Is(err, ErrPatientNotFound) {
		return nil, err
	}

	if treatment, err := r.GetTreatmentByAppointment(ctx, appt.ID); err == nil {
		detail.Treatment = treatment
	} else if !errors.Is(err, ErrTreatmentNotFound) {
		return nil, err
	}

	return &detail, nil
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, status *AppointmentStatus, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_id, starts_at, ends_at, status, reason, canceled_by, reminder_sent_at, created_at, updated_at
		FROM appointments
		WHERE patient_id = $1
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY starts_at DESC
		LIMIT $3 OFFSET $4
	`, patientID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.hydrate(ctx, rows)
}

func (r *PgRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, status *AppointmentStatus, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_id, starts_at, ends_at, status, reason, canceled_by, reminder_sent_at, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY starts_at
		LIMIT $3 OFFSET $4
	`, doctorID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.hydrate(ctx, rows)
}

func (r *PgRepository) ListAllAppointments(ctx context.Context, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_id, starts_at, ends_at, status, reason, canceled_by, reminder_sent_at, created_at, updated_at
		FROM appointments
		ORDER BY starts_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.hydrate(ctx, rows)
}

func (r *PgRepository) hydrate(ctx context.Context, rows pgx.Rows) ([]AppointmentDetail, error) {
	appts, err := collectAppointments(rows)
	if err != nil {
		return nil, err
	}

	result := make([]AppointmentDetail, 0, len(appts))
	for _, a := range appts {
		detail, err := r.GetAppointmentDetail(ctx, a.ID)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			return nil, err
		}
		result = append(result, *detail)
	}
	return result, nil
}

func (r *PgRepository) GetTreatmentByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Treatment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, diagnosis, prescription, notes, doctor_notes, created_at, updated_at
		FROM treatments
		WHERE appointment_id = $1
	`, appointmentID)
	return scanTreatment(row)
}

func (r *PgRepository) UpsertTreatment(ctx context.Context, t Treatment) (*Treatment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO treatments (id, appointment_id, diagnosis, prescription, notes, doctor_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (appointment_id) DO UPDATE
		SET diagnosis = EXCLUDED.diagnosis,
		    prescription = EXCLUDED.prescription,
		    notes = EXCLUDED.notes,
		    doctor_notes = EXCLUDED.doctor_notes,
		    updated_at = now()
		RETURNING id, appointment_id, diagnosis, prescription, notes, doctor_notes, created_at, updated_at
	`, id, t.AppointmentID, t.Diagnosis, t.Prescription, t.Notes, t.DoctorNotes)

	return scanTreatment(row)
}

func (r *PgRepository) FindUpcomingUnreminded(ctx context.Context, from, until time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_id, starts_at, ends_at, status, reason, canceled_by, reminder_sent_at, created_at, updated_at
		FROM appointments
		WHERE status = 'BOOKED'
		  AND reminder_sent_at IS NULL
		  AND starts_at >= $1
		  AND starts_at < $2
	`, from, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent_at = $2,
		    updated_at = now()
		WHERE id = $1
		  AND reminder_sent_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

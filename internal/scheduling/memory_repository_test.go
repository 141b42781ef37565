package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepository is an in-memory Repository used by the service tests. It
// enforces the same schema-level guards as the Postgres implementation: the
// per-doctor window range exclusion and the non-cancelled (doctor, starts_at)
// uniqueness that backstop the two insert races.
type memRepository struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]*Doctor
	patients     map[uuid.UUID]*Patient
	windows      map[uuid.UUID]*AvailabilityWindow
	appointments map[uuid.UUID]*Appointment
	treatments   map[uuid.UUID]*Treatment // keyed by appointment ID
	events       []EventLog
}

func newMemRepository() *memRepository {
	return &memRepository{
		doctors:      make(map[uuid.UUID]*Doctor),
		patients:     make(map[uuid.UUID]*Patient),
		windows:      make(map[uuid.UUID]*AvailabilityWindow),
		appointments: make(map[uuid.UUID]*Appointment),
		treatments:   make(map[uuid.UUID]*Treatment),
	}
}

func (m *memRepository) addDoctor(name string) *Doctor {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &Doctor{ID: uuid.New(), Name: name, Email: name + "@hospital.test", Active: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.doctors[d.ID] = d
	return d
}

func (m *memRepository) addPatient(name string, blacklisted bool) *Patient {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Patient{ID: uuid.New(), Name: name, Email: name + "@mail.test", Blacklisted: blacklisted, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.patients[p.ID] = p
	return p
}

func (m *memRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepository) DeactivateDoctor(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return ErrDoctorNotFound
	}
	d.Active = false
	return nil
}

func (m *memRepository) CreateWindow(_ context.Context, w AvailabilityWindow) (*AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.windows {
		if existing.DoctorID == w.DoctorID &&
			Overlaps(w.StartsAt, w.EndsAt, existing.StartsAt, existing.EndsAt) {
			return nil, ErrWindowOverlap
		}
	}
	w.ID = uuid.New()
	w.CreatedAt = time.Now()
	cp := w
	m.windows[w.ID] = &cp
	return &w, nil
}

func (m *memRepository) GetWindowByID(_ context.Context, id uuid.UUID) (*AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok {
		return nil, ErrWindowNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memRepository) DeleteWindow(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.windows[id]; !ok {
		return ErrWindowNotFound
	}
	delete(m.windows, id)
	return nil
}

func (m *memRepository) ListWindowsForDay(_ context.Context, doctorID uuid.UUID, day time.Time) ([]AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []AvailabilityWindow
	for _, w := range m.windows {
		if w.DoctorID == doctorID && w.Day.Equal(day) {
			result = append(result, *w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartsAt.Before(result[j].StartsAt) })
	return result, nil
}

func (m *memRepository) ListWindowsFrom(_ context.Context, doctorID uuid.UUID, fromDay time.Time, limit, offset int) ([]AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []AvailabilityWindow
	for _, w := range m.windows {
		if w.DoctorID == doctorID && !w.Day.Before(fromDay) {
			result = append(result, *w)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Day.Equal(result[j].Day) {
			return result[i].Day.Before(result[j].Day)
		}
		return result[i].StartsAt.Before(result[j].StartsAt)
	})
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *memRepository) ListActiveAppointmentsByDoctor(_ context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Status != StatusCancelled {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartsAt.Before(result[j].StartsAt) })
	return result, nil
}

func (m *memRepository) ListBookedByDoctor(_ context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Status == StatusBooked {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *memRepository) CreateBookedAppointment(_ context.Context, doctorID, patientID uuid.UUID, startsAt, endsAt time.Time, reason string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Status != StatusCancelled && a.StartsAt.Equal(startsAt) {
			return nil, ErrSlotTaken
		}
	}
	now := time.Now()
	a := &Appointment{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: patientID,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		Status:    StatusBooked,
		Reason:    reason,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.appointments[a.ID] = a
	cp := *a
	return &cp, nil
}

func (m *memRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, canceledBy *ActorTag) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	if canceledBy != nil {
		tag := *canceledBy
		a.CanceledBy = &tag
	}
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := m.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := AppointmentDetail{Appointment: *appt}
	if d, err := m.GetDoctorByID(ctx, appt.DoctorID); err == nil {
		detail.Doctor = d
	}
	if p, err := m.GetPatientByID(ctx, appt.PatientID); err == nil {
		detail.Patient = p
	}
	if t, err := m.GetTreatmentByAppointment(ctx, appt.ID); err == nil {
		detail.Treatment = t
	}
	return &detail, nil
}

func (m *memRepository) listDetails(ctx context.Context, match func(*Appointment) bool, newestFirst bool, limit, offset int) ([]AppointmentDetail, error) {
	m.mu.Lock()
	var appts []Appointment
	for _, a := range m.appointments {
		if match(a) {
			appts = append(appts, *a)
		}
	}
	m.mu.Unlock()

	sort.Slice(appts, func(i, j int) bool {
		if newestFirst {
			return appts[i].StartsAt.After(appts[j].StartsAt)
		}
		return appts[i].StartsAt.Before(appts[j].StartsAt)
	})
	if offset >= len(appts) {
		return nil, nil
	}
	appts = appts[offset:]
	if len(appts) > limit {
		appts = appts[:limit]
	}

	result := make([]AppointmentDetail, 0, len(appts))
	for _, a := range appts {
		detail, err := m.GetAppointmentDetail(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, *detail)
	}
	return result, nil
}

func (m *memRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, status *AppointmentStatus, limit, offset int) ([]AppointmentDetail, error) {
	return m.listDetails(ctx, func(a *Appointment) bool {
		return a.PatientID == patientID && (status == nil || a.Status == *status)
	}, true, limit, offset)
}

func (m *memRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, status *AppointmentStatus, limit, offset int) ([]AppointmentDetail, error) {
	return m.listDetails(ctx, func(a *Appointment) bool {
		return a.DoctorID == doctorID && (status == nil || a.Status == *status)
	}, false, limit, offset)
}

func (m *memRepository) ListAllAppointments(ctx context.Context, limit, offset int) ([]AppointmentDetail, error) {
	return m.listDetails(ctx, func(*Appointment) bool { return true }, true, limit, offset)
}

func (m *memRepository) GetTreatmentByAppointment(_ context.Context, appointmentID uuid.UUID) (*Treatment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.treatments[appointmentID]
	if !ok {
		return nil, ErrTreatmentNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memRepository) UpsertTreatment(_ context.Context, t Treatment) (*Treatment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if existing, ok := m.treatments[t.AppointmentID]; ok {
		existing.Diagnosis = t.Diagnosis
		existing.Prescription = t.Prescription
		existing.Notes = t.Notes
		existing.DoctorNotes = t.DoctorNotes
		existing.UpdatedAt = now
		cp := *existing
		return &cp, nil
	}
	t.ID = uuid.New()
	t.CreatedAt = now
	t.UpdatedAt = now
	cp := t
	m.treatments[t.AppointmentID] = &cp
	out := t
	return &out, nil
}

func (m *memRepository) FindUpcomingUnreminded(_ context.Context, from, until time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Appointment
	for _, a := range m.appointments {
		if a.Status == StatusBooked && a.ReminderSentAt == nil &&
			!a.StartsAt.Before(from) && a.StartsAt.Before(until) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *memRepository) MarkReminded(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.ReminderSentAt != nil {
		return ErrAppointmentNotFound
	}
	t := at
	a.ReminderSentAt = &t
	return nil
}

func (m *memRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

func (m *memRepository) countTreatments() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.treatments)
}

// memLocker serializes per doctor with in-process mutexes, standing in for
// the Redis doctor lock in tests.
type memLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *memLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	dl, ok := l.locks[doctorID]
	if !ok {
		dl = &sync.Mutex{}
		l.locks[doctorID] = dl
	}
	l.mu.Unlock()

	dl.Lock()
	defer dl.Unlock()
	return fn(ctx)
}

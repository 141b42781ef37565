package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibook/hospital-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 10)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	deptIDs, err := seedDepartments(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed departments: %v", err)
	}
	doctorIDs, err := seedDoctors(context.Background(), pool, deptIDs, envCount("SEED_DOCTORS", 40))
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, envCount("SEED_PATIENTS", 500)); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedWindows(context.Background(), pool, doctorIDs); err != nil {
		log.Fatalf("seed windows: %v", err)
	}

	log.Println("seed complete")
}

func envCount(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func seedDepartments(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	departments := []struct {
		name, description string
	}{
		{"Cardiology", "Heart and cardiovascular system"},
		{"Oncology", "Cancer treatment and care"},
		{"General", "General medicine and primary care"},
		{"Neurology", "Brain and nervous system"},
		{"Orthopedics", "Bones, joints, and muscles"},
		{"Pediatrics", "Care for infants and children"},
		{"Dermatology", "Skin conditions"},
	}

	log.Printf("seeding %d departments", len(departments))

	ids := make([]uuid.UUID, 0, len(departments))
	for _, d := range departments {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO departments (id, name, description, created_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (name) DO NOTHING
		`, id, d.name, d.description)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, deptIDs []uuid.UUID, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	qualifications := []string{"MBBS", "MBBS, MD", "MBBS, MS", "MD, DM", "MBBS, DNB"}

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		dept := deptIDs[gofakeit.Number(0, len(deptIDs)-1)]
		qualification := qualifications[gofakeit.Number(0, len(qualifications)-1)]

		_, err := pool.Exec(ctx, `
			INSERT INTO doctors (id, name, email, department_id, qualification, bio, blacklisted, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, false, true, now(), now())
		`, id, "Dr. "+gofakeit.Name(), fmt.Sprintf("doc%d@%s", i, gofakeit.DomainName()), dept, qualification, gofakeit.Sentence(12))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	genders := []string{"male", "female", "other"}

	for i := 0; i < count; i++ {
		dob := gofakeit.DateRange(
			time.Date(1940, 1, 1, 0, 0, 0, 0, time.Local),
			time.Date(2010, 12, 31, 0, 0, 0, 0, time.Local),
		)
		gender := genders[gofakeit.Number(0, len(genders)-1)]

		// Roughly 2% of seeded patients are blacklisted so the restriction
		// path shows up in manual testing.
		blacklisted := gofakeit.Number(0, 49) == 0

		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, name, email, phone, date_of_birth, gender, address, blacklisted, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		`, uuid.New(), gofakeit.Name(), fmt.Sprintf("pt%d@%s", i, gofakeit.DomainName()), gofakeit.Phone(), dob, gender, gofakeit.Address().Address, blacklisted)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedWindows(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	log.Printf("seeding windows for %d doctors", len(doctorIDs))

	today := time.Now()
	for _, doctorID := range doctorIDs {
		// Two non-overlapping windows per day for the next two weeks.
		for d := 1; d <= 14; d++ {
			day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.Local).AddDate(0, 0, d)
			for _, span := range [][2]int{{9, 12}, {14, 17}} {
				startsAt := day.Add(time.Duration(span[0]) * time.Hour)
				endsAt := day.Add(time.Duration(span[1]) * time.Hour)
				_, err := pool.Exec(ctx, `
					INSERT INTO availability_windows (id, doctor_id, day, starts_at, ends_at, notes, created_at)
					VALUES ($1, $2, $3, $4, $5, NULL, now())
					ON CONFLICT DO NOTHING
				`, uuid.New(), doctorID, day, startsAt, endsAt)
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

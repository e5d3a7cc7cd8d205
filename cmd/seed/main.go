package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/irongopher75/Techfest-Server/internal/security"
	"github.com/irongopher75/Techfest-Server/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	adminEmail    = "admin@techfest.local"
	adminPassword = "admin123"
)

func main() {
	_ = godotenv.Load()

	env := getEnv("FEST_ENV", "dev")
	if env != "dev" && env != "test" {
		log.Fatalf("refusing to seed: FEST_ENV must be 'dev' or 'test' (got '%s')", env)
	}

	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	db := getEnv("POSTGRES_DB", "techfest")
	user := getEnv("POSTGRES_USER", "techfest")
	password := getEnv("POSTGRES_PASSWORD", "techfest")
	sslmode := getEnv("POSTGRES_SSLMODE", "disable")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, db, sslmode)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	if err := storage.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	fmt.Println("Seeding database...")

	if err := seedSuperiorAdmin(ctx, pool); err != nil {
		log.Fatalf("seed superior admin: %v", err)
	}
	fmt.Println("✓ Superior admin seeded")

	if err := seedEvents(ctx, pool); err != nil {
		log.Fatalf("seed events: %v", err)
	}
	fmt.Println("✓ Events seeded")

	fmt.Println("\n=== Seed Complete ===")
	fmt.Println("\nSuperior Admin Credentials:")
	fmt.Printf("  Email: %s\n", adminEmail)
	fmt.Printf("  Password: %s\n", adminPassword)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func seedSuperiorAdmin(ctx context.Context, pool *pgxpool.Pool) error {
	adminID := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	hash, err := security.HashPassword(adminPassword, security.DefaultArgon2Params())
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now()

	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, name, email, username, password_hash, college, role, is_approved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role,
		    is_approved = EXCLUDED.is_approved,
		    updated_at = EXCLUDED.updated_at
	`, adminID, "Festival Admin", adminEmail, "festadmin", hash, "", string(storage.RoleSuperiorAdmin), true, now, now)
	return err
}

func seedEvents(ctx context.Context, pool *pgxpool.Pool) error {
	events := []struct {
		id              uuid.UUID
		title           string
		description     string
		fee             decimal.Decimal
		venue           string
		category        string
		eventType       storage.EventType
		maxTeamSize     int
		maxParticipants int
	}{
		{
			id:              uuid.MustParse("00000000-0000-0000-0000-000000000101"),
			title:           "Code Sprint",
			description:     "Three hour competitive programming contest.",
			fee:             decimal.Zero,
			venue:           "Lab 1",
			category:        "coding",
			eventType:       storage.EventIndividual,
			maxTeamSize:     1,
			maxParticipants: 120,
		},
		{
			id:              uuid.MustParse("00000000-0000-0000-0000-000000000102"),
			title:           "Hackathon",
			description:     "Overnight build, teams of up to four.",
			fee:             decimal.NewFromInt(200),
			venue:           "Main Hall",
			category:        "coding",
			eventType:       storage.EventTeam,
			maxTeamSize:     4,
			maxParticipants: 40,
		},
		{
			id:              uuid.MustParse("00000000-0000-0000-0000-000000000103"),
			title:           "Robo Race",
			description:     "Line following robot race, teams of two.",
			fee:             decimal.NewFromInt(150),
			venue:           "Arena",
			category:        "robotics",
			eventType:       storage.EventTeam,
			maxTeamSize:     2,
			maxParticipants: 0,
		},
	}

	now := time.Now()
	date := now.AddDate(0, 1, 0)

	for _, ev := range events {
		_, err := pool.Exec(ctx, `
			INSERT INTO events (id, title, description, fee, date, venue, category, event_type, max_team_size, max_participants, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO UPDATE
			SET title = EXCLUDED.title,
			    description = EXCLUDED.description,
			    fee = EXCLUDED.fee,
			    event_type = EXCLUDED.event_type,
			    max_team_size = EXCLUDED.max_team_size,
			    max_participants = EXCLUDED.max_participants,
			    updated_at = EXCLUDED.updated_at
		`, ev.id, ev.title, ev.description, ev.fee, date, ev.venue, ev.category, string(ev.eventType), ev.maxTeamSize, ev.maxParticipants, now, now)
		if err != nil {
			return err
		}
	}

	return nil
}

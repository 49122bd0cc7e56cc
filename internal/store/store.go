package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lostid-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Migrate creates the schema if it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS id_categories (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			recovery_fee NUMERIC(12,2) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS lost_ids (
			id UUID PRIMARY KEY,
			id_number VARCHAR(64) NOT NULL,
			owner_name VARCHAR(255) NOT NULL,
			category_id UUID NOT NULL REFERENCES id_categories(id),
			status VARCHAR(32) NOT NULL,
			date_found DATE NOT NULL,
			location_found VARCHAR(255) NOT NULL,
			contact_info VARCHAR(255) NOT NULL,
			comments TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id UUID PRIMARY KEY,
			checkout_request_id VARCHAR(255) NOT NULL UNIQUE,
			user_id VARCHAR(255) NOT NULL,
			lost_id UUID NOT NULL,
			category_id UUID NOT NULL,
			phone VARCHAR(15) NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			status VARCHAR(32) NOT NULL,
			transaction_id VARCHAR(255),
			transaction_date TIMESTAMPTZ,
			failure_reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_user_category ON payments(user_id, category_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status_created ON payments(status, created_at)`,
		`CREATE TABLE IF NOT EXISTS claims (
			id UUID PRIMARY KEY,
			lost_id UUID NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			category_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			phone VARCHAR(15) NOT NULL,
			comments TEXT NOT NULL DEFAULT '',
			payment_status VARCHAR(32) NOT NULL,
			status VARCHAR(32) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (lost_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS processed_events (
			event_id VARCHAR(255) PRIMARY KEY,
			event_type VARCHAR(64) NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint violation
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// GetCategoryByID retrieves a category by ID
func (s *Store) GetCategoryByID(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	err := s.db.GetContext(ctx, &category, "SELECT * FROM id_categories WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("category not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// GetCategories retrieves all categories
func (s *Store) GetCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories, "SELECT * FROM id_categories ORDER BY name")
	return categories, err
}

// CreateCategory creates a new category
func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO id_categories (id, name, recovery_fee)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	return s.db.GetContext(ctx, &category.CreatedAt, query,
		category.ID, category.Name, category.RecoveryFee)
}

// GetLostIDByID retrieves a lost ID record by ID
func (s *Store) GetLostIDByID(ctx context.Context, id string) (*models.LostID, error) {
	var lostID models.LostID
	err := s.db.GetContext(ctx, &lostID, "SELECT * FROM lost_ids WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("lost ID not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &lostID, nil
}

// GetLostIDs retrieves all lost ID records
func (s *Store) GetLostIDs(ctx context.Context) ([]models.LostID, error) {
	var lostIDs []models.LostID
	err := s.db.SelectContext(ctx, &lostIDs, "SELECT * FROM lost_ids ORDER BY created_at DESC")
	return lostIDs, err
}

// CreateLostID creates a new lost ID record
func (s *Store) CreateLostID(ctx context.Context, lostID *models.LostID) error {
	query := `
		INSERT INTO lost_ids (id, id_number, owner_name, category_id, status, date_found, location_found, contact_info, comments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	return s.db.GetContext(ctx, &lostID.CreatedAt, query,
		lostID.ID, lostID.IDNumber, lostID.OwnerName, lostID.CategoryID, lostID.Status,
		lostID.DateFound, lostID.LocationFound, lostID.ContactInfo, lostID.Comments)
}

// UpdateLostIDStatus updates the status of a lost ID record
func (s *Store) UpdateLostIDStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE lost_ids SET status = $1 WHERE id = $2", status, id)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

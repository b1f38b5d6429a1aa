package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/louiezhelee-uway/kyc-system/config"
	_ "github.com/louiezhelee-uway/kyc-system/internal/db/migrations"
	"github.com/louiezhelee-uway/kyc-system/models"
)

type Manager struct {
	Db *sql.DB
}

func NewManager(cfg *config.Config) (*Manager, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	manager := &Manager{
		Db: db,
	}

	if err = goose.Up(db, "./internal/db/migrations"); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	return manager, nil
}

// GetOrCreateOrder inserts the order and lets the unique constraint on
// external_order_id arbitrate concurrent deliveries of the same event. On
// conflict the established row is returned untouched; a redelivery never
// overwrites buyer info.
func (m *Manager) GetOrCreateOrder(order models.Order) (*models.Order, bool, error) {
	res, err := m.Db.Exec(`
        INSERT INTO orders (uuid, external_order_id, buyer_id, buyer_name, buyer_email, buyer_phone, platform, order_amount)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (external_order_id) DO NOTHING
    `, order.UUID, order.ExternalOrderID, order.BuyerID, order.BuyerName, order.BuyerEmail, order.BuyerPhone, order.Platform, order.OrderAmount)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert order: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read insert result: %w", err)
	}

	stored, err := m.getOrder(`WHERE external_order_id = $1`, order.ExternalOrderID)
	if err != nil {
		return nil, false, err
	}

	return stored, inserted == 1, nil
}

func (m *Manager) GetOrderByUUID(orderUUID string) (*models.Order, error) {
	return m.getOrder(`WHERE uuid = $1`, orderUUID)
}

func (m *Manager) getOrder(where string, arg any) (*models.Order, error) {
	var order models.Order
	var phone sql.NullString

	err := m.Db.QueryRow(`
		SELECT uuid, external_order_id, buyer_id, buyer_name, buyer_email, buyer_phone, platform, order_amount, created_at
		FROM orders `+where, arg).Scan(
		&order.UUID, &order.ExternalOrderID, &order.BuyerID, &order.BuyerName,
		&order.BuyerEmail, &phone, &order.Platform, &order.OrderAmount, &order.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	order.BuyerPhone = phone.String

	return &order, nil
}

// CreateVerification inserts the verification and lets the unique constraint
// on order_uuid arbitrate concurrent creation for the same order. Returns
// whether this call inserted the row.
func (m *Manager) CreateVerification(verification models.Verification) (bool, error) {
	res, err := m.Db.Exec(`
        INSERT INTO verifications (uuid, order_uuid, applicant_id, verification_token, status, started_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (order_uuid) DO NOTHING
    `, verification.UUID, verification.OrderUUID, verification.ApplicantID,
		verification.Token, verification.Status.String(), verification.StartedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert verification: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return inserted == 1, nil
}

func (m *Manager) GetVerificationByToken(verificationToken string) (*models.Verification, error) {
	return m.getVerification(`WHERE verification_token = $1`, verificationToken)
}

func (m *Manager) GetVerificationByApplicantID(applicantID string) (*models.Verification, error) {
	return m.getVerification(`WHERE applicant_id = $1`, applicantID)
}

func (m *Manager) GetVerificationByOrder(orderUUID string) (*models.Verification, error) {
	return m.getVerification(`WHERE order_uuid = $1`, orderUUID)
}

func (m *Manager) getVerification(where string, arg any) (*models.Verification, error) {
	var verification models.Verification
	var status string
	var completedAt sql.NullTime

	err := m.Db.QueryRow(`
		SELECT uuid, order_uuid, applicant_id, verification_token, status, started_at, completed_at
		FROM verifications `+where, arg).Scan(
		&verification.UUID, &verification.OrderUUID, &verification.ApplicantID,
		&verification.Token, &status, &verification.StartedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}

	verification.Status = models.VerificationStatus(status)
	if completedAt.Valid {
		verification.CompletedAt = &completedAt.Time
	}

	return &verification, nil
}

// UpdateVerificationStatus moves a verification out of pending. The WHERE
// clause is the monotonicity guard: once a row is terminal no update matches,
// so redelivered or out-of-order callbacks degrade to a no-op. Returns whether
// the transition was applied.
func (m *Manager) UpdateVerificationStatus(verificationUUID string, status models.VerificationStatus, completedAt *time.Time) (bool, error) {
	res, err := m.Db.Exec(`
        UPDATE verifications
        SET status = $2, completed_at = $3
        WHERE uuid = $1 AND status = 'pending'
    `, verificationUUID, status.String(), completedAt)
	if err != nil {
		return false, fmt.Errorf("failed to update verification status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}

	return affected == 1, nil
}

func (m *Manager) UpsertReport(report models.Report) error {
	_, err := m.Db.Exec(`
        INSERT INTO reports (uuid, order_uuid, verification_result, verification_details)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (order_uuid) DO UPDATE
        SET verification_result = EXCLUDED.verification_result,
            verification_details = EXCLUDED.verification_details
    `, report.UUID, report.OrderUUID, report.VerificationResult, report.VerificationDetail)
	if err != nil {
		return fmt.Errorf("failed to upsert report: %w", err)
	}

	return nil
}

func (m *Manager) GetReportByOrder(orderUUID string) (*models.Report, error) {
	var report models.Report

	err := m.Db.QueryRow(`
		SELECT uuid, order_uuid, verification_result, verification_details, created_at
		FROM reports WHERE order_uuid = $1
	`, orderUUID).Scan(&report.UUID, &report.OrderUUID, &report.VerificationResult,
		&report.VerificationDetail, &report.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return &report, nil
}

func (m *Manager) Close() error {
	return m.Db.Close()
}

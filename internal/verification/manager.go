package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/louiezhelee-uway/kyc-system/config"
	"github.com/louiezhelee-uway/kyc-system/internal/db"
	"github.com/louiezhelee-uway/kyc-system/internal/report"
	"github.com/louiezhelee-uway/kyc-system/internal/token"
	"github.com/louiezhelee-uway/kyc-system/models"
)

var ErrNotFound = errors.New("verification not found")

// Provider is the slice of the sumsub client the session manager needs.
type Provider interface {
	CreateApplicant(ctx context.Context, order *models.Order) (string, error)
	MintAccessToken(ctx context.Context, applicantID string, ttl time.Duration) (string, error)
}

// ReportScheduler hands terminal verifications off for asynchronous report
// generation.
type ReportScheduler interface {
	Enqueue(job report.Job)
}

// Access is the outcome of resolving a verification link.
type Access int

const (
	// AccessWidget renders the provider widget with a fresh access token.
	AccessWidget Access = iota
	// AccessReport redirects a terminal verification to its report view.
	AccessReport
	// AccessExpired is the terminal dead end for expired links.
	AccessExpired
)

type SessionManager struct {
	Database db.Database
	Provider Provider
	Reports  ReportScheduler
	Tokens   token.Issuer
	Config   *config.Config
	Logger   *zap.SugaredLogger
}

// Create registers the order's buyer with the provider and persists a pending
// verification bound 1:1 to the order. If the order already has a
// verification it is returned unchanged, so redelivered webhooks and admin
// retries are safe.
func (m *SessionManager) Create(ctx context.Context, order *models.Order) (*models.Verification, error) {
	existing, err := m.Database.GetVerificationByOrder(order.UUID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	applicantID, err := m.Provider.CreateApplicant(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to create applicant: %w", err)
	}

	verificationToken, err := m.Tokens.VerificationToken()
	if err != nil {
		return nil, err
	}

	verification := models.Verification{
		UUID:        uuid.New().String(),
		OrderUUID:   order.UUID,
		ApplicantID: applicantID,
		Token:       verificationToken,
		Status:      models.VerificationPending,
		StartedAt:   time.Now().UTC(),
	}

	inserted, err := m.Database.CreateVerification(verification)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// A concurrent caller created the verification between the lookup and
		// the insert. The established row wins; our applicant is abandoned on
		// the provider side.
		m.Logger.Warnw("concurrent verification creation, returning established row",
			"order", order.UUID, "abandonedApplicant", applicantID)
		return m.Database.GetVerificationByOrder(order.UUID)
	}

	m.Logger.Infow("verification created", "order", order.UUID, "applicant", applicantID)

	return &verification, nil
}

// Link builds the user-facing verification URL for a token.
func (m *SessionManager) Link(verificationToken string) string {
	return m.Config.AppDomain + "/verify/" + verificationToken
}

// ApplyProviderStatus maps a provider callback onto the local state machine.
// Unknown provider statuses map to pending and are ignored; a transition into
// a terminal state is applied at most once, so redelivered and out-of-order
// callbacks are no-ops. The first transition to approved or rejected schedules
// report generation.
func (m *SessionManager) ApplyProviderStatus(ctx context.Context, applicantID string, reviewStatus string) (*models.Verification, error) {
	verification, err := m.Database.GetVerificationByApplicantID(applicantID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	status := models.MapProviderStatus(reviewStatus)
	if !status.Terminal() {
		m.Logger.Infow("provider status does not change verification",
			"applicant", applicantID, "reviewStatus", reviewStatus)
		return verification, nil
	}

	now := time.Now().UTC()
	applied, err := m.Database.UpdateVerificationStatus(verification.UUID, status, &now)
	if err != nil {
		return nil, err
	}
	if !applied {
		m.Logger.Infow("verification already terminal, status callback ignored",
			"applicant", applicantID, "status", verification.Status)
		return verification, nil
	}

	verification.Status = status
	verification.CompletedAt = &now
	m.Logger.Infow("verification completed", "applicant", applicantID, "status", status)

	if status == models.VerificationApproved || status == models.VerificationRejected {
		m.Reports.Enqueue(report.Job{
			VerificationUUID: verification.UUID,
			OrderUUID:        verification.OrderUUID,
			ApplicantID:      verification.ApplicantID,
			Result:           status,
		})
	}

	return verification, nil
}

// ResolveAccess looks up a verification link and decides what the bearer may
// see. Expiry is lazy: a pending verification older than the configured TTL
// flips to expired here, at access time, with no background sweep.
func (m *SessionManager) ResolveAccess(ctx context.Context, verificationToken string) (*models.Verification, Access, error) {
	verification, err := m.Database.GetVerificationByToken(verificationToken)
	if errors.Is(err, db.ErrNotFound) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	if verification.Status == models.VerificationPending && m.Config.VerificationTTL > 0 &&
		time.Since(verification.StartedAt) > m.Config.VerificationTTL {
		now := time.Now().UTC()
		if _, err := m.Database.UpdateVerificationStatus(verification.UUID, models.VerificationExpired, &now); err != nil {
			return nil, 0, err
		}
		verification.Status = models.VerificationExpired
		verification.CompletedAt = &now
		m.Logger.Infow("verification expired on access", "verification", verification.UUID)
	}

	switch verification.Status {
	case models.VerificationApproved, models.VerificationRejected:
		return verification, AccessReport, nil
	case models.VerificationExpired:
		return verification, AccessExpired, nil
	default:
		return verification, AccessWidget, nil
	}
}

// MintWidgetToken requests a fresh short-lived token for the client-side
// widget. Tokens are minted on every page load and refresh, never cached.
func (m *SessionManager) MintWidgetToken(ctx context.Context, verification *models.Verification) (string, int, error) {
	ttl := m.Config.AccessTokenTTL
	if ttl <= 0 {
		ttl = 1800 * time.Second
	}
	accessToken, err := m.Provider.MintAccessToken(ctx, verification.ApplicantID, ttl)
	if err != nil {
		return "", 0, fmt.Errorf("failed to mint access token: %w", err)
	}
	return accessToken, int(ttl.Seconds()), nil
}

// Expire invalidates a pending verification by administrative action. Already
// terminal verifications are left untouched.
func (m *SessionManager) Expire(ctx context.Context, verificationToken string) (*models.Verification, error) {
	verification, err := m.Database.GetVerificationByToken(verificationToken)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	applied, err := m.Database.UpdateVerificationStatus(verification.UUID, models.VerificationExpired, &now)
	if err != nil {
		return nil, err
	}
	if applied {
		verification.Status = models.VerificationExpired
		verification.CompletedAt = &now
	}

	return verification, nil
}

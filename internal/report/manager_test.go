package report

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/louiezhelee-uway/kyc-system/config"
	"github.com/louiezhelee-uway/kyc-system/internal/db"
	"github.com/louiezhelee-uway/kyc-system/logging"
	"github.com/louiezhelee-uway/kyc-system/models"
)

type stubDB struct {
	mu      sync.Mutex
	reports []models.Report
}

func (s *stubDB) storedReports() []models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Report(nil), s.reports...)
}

func (s *stubDB) GetOrCreateOrder(order models.Order) (*models.Order, bool, error) {
	return nil, false, errors.New("not implemented")
}
func (s *stubDB) GetOrderByUUID(string) (*models.Order, error) { return nil, db.ErrNotFound }
func (s *stubDB) CreateVerification(models.Verification) (bool, error) { return true, nil }
func (s *stubDB) GetVerificationByToken(string) (*models.Verification, error) {
	return nil, db.ErrNotFound
}
func (s *stubDB) GetVerificationByApplicantID(string) (*models.Verification, error) {
	return nil, db.ErrNotFound
}
func (s *stubDB) GetVerificationByOrder(string) (*models.Verification, error) {
	return nil, db.ErrNotFound
}
func (s *stubDB) UpdateVerificationStatus(string, models.VerificationStatus, *time.Time) (bool, error) {
	return false, nil
}
func (s *stubDB) UpsertReport(report models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}
func (s *stubDB) GetReportByOrder(string) (*models.Report, error) { return nil, db.ErrNotFound }
func (s *stubDB) Close() error                                    { return nil }

type stubProvider struct {
	review    json.RawMessage
	reviewErr error
	artifacts map[string][]byte
}

func (p *stubProvider) FetchReviewResult(ctx context.Context, applicantID string) (json.RawMessage, error) {
	return p.review, p.reviewErr
}

func (p *stubProvider) FetchReportArtifact(ctx context.Context, applicantID string, lang string, format models.ReportFormat) ([]byte, error) {
	content, ok := p.artifacts[lang+"."+string(format)]
	if !ok {
		return nil, errors.New("no such artifact")
	}
	return content, nil
}

func newTestManager(database db.Database, provider Provider, root string) *Manager {
	return NewManager(
		make(chan Job, 1),
		database,
		provider,
		&Registry{Root: root},
		&config.Config{ReportLanguages: []string{"en", "zh"}},
		logging.GetSugaredLogger(),
	)
}

func TestProcessApproved(t *testing.T) {
	database := &stubDB{}
	provider := &stubProvider{
		review: json.RawMessage(`{"reviewResult":{"reviewAnswer":"GREEN"}}`),
		artifacts: map[string][]byte{
			"en.pdf":  []byte("pdf-en"),
			"zh.pdf":  []byte("pdf-zh"),
			"en.json": []byte(`{"summary":true}`),
		},
	}
	manager := newTestManager(database, provider, t.TempDir())

	err := manager.process(context.Background(), Job{
		VerificationUUID: "ver-1",
		OrderUUID:        "order-1",
		ApplicantID:      "applicant-1",
		Result:           models.VerificationApproved,
	})
	assert.NoError(t, err)

	assert.Len(t, database.reports, 1)
	assert.Equal(t, "approved", database.reports[0].VerificationResult)
	assert.JSONEq(t, `{"reviewResult":{"reviewAnswer":"GREEN"}}`, string(database.reports[0].VerificationDetail))

	artifacts, err := manager.Registry.List("ver-1")
	assert.NoError(t, err)
	assert.Len(t, artifacts, 3, "pdf per language plus one json")
}

func TestProcessRejectedSkipsArtifacts(t *testing.T) {
	database := &stubDB{}
	provider := &stubProvider{review: json.RawMessage(`{"reviewResult":{"reviewAnswer":"RED"}}`)}
	manager := newTestManager(database, provider, t.TempDir())

	err := manager.process(context.Background(), Job{
		VerificationUUID: "ver-1",
		OrderUUID:        "order-1",
		ApplicantID:      "applicant-1",
		Result:           models.VerificationRejected,
	})
	assert.NoError(t, err)

	assert.Len(t, database.reports, 1)
	assert.Equal(t, "rejected", database.reports[0].VerificationResult)

	artifacts, err := manager.Registry.List("ver-1")
	assert.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestProcessProviderFailure(t *testing.T) {
	database := &stubDB{}
	provider := &stubProvider{reviewErr: errors.New("provider down")}
	manager := newTestManager(database, provider, t.TempDir())

	err := manager.process(context.Background(), Job{
		VerificationUUID: "ver-1",
		OrderUUID:        "order-1",
		ApplicantID:      "applicant-1",
		Result:           models.VerificationApproved,
	})
	assert.Error(t, err)
	assert.Empty(t, database.reports)
}

func TestStartReportProcessing(t *testing.T) {
	database := &stubDB{}
	provider := &stubProvider{
		review:    json.RawMessage(`{}`),
		artifacts: map[string][]byte{},
	}
	manager := newTestManager(database, provider, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		manager.StartReportProcessing(ctx)
		close(done)
	}()

	manager.Enqueue(Job{
		VerificationUUID: "ver-1",
		OrderUUID:        "order-1",
		ApplicantID:      "applicant-1",
		Result:           models.VerificationRejected,
	})

	assert.Eventually(t, func() bool {
		return len(database.storedReports()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("manager did not stop on context cancellation")
	}
}

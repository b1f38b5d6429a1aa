package report

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/louiezhelee-uway/kyc-system/config"
	"github.com/louiezhelee-uway/kyc-system/internal/db"
	"github.com/louiezhelee-uway/kyc-system/models"
)

// Provider is the slice of the sumsub client the report pipeline needs.
type Provider interface {
	FetchReviewResult(ctx context.Context, applicantID string) (json.RawMessage, error)
	FetchReportArtifact(ctx context.Context, applicantID string, lang string, format models.ReportFormat) ([]byte, error)
}

// Job asks the manager to fetch and persist the report for one verification
// that just reached a terminal state.
type Job struct {
	VerificationUUID string
	OrderUUID        string
	ApplicantID      string
	Result           models.VerificationStatus
}

// Manager consumes report jobs off a channel so webhook handling never blocks
// on provider downloads.
type Manager struct {
	Jobs     chan Job
	Database db.Database
	Provider Provider
	Registry *Registry
	Config   *config.Config
	Logger   *zap.SugaredLogger
}

func NewManager(jobs chan Job, database db.Database, provider Provider, registry *Registry, cfg *config.Config, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		Jobs:     jobs,
		Database: database,
		Provider: provider,
		Registry: registry,
		Config:   cfg,
		Logger:   logger,
	}
}

func (m *Manager) Enqueue(job Job) {
	m.Jobs <- job
}

func (m *Manager) StartReportProcessing(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.Logger.Info("context done")
			return
		case job, ok := <-m.Jobs:
			if !ok {
				m.Logger.Info("report job channel closed")
				return
			}
			if err := m.process(ctx, job); err != nil {
				m.Logger.Errorw("failed to generate report", "verification", job.VerificationUUID, "error", err)
			}
		}
	}
}

func (m *Manager) process(ctx context.Context, job Job) error {
	m.Logger.Infow("generating report", "verification", job.VerificationUUID, "result", job.Result)

	details, err := m.Provider.FetchReviewResult(ctx, job.ApplicantID)
	if err != nil {
		return err
	}

	err = m.Database.UpsertReport(models.Report{
		UUID:               uuid.New().String(),
		OrderUUID:          job.OrderUUID,
		VerificationResult: job.Result.String(),
		VerificationDetail: details,
	})
	if err != nil {
		return err
	}

	// Downloadable files exist only for approved verifications; a rejection
	// keeps its structured result but gets no artifacts.
	if job.Result != models.VerificationApproved {
		return nil
	}

	languages := m.Config.ReportLanguages
	for _, lang := range languages {
		m.download(ctx, job, lang, models.ReportFormatPDF)
	}
	if len(languages) > 0 {
		m.download(ctx, job, languages[0], models.ReportFormatJSON)
	}

	return nil
}

func (m *Manager) download(ctx context.Context, job Job, lang string, format models.ReportFormat) {
	start := time.Now()
	content, err := m.Provider.FetchReportArtifact(ctx, job.ApplicantID, lang, format)
	if err != nil {
		m.Logger.Warnw("failed to download report artifact",
			"verification", job.VerificationUUID, "lang", lang, "format", format, "error", err)
		return
	}

	artifact, err := m.Registry.Store(ArtifactKey{
		VerificationID: job.VerificationUUID,
		ApplicantID:    job.ApplicantID,
		Lang:           lang,
		Format:         format,
	}, content)
	if err != nil {
		m.Logger.Warnw("failed to store report artifact",
			"verification", job.VerificationUUID, "lang", lang, "format", format, "error", err)
		return
	}

	m.Logger.Infow("report artifact stored",
		"filename", artifact.Filename, "size", artifact.Size, "took", time.Since(start))
}

package db

import (
	"errors"
	"time"

	"github.com/louiezhelee-uway/kyc-system/models"
)

var ErrNotFound = errors.New("not found")

type Database interface {
	GetOrCreateOrder(order models.Order) (*models.Order, bool, error)
	GetOrderByUUID(orderUUID string) (*models.Order, error)

	CreateVerification(verification models.Verification) (bool, error)
	GetVerificationByToken(verificationToken string) (*models.Verification, error)
	GetVerificationByApplicantID(applicantID string) (*models.Verification, error)
	GetVerificationByOrder(orderUUID string) (*models.Verification, error)
	UpdateVerificationStatus(verificationUUID string, status models.VerificationStatus, completedAt *time.Time) (bool, error)

	UpsertReport(report models.Report) error
	GetReportByOrder(orderUUID string) (*models.Report, error)

	Close() error
}

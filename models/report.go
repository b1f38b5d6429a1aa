package models

import (
	"time"
)

type Report struct {
	UUID               string    `json:"uuid"`
	OrderUUID          string    `json:"order_uuid"`
	VerificationResult string    `json:"verification_result"`
	VerificationDetail []byte    `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
}

type ReportFormat string

const (
	ReportFormatPDF  ReportFormat = "pdf"
	ReportFormatJSON ReportFormat = "json"
)

func (f ReportFormat) ContentType() string {
	if f == ReportFormatPDF {
		return "application/pdf"
	}
	return "application/json"
}

type ReportArtifact struct {
	Filename       string       `json:"filename"`
	VerificationID string       `json:"verification_id"`
	ApplicantID    string       `json:"applicant_id"`
	Lang           string       `json:"lang"`
	Format         ReportFormat `json:"format"`
	Size           int64        `json:"size"`
	CreatedAt      time.Time    `json:"created_at"`
}

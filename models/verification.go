package models

import (
	"time"
)

type VerificationStatus string

func (s VerificationStatus) String() string {
	return string(s)
}

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
	VerificationExpired  VerificationStatus = "expired"
)

// Terminal reports whether no further transition is permitted.
func (s VerificationStatus) Terminal() bool {
	return s == VerificationApproved || s == VerificationRejected || s == VerificationExpired
}

// MapProviderStatus converts the provider's review vocabulary to the local
// enum. Anything unrecognized stays pending so that a bad payload can never
// push a verification into a terminal state.
func MapProviderStatus(reviewStatus string) VerificationStatus {
	switch reviewStatus {
	case "approved":
		return VerificationApproved
	case "rejected":
		return VerificationRejected
	case "pending", "review":
		return VerificationPending
	default:
		return VerificationPending
	}
}

type Verification struct {
	UUID        string             `json:"uuid"`
	OrderUUID   string             `json:"order_uuid"`
	ApplicantID string             `json:"applicant_id"`
	Token       string             `json:"verification_token"`
	Status      VerificationStatus `json:"status"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

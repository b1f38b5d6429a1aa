package models

type OrderWebhookRequest struct {
	OrderID     string  `json:"order_id"`
	BuyerID     string  `json:"buyer_id"`
	BuyerName   string  `json:"buyer_name"`
	BuyerEmail  string  `json:"buyer_email"`
	BuyerPhone  string  `json:"buyer_phone,omitempty"`
	Platform    string  `json:"platform"`
	OrderAmount float64 `json:"order_amount"`
}

type OrderWebhookResponse struct {
	Status           string `json:"status"`
	OrderID          string `json:"order_id"`
	VerificationID   string `json:"verification_id,omitempty"`
	VerificationLink string `json:"verification_link,omitempty"`
}

type ProviderWebhookRequest struct {
	ApplicantID  string `json:"applicantId"`
	ReviewStatus string `json:"reviewStatus"`
}

type RefreshTokenRequest struct {
	VerificationToken string `json:"verification_token"`
}

type AccessTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/louiezhelee-uway/kyc-system/config"
	"github.com/louiezhelee-uway/kyc-system/internal/auth"
	"github.com/louiezhelee-uway/kyc-system/internal/db"
	"github.com/louiezhelee-uway/kyc-system/internal/report"
	"github.com/louiezhelee-uway/kyc-system/internal/verification"
	"github.com/louiezhelee-uway/kyc-system/models"
)

type Handler struct {
	Database db.Database
	Sessions *verification.SessionManager
	Registry *report.Registry
	Auth     *auth.Manager
	Config   *config.Config
	Logger   *zap.SugaredLogger
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// OrderWebhook ingests an order event from the upstream platform. The
// signature has already been checked by middleware. Duplicate deliveries of
// the same external order id come back 200 already_exists.
func (h *Handler) OrderWebhook(w http.ResponseWriter, r *http.Request) {
	var payload models.OrderWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.Logger.Error("error decoding order webhook", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if payload.OrderID == "" || payload.BuyerEmail == "" {
		writeError(w, http.StatusBadRequest, "order_id and buyer_email are required")
		return
	}
	if payload.Platform == "" {
		payload.Platform = "taobao"
	}

	order := models.Order{
		UUID:            uuid.New().String(),
		ExternalOrderID: payload.OrderID,
		BuyerID:         payload.BuyerID,
		BuyerName:       payload.BuyerName,
		BuyerEmail:      payload.BuyerEmail,
		BuyerPhone:      payload.BuyerPhone,
		Platform:        payload.Platform,
		OrderAmount:     payload.OrderAmount,
	}

	stored, created, err := h.Database.GetOrCreateOrder(order)
	if err != nil {
		h.Logger.Error("error when trying to put order to database", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Create is idempotent, so a redelivery also heals the case where an
	// earlier delivery stored the order but failed before its verification
	// existed. A retry of the whole webhook is always safe.
	v, err := h.Sessions.Create(r.Context(), stored)
	if err != nil {
		h.Logger.Errorw("failed to create verification", "order", stored.UUID, "error", err)
		writeError(w, http.StatusBadGateway, "verification provider unavailable")
		return
	}

	if !created {
		writeJSON(w, http.StatusOK, models.OrderWebhookResponse{
			Status:           "already_exists",
			OrderID:          stored.UUID,
			VerificationID:   v.UUID,
			VerificationLink: h.Sessions.Link(v.Token),
		})
		return
	}

	writeJSON(w, http.StatusCreated, models.OrderWebhookResponse{
		Status:           "success",
		OrderID:          stored.UUID,
		VerificationID:   v.UUID,
		VerificationLink: h.Sessions.Link(v.Token),
	})
}

// ProviderWebhook applies a status callback from the verification provider.
func (h *Handler) ProviderWebhook(w http.ResponseWriter, r *http.Request) {
	var payload models.ProviderWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.Logger.Error("error decoding provider webhook", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if payload.ApplicantID == "" {
		writeError(w, http.StatusBadRequest, "applicantId is required")
		return
	}

	_, err := h.Sessions.ApplyProviderStatus(r.Context(), payload.ApplicantID, payload.ReviewStatus)
	if errors.Is(err, verification.ErrNotFound) {
		writeError(w, http.StatusNotFound, "verification not found")
		return
	}
	if err != nil {
		h.Logger.Errorw("failed to apply provider status", "applicant", payload.ApplicantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// VerificationPage resolves a verification link. Pending links answer with a
// fresh widget access token, terminal links redirect to the report view,
// expired links are a dead end.
func (h *Handler) VerificationPage(w http.ResponseWriter, r *http.Request) {
	verificationToken := chi.URLParam(r, "token")

	v, access, err := h.Sessions.ResolveAccess(r.Context(), verificationToken)
	if errors.Is(err, verification.ErrNotFound) {
		writeError(w, http.StatusNotFound, "verification link not found")
		return
	}
	if err != nil {
		h.Logger.Errorw("failed to resolve verification link", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	switch access {
	case verification.AccessReport:
		http.Redirect(w, r, "/report/"+verificationToken, http.StatusFound)
	case verification.AccessExpired:
		writeError(w, http.StatusGone, "verification link has expired")
	default:
		accessToken, expiresIn, err := h.Sessions.MintWidgetToken(r.Context(), v)
		if err != nil {
			h.Logger.Errorw("failed to mint widget token", "verification", v.UUID, "error", err)
			writeError(w, http.StatusBadGateway, "verification provider unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       v.Status,
			"order_id":     v.OrderUUID,
			"access_token": accessToken,
			"expires_in":   expiresIn,
		})
	}
}

// VerificationStatus is the polling endpoint used by the widget page. It goes
// through ResolveAccess so a TTL-expired verification reports expired here
// exactly as the page itself would.
func (h *Handler) VerificationStatus(w http.ResponseWriter, r *http.Request) {
	verificationToken := chi.URLParam(r, "token")

	v, _, err := h.Sessions.ResolveAccess(r.Context(), verificationToken)
	if errors.Is(err, verification.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.Logger.Errorw("failed to get verification", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := map[string]any{"status": v.Status}
	if v.CompletedAt != nil {
		resp["completed_at"] = v.CompletedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// RefreshToken re-mints the short-lived widget token. Terminal verifications
// no longer grant provider-side access.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var payload models.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if payload.VerificationToken == "" {
		writeError(w, http.StatusBadRequest, "verification_token required")
		return
	}

	v, access, err := h.Sessions.ResolveAccess(r.Context(), payload.VerificationToken)
	if errors.Is(err, verification.ErrNotFound) {
		writeError(w, http.StatusNotFound, "verification not found")
		return
	}
	if err != nil {
		h.Logger.Errorw("failed to resolve verification link", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if access != verification.AccessWidget {
		writeError(w, http.StatusForbidden, "verification is no longer active")
		return
	}

	accessToken, expiresIn, err := h.Sessions.MintWidgetToken(r.Context(), v)
	if err != nil {
		h.Logger.Errorw("failed to mint widget token", "verification", v.UUID, "error", err)
		writeError(w, http.StatusBadGateway, "verification provider unavailable")
		return
	}

	writeJSON(w, http.StatusOK, models.AccessTokenResponse{Token: accessToken, ExpiresIn: expiresIn})
}

// ReportView returns the structured result and artifact listing for a
// terminal verification.
func (h *Handler) ReportView(w http.ResponseWriter, r *http.Request) {
	verificationToken := chi.URLParam(r, "token")

	v, err := h.Database.GetVerificationByToken(verificationToken)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.Logger.Errorw("failed to get verification", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if v.Status != models.VerificationApproved && v.Status != models.VerificationRejected {
		writeError(w, http.StatusForbidden, "report is not available")
		return
	}

	resp := map[string]any{
		"order_id": v.OrderUUID,
		"status":   v.Status,
	}

	order, err := h.Database.GetOrderByUUID(v.OrderUUID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		h.Logger.Errorw("failed to get order", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order != nil {
		resp["external_order_id"] = order.ExternalOrderID
		resp["buyer_name"] = order.BuyerName
		resp["platform"] = order.Platform
	}

	storedReport, err := h.Database.GetReportByOrder(v.OrderUUID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		h.Logger.Errorw("failed to get report", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if storedReport != nil {
		resp["verification_result"] = storedReport.VerificationResult
		resp["verification_details"] = json.RawMessage(storedReport.VerificationDetail)
	}

	artifacts, err := h.Registry.List(v.UUID)
	if err != nil {
		h.Logger.Errorw("failed to list report artifacts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if lang := r.URL.Query().Get("lang"); lang != "" {
		filtered := artifacts[:0]
		for _, a := range artifacts {
			if a.Lang == lang {
				filtered = append(filtered, a)
			}
		}
		artifacts = filtered
	}
	resp["artifacts"] = artifacts

	writeJSON(w, http.StatusOK, resp)
}

// ReportDownload streams one report file after the three-gate check: the
// token must resolve to an approved verification, the filename must survive
// the traversal check, and its encoded verification id must match the token's.
func (h *Handler) ReportDownload(w http.ResponseWriter, r *http.Request) {
	verificationToken := chi.URLParam(r, "token")
	filename := chi.URLParam(r, "filename")

	v, err := h.Database.GetVerificationByToken(verificationToken)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.Logger.Errorw("failed to get verification", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if v.Status != models.VerificationApproved {
		writeError(w, http.StatusForbidden, "report is not available")
		return
	}

	content, format, err := h.Registry.Retrieve(v.UUID, filename)
	if errors.Is(err, report.ErrForbidden) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if errors.Is(err, report.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.Logger.Errorw("failed to retrieve report artifact", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

type adminLoginRequest struct {
	SecretKey string `json:"secret_key"`
}

// AdminLogin exchanges the admin secret key for a bearer JWT.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var payload adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if err := h.Auth.CheckAdminKey(payload.SecretKey); err != nil {
		h.Logger.Warnw("admin login rejected", "error", err)
		writeError(w, http.StatusForbidden, "invalid secret key")
		return
	}

	jwtToken, err := h.Auth.BuildJWT()
	if err != nil {
		h.Logger.Error("error building JWT", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": jwtToken})
}

// AdminCreateOrder is the manual backstage entry: same flow as the order
// webhook, authenticated by JWT instead of a body signature.
func (h *Handler) AdminCreateOrder(w http.ResponseWriter, r *http.Request) {
	var payload models.OrderWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if payload.OrderID == "" || payload.BuyerEmail == "" {
		writeError(w, http.StatusBadRequest, "order_id and buyer_email are required")
		return
	}
	if payload.Platform == "" {
		payload.Platform = "manual"
	}

	order := models.Order{
		UUID:            uuid.New().String(),
		ExternalOrderID: payload.OrderID,
		BuyerID:         payload.BuyerID,
		BuyerName:       payload.BuyerName,
		BuyerEmail:      payload.BuyerEmail,
		BuyerPhone:      payload.BuyerPhone,
		Platform:        payload.Platform,
		OrderAmount:     payload.OrderAmount,
	}

	stored, _, err := h.Database.GetOrCreateOrder(order)
	if err != nil {
		h.Logger.Error("error when trying to put order to database", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	v, err := h.Sessions.Create(r.Context(), stored)
	if err != nil {
		h.Logger.Errorw("failed to create verification", "order", stored.UUID, "error", err)
		writeError(w, http.StatusBadGateway, "verification provider unavailable")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"order_id":           stored.UUID,
		"verification_id":    v.UUID,
		"verification_token": v.Token,
		"verification_link":  h.Sessions.Link(v.Token),
		"status":             v.Status,
	})
}

// AdminExpireVerification invalidates a verification link by hand.
func (h *Handler) AdminExpireVerification(w http.ResponseWriter, r *http.Request) {
	verificationToken := chi.URLParam(r, "token")

	v, err := h.Sessions.Expire(r.Context(), verificationToken)
	if errors.Is(err, verification.ErrNotFound) {
		writeError(w, http.StatusNotFound, "verification not found")
		return
	}
	if err != nil {
		h.Logger.Errorw("failed to expire verification", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": v.Status})
}

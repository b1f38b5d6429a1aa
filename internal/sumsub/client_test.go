package sumsub

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/louiezhelee-uway/kyc-system/config"
	"github.com/louiezhelee-uway/kyc-system/logging"
	"github.com/louiezhelee-uway/kyc-system/models"
)

const testSecret = "provider-secret"

func testClient(serverURL string) *Client {
	cfg := &config.Config{
		SumsubAPIURL:    serverURL,
		SumsubAppToken:  "app-token",
		SumsubSecretKey: testSecret,
		SumsubLevelName: "basic-kyc-level",
		AppDomain:       "http://localhost:8080",
		RequestTimeout:  2 * time.Second,
	}
	return NewClient(cfg, logging.GetSugaredLogger())
}

// checkSignature recomputes the request digest server-side the way the
// provider would.
func checkSignature(t *testing.T, r *http.Request, body []byte) {
	t.Helper()

	ts := r.Header.Get("X-App-Access-Ts")
	assert.NotEmpty(t, ts)
	assert.Equal(t, "app-token", r.Header.Get("X-App-Token"))

	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(ts + r.Method + r.URL.RequestURI()))
	mac.Write(body)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), r.Header.Get("X-App-Access-Sig"))
}

func TestCreateApplicant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "/resources/applicants?levelName=basic-kyc-level", r.URL.RequestURI())
		assert.Contains(t, string(body), `"externalUserId":"order_order-1"`)
		checkSignature(t, r, body)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"applicant-42"}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	applicantID, err := client.CreateApplicant(context.Background(), &models.Order{
		UUID:       "order-1",
		BuyerName:  "Buyer",
		BuyerEmail: "a@b.com",
	})
	assert.NoError(t, err)
	assert.Equal(t, "applicant-42", applicantID)
}

func TestMintAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "/resources/applicants/applicant-42/tokens", r.URL.RequestURI())
		assert.Contains(t, string(body), `"ttlInSecs":1800`)
		checkSignature(t, r, body)

		w.Write([]byte(`{"token":"sdk-token"}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	tok, err := client.MintAccessToken(context.Background(), "applicant-42", 1800*time.Second)
	assert.NoError(t, err)
	assert.Equal(t, "sdk-token", tok)
}

func TestFetchReportArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resources/applicants/applicant-42/summary/report?report=applicantReport&lang=zh", r.URL.RequestURI())
		assert.Equal(t, "application/pdf", r.Header.Get("Accept"))
		checkSignature(t, r, nil)

		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	content, err := client.FetchReportArtifact(context.Background(), "applicant-42", "zh", models.ReportFormatPDF)
	assert.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), content)
}

func TestTransientFailureRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"reviewStatus":"completed"}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	result, err := client.FetchReviewResult(context.Background(), "applicant-42")
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Contains(t, string(result), "completed")
}

func TestRateLimitRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	_, err := client.FetchReviewResult(context.Background(), "applicant-42")
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestClientErrorNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(strings.Repeat("x", 400)))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	_, err := client.FetchReviewResult(context.Background(), "applicant-42")
	assert.Equal(t, 1, attempts, "4xx other than 429 must not be retried")

	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	assert.Equal(t, http.StatusConflict, perr.Status)
	assert.Len(t, perr.Body, errorBodyPreview, "response body must be truncated in the error")
}

func TestExhaustedRetriesSurfaceLastError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	_, err := client.FetchReviewResult(context.Background(), "applicant-42")
	assert.Error(t, err)
	assert.Equal(t, maxAttempts, attempts)

	var perr *ProviderError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusInternalServerError, perr.Status)
}

func TestMissingSecretFailsFast(t *testing.T) {
	cfg := &config.Config{
		SumsubAPIURL:   "http://localhost:1",
		SumsubAppToken: "app-token",
	}
	client := NewClient(cfg, logging.GetSugaredLogger())

	_, err := client.FetchReviewResult(context.Background(), "applicant-42")
	assert.Error(t, err)
}

package pos

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/localperks/pos-service/internal/model"
)

// cloverTestServer обслуживает и OAuth-, и API-эндпоинты одним сервером.
func cloverTestServer(t *testing.T, tokenStatus int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Fatalf("content-type = %q, want form-urlencoded", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("client_id") != "app-id" || r.PostForm.Get("grant_type") != "authorization_code" {
			t.Fatalf("unexpected form: %v", r.PostForm)
		}

		if tokenStatus != http.StatusOK {
			http.Error(w, "denied", tokenStatus)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "ctok",
			"merchant_id":  "CLV1",
		})
	})
	mux.HandleFunc("/v3/merchants/CLV1", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ctok" {
			t.Fatalf("authorization = %q, want Bearer ctok", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "Corner Cafe"})
	})

	return httptest.NewServer(mux)
}

func TestCloverExchangeCode_OK(t *testing.T) {
	ts := cloverTestServer(t, http.StatusOK)
	defer ts.Close()

	client := NewClover(testApp(), ts.URL, ts.URL, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	cred, err := client.ExchangeCode(ctx, "AUTH456")
	if err != nil {
		t.Fatalf("ExchangeCode error: %v", err)
	}
	if cred.AccessToken != "ctok" || cred.MerchantID != "CLV1" {
		t.Fatalf("unexpected credential: %+v", cred)
	}
	if cred.RefreshToken != "" {
		t.Fatalf("clover must not return a refresh token, got %q", cred.RefreshToken)
	}
	if cred.MerchantName != "Corner Cafe" {
		t.Fatalf("merchant name = %q, want Corner Cafe", cred.MerchantName)
	}
}

func TestCloverExchangeCode_ProviderAuthError(t *testing.T) {
	ts := cloverTestServer(t, http.StatusBadRequest)
	defer ts.Close()

	client := NewClover(testApp(), ts.URL, ts.URL, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.ExchangeCode(ctx, "BAD")
	if !errors.Is(err, ErrProviderAuth) {
		t.Fatalf("err = %v, want ErrProviderAuth", err)
	}
}

func TestCloverCreateDiscount_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/merchants/CLV1/discounts" {
			t.Fatalf("path = %s, want /v3/merchants/CLV1/discounts", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ctok" {
			t.Fatalf("authorization = %q, want Bearer ctok", got)
		}

		var body struct {
			Name       string `json:"name"`
			Amount     int    `json:"amount"`
			Percentage *int   `json:"percentage"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Name != "SAVE5-001" || body.Amount != 500 || body.Percentage != nil {
			t.Fatalf("unexpected discount body: %+v", body)
		}

		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	client := NewClover(testApp(), ts.URL, ts.URL, zap.NewNop())
	conn := model.POSConnection{System: model.POSClover, AccessToken: "ctok", MerchantID: "CLV1"}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.CreateDiscount(ctx, conn, model.PromoCode{ID: "p1", Code: "SAVE5-001"}); err != nil {
		t.Fatalf("CreateDiscount error: %v", err)
	}
}

func TestCloverCreateDiscount_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClover(testApp(), ts.URL, ts.URL, zap.NewNop())
	conn := model.POSConnection{System: model.POSClover, AccessToken: "ctok", MerchantID: "CLV1"}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.CreateDiscount(ctx, conn, model.PromoCode{ID: "p1", Code: "SAVE5-002"}); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

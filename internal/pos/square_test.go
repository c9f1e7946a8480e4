package pos

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/localperks/pos-service/internal/config"
	"github.com/localperks/pos-service/internal/model"
)

func testApp() config.ProviderApp {
	return config.ProviderApp{ClientID: "app-id", ClientSecret: "app-secret"}
}

func TestSquareExchangeCode_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/oauth2/token" {
			t.Fatalf("path = %s, want /oauth2/token", r.URL.Path)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["client_id"] != "app-id" || body["client_secret"] != "app-secret" {
			t.Fatalf("unexpected app credentials: %v", body)
		}
		if body["code"] != "AUTH123" || body["grant_type"] != "authorization_code" {
			t.Fatalf("unexpected grant fields: %v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "tok1",
			"refresh_token": "ref1",
			"merchant_id":   "SQ1",
		})
	}))
	defer ts.Close()

	client := NewSquare(testApp(), ts.URL, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	cred, err := client.ExchangeCode(ctx, "AUTH123")
	if err != nil {
		t.Fatalf("ExchangeCode error: %v", err)
	}
	if cred.AccessToken != "tok1" || cred.RefreshToken != "ref1" || cred.MerchantID != "SQ1" {
		t.Fatalf("unexpected credential: %+v", cred)
	}
}

func TestSquareExchangeCode_ProviderAuthError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"code":"invalid_grant"}]}`, http.StatusUnauthorized)
	}))
	defer ts.Close()

	client := NewSquare(testApp(), ts.URL, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.ExchangeCode(ctx, "BAD")
	if !errors.Is(err, ErrProviderAuth) {
		t.Fatalf("err = %v, want ErrProviderAuth", err)
	}
}

func TestSquareCreateDiscount_OK(t *testing.T) {
	promo := model.PromoCode{ID: "11111111-1111-1111-1111-111111111111", Code: "SAVE5-001"}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/catalog/objects" {
			t.Fatalf("path = %s, want /v2/catalog/objects", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok1" {
			t.Fatalf("authorization = %q, want Bearer tok1", got)
		}
		if got := r.Header.Get("Square-Version"); got != squareVersion {
			t.Fatalf("square version = %q, want %q", got, squareVersion)
		}

		var body struct {
			IdempotencyKey string `json:"idempotency_key"`
			Object         struct {
				Type         string `json:"type"`
				ID           string `json:"id"`
				DiscountData struct {
					Name         string `json:"name"`
					DiscountType string `json:"discount_type"`
					AmountMoney  struct {
						Amount   int    `json:"amount"`
						Currency string `json:"currency"`
					} `json:"amount_money"`
				} `json:"discount_data"`
			} `json:"object"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}

		if !strings.HasPrefix(body.IdempotencyKey, "promo-"+promo.ID+"-") {
			t.Fatalf("idempotency key = %q, want promo-%s-<nonce>", body.IdempotencyKey, promo.ID)
		}
		if body.Object.Type != "DISCOUNT" || body.Object.ID != "#SAVE5-001" {
			t.Fatalf("unexpected object: %+v", body.Object)
		}
		if body.Object.DiscountData.DiscountType != "FIXED_AMOUNT" {
			t.Fatalf("discount type = %q, want FIXED_AMOUNT", body.Object.DiscountData.DiscountType)
		}
		if body.Object.DiscountData.AmountMoney.Amount != 500 || body.Object.DiscountData.AmountMoney.Currency != "USD" {
			t.Fatalf("unexpected amount: %+v", body.Object.DiscountData.AmountMoney)
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSquare(testApp(), ts.URL, zap.NewNop())
	conn := model.POSConnection{System: model.POSSquare, AccessToken: "tok1", MerchantID: "SQ1"}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.CreateDiscount(ctx, conn, promo); err != nil {
		t.Fatalf("CreateDiscount error: %v", err)
	}
}

func TestSquareCreateDiscount_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewSquare(testApp(), ts.URL, zap.NewNop())
	conn := model.POSConnection{System: model.POSSquare, AccessToken: "tok1"}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.CreateDiscount(ctx, conn, model.PromoCode{ID: "p1", Code: "SAVE5-002"}); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

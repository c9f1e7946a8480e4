package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/localperks/pos-service/internal/config"
	"github.com/localperks/pos-service/internal/model"
)

const squareVersion = "2023-10-18"

// Square инкапсулирует HTTP-взаимодействие с API Square.
type Square struct {
	app        config.ProviderApp
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSquare создаёт клиент Square. Пустой baseURL заменяется боевым адресом.
func NewSquare(app config.ProviderApp, baseURL string, logger *zap.Logger) *Square {
	if baseURL == "" {
		baseURL = "https://connect.squareup.com"
	}
	return &Square{
		app:     app,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// System возвращает имя POS-системы.
func (s *Square) System() model.POSSystem {
	return model.POSSquare
}

type squareTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	MerchantID   string `json:"merchant_id"`
}

// ExchangeCode обменивает код авторизации на токен доступа Square.
func (s *Square) ExchangeCode(ctx context.Context, code string) (*Credential, error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":     s.app.ClientID,
		"client_secret": s.app.ClientSecret,
		"code":          code,
		"grant_type":    "authorization_code",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/oauth2/token", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Error("square token exchange failed",
			zap.Int("status", resp.StatusCode),
			zap.String("body", readErrorBody(resp.Body)),
		)
		return nil, fmt.Errorf("%w: square token endpoint returned %d", ErrProviderAuth, resp.StatusCode)
	}

	var token squareTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	return &Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		MerchantID:   token.MerchantID,
	}, nil
}

// CreateDiscount создаёт в каталоге Square объект скидки для промокода.
func (s *Square) CreateDiscount(ctx context.Context, conn model.POSConnection, promo model.PromoCode) error {
	body := map[string]any{
		// Nonce в ключе позволяет повторить синхронизацию после неудачной попытки.
		"idempotency_key": fmt.Sprintf("promo-%s-%s", promo.ID, uuid.NewString()),
		"object": map[string]any{
			"type": "DISCOUNT",
			"id":   "#" + promo.Code,
			"discount_data": map[string]any{
				"name":          promo.Code,
				"discount_type": "FIXED_AMOUNT",
				"amount_money": map[string]any{
					"amount":   discountCents,
					"currency": "USD",
				},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal catalog object: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/catalog/objects", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create catalog request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+conn.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Square-Version", squareVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Error("square discount creation failed",
			zap.String("code", promo.Code),
			zap.Int("status", resp.StatusCode),
			zap.String("body", readErrorBody(resp.Body)),
		)
		return fmt.Errorf("square catalog endpoint returned %d", resp.StatusCode)
	}

	return nil
}

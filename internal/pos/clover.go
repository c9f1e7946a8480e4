package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/localperks/pos-service/internal/config"
	"github.com/localperks/pos-service/internal/model"
)

// Clover инкапсулирует HTTP-взаимодействие с API Clover.
// OAuth и основное API живут на разных хостах.
type Clover struct {
	app        config.ProviderApp
	oauthURL   string
	apiURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClover создаёт клиент Clover. Пустые адреса заменяются боевыми.
func NewClover(app config.ProviderApp, oauthURL, apiURL string, logger *zap.Logger) *Clover {
	if oauthURL == "" {
		oauthURL = "https://www.clover.com"
	}
	if apiURL == "" {
		apiURL = "https://api.clover.com"
	}
	return &Clover{
		app:      app,
		oauthURL: strings.TrimRight(oauthURL, "/"),
		apiURL:   strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// System возвращает имя POS-системы.
func (c *Clover) System() model.POSSystem {
	return model.POSClover
}

type cloverTokenResponse struct {
	AccessToken string `json:"access_token"`
	MerchantID  string `json:"merchant_id"`
}

// ExchangeCode обменивает код авторизации на токен доступа Clover.
// Clover не выдаёт refresh-токен; имя мерчанта запрашивается отдельным вызовом.
func (c *Clover) ExchangeCode(ctx context.Context, code string) (*Credential, error) {
	form := url.Values{
		"client_id":     {c.app.ClientID},
		"client_secret": {c.app.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("clover token exchange failed",
			zap.Int("status", resp.StatusCode),
			zap.String("body", readErrorBody(resp.Body)),
		)
		return nil, fmt.Errorf("%w: clover token endpoint returned %d", ErrProviderAuth, resp.StatusCode)
	}

	var token cloverTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	cred := &Credential{
		AccessToken: token.AccessToken,
		MerchantID:  token.MerchantID,
	}
	cred.MerchantName = c.merchantName(ctx, token.AccessToken, token.MerchantID)

	return cred, nil
}

// merchantName запрашивает название мерчанта в Clover. Ошибка не критична
// для подключения, поэтому только логируется.
func (c *Clover) merchantName(ctx context.Context, accessToken, merchantID string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/v3/merchants/"+merchantID, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("clover merchant lookup failed", zap.Error(err))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("clover merchant lookup failed", zap.Int("status", resp.StatusCode))
		return ""
	}

	var merchant struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&merchant); err != nil {
		c.logger.Warn("decode clover merchant", zap.Error(err))
		return ""
	}

	return merchant.Name
}

// CreateDiscount создаёт скидку для промокода у мерчанта Clover.
// Идемпотентного ключа в этом вызове нет: повторная синхронизация может
// породить дубликат скидки на стороне провайдера.
func (c *Clover) CreateDiscount(ctx context.Context, conn model.POSConnection, promo model.PromoCode) error {
	payload, err := json.Marshal(map[string]any{
		"name":       promo.Code,
		"amount":     discountCents,
		"percentage": nil,
	})
	if err != nil {
		return fmt.Errorf("marshal discount: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v3/merchants/%s/discounts", c.apiURL, conn.MerchantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create discount request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+conn.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discount request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("clover discount creation failed",
			zap.String("code", promo.Code),
			zap.Int("status", resp.StatusCode),
			zap.String("body", readErrorBody(resp.Body)),
		)
		return fmt.Errorf("clover discount endpoint returned %d", resp.StatusCode)
	}

	return nil
}

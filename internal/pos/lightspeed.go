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

// Lightspeed инкапсулирует HTTP-взаимодействие с API Lightspeed Retail.
// Токен выдаётся облачным хостом, данные аккаунта и скидки — основным API.
type Lightspeed struct {
	app        config.ProviderApp
	cloudURL   string
	apiURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewLightspeed создаёт клиент Lightspeed. Пустые адреса заменяются боевыми.
func NewLightspeed(app config.ProviderApp, cloudURL, apiURL string, logger *zap.Logger) *Lightspeed {
	if cloudURL == "" {
		cloudURL = "https://cloud.lightspeedapp.com"
	}
	if apiURL == "" {
		apiURL = "https://api.lightspeedapp.com"
	}
	return &Lightspeed{
		app:      app,
		cloudURL: strings.TrimRight(cloudURL, "/"),
		apiURL:   strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// System возвращает имя POS-системы.
func (l *Lightspeed) System() model.POSSystem {
	return model.POSLightspeed
}

type lightspeedTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type lightspeedAccountResponse struct {
	Account struct {
		AccountID string `json:"accountID"`
		Name      string `json:"name"`
	} `json:"Account"`
}

// ExchangeCode обменивает код авторизации на токен доступа Lightspeed.
// Идентификатор аккаунта в токене отсутствует и запрашивается вторым вызовом.
func (l *Lightspeed) ExchangeCode(ctx context.Context, code string) (*Credential, error) {
	form := url.Values{
		"client_id":     {l.app.ClientID},
		"client_secret": {l.app.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cloudURL+"/oauth/access_token.php", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		l.logger.Error("lightspeed token exchange failed",
			zap.Int("status", resp.StatusCode),
			zap.String("body", readErrorBody(resp.Body)),
		)
		return nil, fmt.Errorf("%w: lightspeed token endpoint returned %d", ErrProviderAuth, resp.StatusCode)
	}

	var token lightspeedTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	account, err := l.account(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	return &Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		MerchantID:   account.Account.AccountID,
		MerchantName: account.Account.Name,
	}, nil
}

// account запрашивает данные аккаунта Lightspeed. Без идентификатора аккаунта
// подключение невозможно, поэтому ошибка считается ошибкой авторизации.
func (l *Lightspeed) account(ctx context.Context, accessToken string) (*lightspeedAccountResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.apiURL+"/API/Account.json", nil)
	if err != nil {
		return nil, fmt.Errorf("create account request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("account request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		l.logger.Error("lightspeed account lookup failed",
			zap.Int("status", resp.StatusCode),
			zap.String("body", readErrorBody(resp.Body)),
		)
		return nil, fmt.Errorf("%w: lightspeed account endpoint returned %d", ErrProviderAuth, resp.StatusCode)
	}

	var account lightspeedAccountResponse
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("decode account response: %w", err)
	}

	return &account, nil
}

// CreateDiscount создаёт скидку с купонным кодом у аккаунта Lightspeed.
// Идемпотентного ключа в этом вызове нет: повторная синхронизация может
// породить дубликат скидки на стороне провайдера.
func (l *Lightspeed) CreateDiscount(ctx context.Context, conn model.POSConnection, promo model.PromoCode) error {
	payload, err := json.Marshal(map[string]any{
		"Discount": map[string]any{
			"name":       promo.Code,
			"type":       "amount",
			"amount":     discountAmount,
			"couponCode": promo.Code,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal discount: %w", err)
	}

	endpoint := fmt.Sprintf("%s/API/Account/%s/Discount.json", l.apiURL, conn.MerchantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create discount request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+conn.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discount request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		l.logger.Error("lightspeed discount creation failed",
			zap.String("code", promo.Code),
			zap.Int("status", resp.StatusCode),
			zap.String("body", readErrorBody(resp.Body)),
		)
		return fmt.Errorf("lightspeed discount endpoint returned %d", resp.StatusCode)
	}

	return nil
}

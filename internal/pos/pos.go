// Package pos предоставляет клиенты POS-систем: обмен OAuth-кода на токен
// и создание скидки для промокода в каталоге провайдера.
package pos

import (
	"context"
	"errors"
	"io"

	"github.com/localperks/pos-service/internal/model"
)

// ErrProviderAuth возвращается, когда провайдер отклонил обмен кода авторизации.
var ErrProviderAuth = errors.New("provider authorization failed")

// Фиксированная сумма скидки. Значение-заглушка, не выводится из стоимости награды.
const (
	discountCents  = 500
	discountAmount = "5.00"
)

// Credential содержит нормализованный результат обмена кода авторизации.
type Credential struct {
	AccessToken  string
	RefreshToken string
	MerchantID   string
	MerchantName string
}

// Provider описывает контракт клиента одной POS-системы.
type Provider interface {
	System() model.POSSystem
	ExchangeCode(ctx context.Context, code string) (*Credential, error)
	CreateDiscount(ctx context.Context, conn model.POSConnection, promo model.PromoCode) error
}

// Registry хранит доступные клиенты POS-систем по имени системы.
type Registry map[model.POSSystem]Provider

// NewRegistry создаёт реестр из переданных клиентов.
func NewRegistry(providers ...Provider) Registry {
	r := make(Registry, len(providers))
	for _, p := range providers {
		r[p.System()] = p
	}
	return r
}

// Lookup возвращает клиент для указанной POS-системы.
func (r Registry) Lookup(system model.POSSystem) (Provider, bool) {
	p, ok := r[system]
	return p, ok
}

const maxErrorBody = 4 << 10

// readErrorBody читает тело ответа провайдера для записи в лог.
func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	return string(b)
}

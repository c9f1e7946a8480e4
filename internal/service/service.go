// Package service реализует бизнес-логику подключения POS-систем и синхронизации промокодов.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/localperks/pos-service/internal/model"
	"github.com/localperks/pos-service/internal/pos"
)

// ErrUnsupportedProvider возвращается для POS-системы, у которой нет клиента.
var (
	ErrUnsupportedProvider = errors.New("unsupported pos system")
	// ErrNotConnected возвращается, если мерчант не подключён к POS-системе.
	ErrNotConnected = errors.New("pos system not connected")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetMerchant(ctx context.Context, merchantID string) (*model.Merchant, error)
	SetMerchantPOS(ctx context.Context, merchantID, userID string, conn model.POSConnection) error
	ClearMerchantPOS(ctx context.Context, merchantID, userID string) error
	GetPromoCode(ctx context.Context, promoCodeID string) (*model.PromoCode, error)
	GetPromoCodesByMerchant(ctx context.Context, merchantID string) ([]model.PromoCode, error)
	SetPromoSyncStatus(ctx context.Context, promoCodeID string, status model.SyncStatus) error
	GetSyncStatuses(ctx context.Context, merchantID string) ([]model.PromoSyncState, error)
}

// Service содержит логику подключения POS-систем и синхронизации промокодов.
type Service struct {
	repo      Repository
	providers pos.Registry
	logger    *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и реестром POS-клиентов.
func NewService(repo Repository, providers pos.Registry, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		providers: providers,
		logger:    logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// ConnectResult содержит данные успешного подключения к POS-системе.
type ConnectResult struct {
	MerchantID   string
	MerchantName string
}

// Connect обменивает код авторизации на токен, сохраняет подключение на записи
// мерчанта и синхронизирует все его существующие промокоды. При неудачном
// обмене запись мерчанта не изменяется. Ошибки синхронизации отдельных
// промокодов фиксируются только в статусе и не отменяют подключение.
func (s *Service) Connect(ctx context.Context, system model.POSSystem, authCode, merchantID, userID string) (*ConnectResult, error) {
	provider, ok := s.providers.Lookup(system)
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	cred, err := provider.ExchangeCode(ctx, authCode)
	if err != nil {
		return nil, err
	}

	conn := model.POSConnection{
		System:       system,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		MerchantID:   cred.MerchantID,
		ConnectedAt:  time.Now().UTC(),
	}

	if err := s.repo.SetMerchantPOS(ctx, merchantID, userID, conn); err != nil {
		return nil, err
	}

	promoCodes, err := s.repo.GetPromoCodesByMerchant(ctx, merchantID)
	if err != nil {
		s.logger.Error("load promo codes for sync", zap.Error(err), zap.String("merchantID", merchantID))
	} else {
		s.syncAll(ctx, provider, conn, promoCodes)
	}

	return &ConnectResult{
		MerchantID:   cred.MerchantID,
		MerchantName: cred.MerchantName,
	}, nil
}

// syncAll последовательно создаёт скидку для каждого промокода. Неудача одного
// промокода не прерывает обработку остальных.
func (s *Service) syncAll(ctx context.Context, provider pos.Provider, conn model.POSConnection, promoCodes []model.PromoCode) {
	for _, promo := range promoCodes {
		status := model.SyncStatusSynced
		if err := provider.CreateDiscount(ctx, conn, promo); err != nil {
			s.logger.Error("sync promo code",
				zap.Error(err),
				zap.String("code", promo.Code),
				zap.String("system", string(conn.System)),
			)
			status = model.SyncStatusFailed
		}

		if err := s.repo.SetPromoSyncStatus(ctx, promo.ID, status); err != nil {
			s.logger.Error("update sync status", zap.Error(err), zap.String("promoCodeID", promo.ID))
		}
	}
}

// Disconnect очищает подключение мерчанта к POS-системе. Токен на стороне
// провайдера не отзывается. Повторный вызов — успешная пустая операция.
func (s *Service) Disconnect(ctx context.Context, merchantID, userID string) error {
	return s.repo.ClearMerchantPOS(ctx, merchantID, userID)
}

// SyncResult содержит итог разовой синхронизации промокода.
type SyncResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SyncOne выполняет разовую синхронизацию одного промокода. Ошибка возвращается
// только для отсутствующих сущностей и неподдерживаемых систем; неудача вызова
// провайдера отражается в SyncResult и в статусе промокода.
func (s *Service) SyncOne(ctx context.Context, promoCodeID, merchantID string) (*SyncResult, error) {
	merchant, err := s.repo.GetMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	promo, err := s.repo.GetPromoCode(ctx, promoCodeID)
	if err != nil {
		return nil, err
	}

	if !merchant.Connected() {
		return nil, ErrNotConnected
	}

	provider, ok := s.providers.Lookup(merchant.POS.System)
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	syncErr := provider.CreateDiscount(ctx, *merchant.POS, *promo)

	status := model.SyncStatusSynced
	if syncErr != nil {
		s.logger.Error("sync promo code",
			zap.Error(syncErr),
			zap.String("code", promo.Code),
			zap.String("system", string(merchant.POS.System)),
		)
		status = model.SyncStatusFailed
	}

	if err := s.repo.SetPromoSyncStatus(ctx, promo.ID, status); err != nil {
		return nil, err
	}

	if syncErr != nil {
		return &SyncResult{Success: false, Message: "Failed to sync promo code"}, nil
	}
	return &SyncResult{Success: true, Message: "Promo code synced successfully"}, nil
}

// SyncStatuses возвращает состояние синхронизации всех промокодов мерчанта.
func (s *Service) SyncStatuses(ctx context.Context, merchantID string) ([]model.PromoSyncState, error) {
	return s.repo.GetSyncStatuses(ctx, merchantID)
}

// Package model содержит доменные сущности сервиса синхронизации промокодов.
package model

import "time"

// POSSystem определяет поддерживаемую POS-систему партнёра.
type POSSystem string

const (
	POSSquare     POSSystem = "square"
	POSClover     POSSystem = "clover"
	POSLightspeed POSSystem = "lightspeed"
)

// POSConnection содержит данные подключения мерчанта к POS-системе.
// Все поля заполняются и очищаются только вместе.
type POSConnection struct {
	System       POSSystem
	AccessToken  string
	RefreshToken string
	MerchantID   string
	ConnectedAt  time.Time
}

// Merchant представляет бизнес-аккаунт партнёра программы лояльности.
type Merchant struct {
	ID           string
	UserID       string
	BusinessName string
	Approved     bool
	POS          *POSConnection
	CreatedAt    time.Time
}

// Connected сообщает, подключён ли мерчант к POS-системе.
func (m *Merchant) Connected() bool {
	return m.POS != nil && m.POS.AccessToken != "" && m.POS.System != ""
}

// SyncStatus описывает результат последней попытки синхронизации промокода.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// PromoCode описывает промокод, привязанный к награде мерчанта.
type PromoCode struct {
	ID         string
	Code       string
	MerchantID string
	RewardID   string
	SyncStatus SyncStatus
	RedeemedBy *string
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// PromoSyncState содержит состояние синхронизации одного промокода для отображения.
type PromoSyncState struct {
	ID     string     `json:"id"`
	Code   string     `json:"code"`
	Status SyncStatus `json:"status"`
}

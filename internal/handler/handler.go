// Package handler содержит HTTP-обработчики API синхронизации с POS-системами.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/localperks/pos-service/internal/middleware"
	"github.com/localperks/pos-service/internal/model"
	"github.com/localperks/pos-service/internal/pos"
	"github.com/localperks/pos-service/internal/repository"
	"github.com/localperks/pos-service/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Connect(ctx context.Context, system model.POSSystem, authCode, merchantID, userID string) (*service.ConnectResult, error)
	Disconnect(ctx context.Context, merchantID, userID string) error
	SyncOne(ctx context.Context, promoCodeID, merchantID string) (*service.SyncResult, error)
	SyncStatuses(ctx context.Context, merchantID string) ([]model.PromoSyncState, error)
}

// Handler реализует HTTP-обработчики API синхронизации с POS-системами.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// displayNames используются в сообщениях ответов подключения.
var displayNames = map[model.POSSystem]string{
	model.POSSquare:     "Square",
	model.POSClover:     "Clover",
	model.POSLightspeed: "Lightspeed",
}

type connectRequest struct {
	AuthorizationCode string `json:"authorizationCode"`
	MerchantID        string `json:"merchantId"`
}

type connectResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	MerchantID   string `json:"merchantId"`
	MerchantName string `json:"merchantName,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// ConnectSquare подключает мерчанта к Square.
func (h *Handler) ConnectSquare(w http.ResponseWriter, r *http.Request) {
	h.connect(w, r, model.POSSquare)
}

// ConnectClover подключает мерчанта к Clover.
func (h *Handler) ConnectClover(w http.ResponseWriter, r *http.Request) {
	h.connect(w, r, model.POSClover)
}

// ConnectLightspeed подключает мерчанта к Lightspeed.
func (h *Handler) ConnectLightspeed(w http.ResponseWriter, r *http.Request) {
	h.connect(w, r, model.POSLightspeed)
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request, system model.POSSystem) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.AuthorizationCode == "" || req.MerchantID == "" {
		writeError(w, http.StatusBadRequest, "authorizationCode and merchantId are required")
		return
	}

	name := displayNames[system]

	result, err := h.service.Connect(r.Context(), system, req.AuthorizationCode, req.MerchantID, userID)
	if err != nil {
		switch {
		case errors.Is(err, pos.ErrProviderAuth):
			writeError(w, http.StatusBadRequest, "Failed to connect to "+name)
		case errors.Is(err, service.ErrUnsupportedProvider):
			writeError(w, http.StatusBadRequest, "Unsupported POS system")
		case errors.Is(err, repository.ErrMerchantNotFound):
			writeError(w, http.StatusNotFound, "Merchant not found")
		default:
			h.logger.Error("connect pos error", zap.Error(err), zap.String("system", string(system)))
			writeError(w, http.StatusInternalServerError, "Failed to save connection")
		}
		return
	}

	writeJSON(w, http.StatusOK, connectResponse{
		Success:      true,
		Message:      "Successfully connected to " + name,
		MerchantID:   result.MerchantID,
		MerchantName: result.MerchantName,
	})
}

type disconnectRequest struct {
	MerchantID string `json:"merchantId"`
}

// Disconnect отключает мерчанта от POS-системы.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req disconnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.MerchantID == "" {
		writeError(w, http.StatusBadRequest, "merchantId is required")
		return
	}

	if err := h.service.Disconnect(r.Context(), req.MerchantID, userID); err != nil {
		h.logger.Error("disconnect pos error", zap.Error(err), zap.String("merchantID", req.MerchantID))
		writeError(w, http.StatusInternalServerError, "Failed to disconnect")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "POS system disconnected",
	})
}

type syncOneRequest struct {
	PromoCodeID string `json:"promoCodeId"`
	MerchantID  string `json:"merchantId"`
}

// SyncOneCode выполняет разовую синхронизацию одного промокода.
func (h *Handler) SyncOneCode(w http.ResponseWriter, r *http.Request) {
	var req syncOneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.PromoCodeID == "" || req.MerchantID == "" {
		writeError(w, http.StatusBadRequest, "promoCodeId and merchantId are required")
		return
	}

	result, err := h.service.SyncOne(r.Context(), req.PromoCodeID, req.MerchantID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMerchantNotFound):
			writeError(w, http.StatusNotFound, "Merchant not found")
		case errors.Is(err, repository.ErrPromoCodeNotFound):
			writeError(w, http.StatusNotFound, "Promo code not found")
		case errors.Is(err, service.ErrNotConnected):
			writeError(w, http.StatusBadRequest, "POS system not connected")
		case errors.Is(err, service.ErrUnsupportedProvider):
			writeError(w, http.StatusBadRequest, "Unsupported POS system")
		default:
			h.logger.Error("sync one code error", zap.Error(err), zap.String("promoCodeID", req.PromoCodeID))
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetSyncStatus возвращает состояние синхронизации промокодов мерчанта.
func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserIDFromContext(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	merchantID := r.URL.Query().Get("merchant_id")
	if merchantID == "" {
		writeError(w, http.StatusBadRequest, "merchant_id is required")
		return
	}

	statuses, err := h.service.SyncStatuses(r.Context(), merchantID)
	if err != nil {
		h.logger.Error("get sync status error", zap.Error(err), zap.String("merchantID", merchantID))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if len(statuses) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, statuses)
}

// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/localperks/pos-service/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrMerchantNotFound возвращается, если мерчант не найден или не принадлежит вызывающему пользователю.
var (
	ErrMerchantNotFound = errors.New("merchant not found")
	// ErrPromoCodeNotFound возвращается, если промокод не найден.
	ErrPromoCodeNotFound = errors.New("promo code not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetMerchant возвращает мерчанта по идентификатору.
func (r *PostgresRepository) GetMerchant(ctx context.Context, merchantID string) (*model.Merchant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, business_name, approved,
		        pos_system, pos_access_token, pos_refresh_token, pos_merchant_id, pos_connected_at,
		        created_at
		 FROM merchants
		 WHERE id = $1`,
		merchantID,
	)

	var (
		m              model.Merchant
		posSystem      *string
		posAccessToken *string
		posRefresh     *string
		posMerchantID  *string
		posConnectedAt *time.Time
	)
	err := row.Scan(&m.ID, &m.UserID, &m.BusinessName, &m.Approved,
		&posSystem, &posAccessToken, &posRefresh, &posMerchantID, &posConnectedAt,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMerchantNotFound
		}
		return nil, fmt.Errorf("get merchant: %w", err)
	}

	if posSystem != nil && posAccessToken != nil {
		conn := &model.POSConnection{
			System:      model.POSSystem(*posSystem),
			AccessToken: *posAccessToken,
		}
		if posRefresh != nil {
			conn.RefreshToken = *posRefresh
		}
		if posMerchantID != nil {
			conn.MerchantID = *posMerchantID
		}
		if posConnectedAt != nil {
			conn.ConnectedAt = *posConnectedAt
		}
		m.POS = conn
	}

	return &m, nil
}

// SetMerchantPOS сохраняет данные подключения к POS-системе на записи мерчанта.
// Обновление ограничено и идентификатором мерчанта, и владельцем: чужую запись
// изменить нельзя, в этом случае возвращается ErrMerchantNotFound.
func (r *PostgresRepository) SetMerchantPOS(ctx context.Context, merchantID, userID string, conn model.POSConnection) error {
	var refresh *string
	if conn.RefreshToken != "" {
		refresh = &conn.RefreshToken
	}

	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE merchants
		 SET pos_system = $3,
		     pos_access_token = $4,
		     pos_refresh_token = $5,
		     pos_merchant_id = $6,
		     pos_connected_at = $7
		 WHERE id = $1 AND user_id = $2`,
		merchantID, userID,
		string(conn.System), conn.AccessToken, refresh, conn.MerchantID, conn.ConnectedAt,
	)
	if err != nil {
		return fmt.Errorf("update merchant pos: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrMerchantNotFound
	}

	return nil
}

// ClearMerchantPOS очищает все поля подключения к POS-системе одним обновлением.
// Повторный вызов для уже отключённого мерчанта — успешная пустая операция.
func (r *PostgresRepository) ClearMerchantPOS(ctx context.Context, merchantID, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE merchants
		 SET pos_system = NULL,
		     pos_access_token = NULL,
		     pos_refresh_token = NULL,
		     pos_merchant_id = NULL,
		     pos_connected_at = NULL
		 WHERE id = $1 AND user_id = $2`,
		merchantID, userID,
	)
	if err != nil {
		return fmt.Errorf("clear merchant pos: %w", err)
	}

	return nil
}

// GetPromoCode возвращает промокод по идентификатору.
func (r *PostgresRepository) GetPromoCode(ctx context.Context, promoCodeID string) (*model.PromoCode, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, code, merchant_id, reward_id, pos_sync_status, redeemed_by, expires_at, created_at
		 FROM promo_codes
		 WHERE id = $1`,
		promoCodeID,
	)

	var p model.PromoCode
	err := row.Scan(&p.ID, &p.Code, &p.MerchantID, &p.RewardID, &p.SyncStatus, &p.RedeemedBy, &p.ExpiresAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromoCodeNotFound
		}
		return nil, fmt.Errorf("get promo code: %w", err)
	}

	return &p, nil
}

// GetPromoCodesByMerchant возвращает все промокоды мерчанта.
func (r *PostgresRepository) GetPromoCodesByMerchant(ctx context.Context, merchantID string) ([]model.PromoCode, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, merchant_id, reward_id, pos_sync_status, redeemed_by, expires_at, created_at
		 FROM promo_codes
		 WHERE merchant_id = $1
		 ORDER BY created_at`,
		merchantID,
	)
	if err != nil {
		return nil, fmt.Errorf("select promo codes: %w", err)
	}
	defer rows.Close()

	var res []model.PromoCode
	for rows.Next() {
		var p model.PromoCode
		if err := rows.Scan(&p.ID, &p.Code, &p.MerchantID, &p.RewardID, &p.SyncStatus, &p.RedeemedBy, &p.ExpiresAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan promo code: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// SetPromoSyncStatus записывает результат последней попытки синхронизации промокода.
func (r *PostgresRepository) SetPromoSyncStatus(ctx context.Context, promoCodeID string, status model.SyncStatus) error {
	return r.withRetry(ctx, func() error {
		cmdTag, err := r.pool.Exec(ctx,
			`UPDATE promo_codes SET pos_sync_status = $2, updated_at = now() WHERE id = $1`,
			promoCodeID, string(status),
		)
		if err != nil {
			return fmt.Errorf("update sync status: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrPromoCodeNotFound
		}
		return nil
	})
}

// GetSyncStatuses возвращает состояние синхронизации всех промокодов мерчанта.
func (r *PostgresRepository) GetSyncStatuses(ctx context.Context, merchantID string) ([]model.PromoSyncState, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, pos_sync_status
		 FROM promo_codes
		 WHERE merchant_id = $1
		 ORDER BY created_at`,
		merchantID,
	)
	if err != nil {
		return nil, fmt.Errorf("select sync statuses: %w", err)
	}
	defer rows.Close()

	var res []model.PromoSyncState
	for rows.Next() {
		var s model.PromoSyncState
		if err := rows.Scan(&s.ID, &s.Code, &s.Status); err != nil {
			return nil, fmt.Errorf("scan sync status: %w", err)
		}
		res = append(res, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storyverse-server/internal/domain/wallet"
)

// WalletRepository MySQL実装のWalletRepository
type WalletRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewWalletRepository 新しいWalletRepositoryを作成
func NewWalletRepository(db *DB) *WalletRepository {
	return &WalletRepository{
		db:     db,
		tracer: otel.Tracer("wallet-repository"),
	}
}

// FindByUserID ユーザーIDでウォレットを取得
func (r *WalletRepository) FindByUserID(ctx context.Context, userID string) (*wallet.Wallet, error) {
	ctx, span := r.tracer.Start(ctx, "WalletRepository.FindByUserID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "wallets"),
	)

	query := `
		SELECT user_id, balance, version
		FROM wallets
		WHERE user_id = ?
	`

	var dbUserID string
	var balance int64
	var version int

	err := r.db.executor(ctx).QueryRowContext(ctx, query, userID).Scan(
		&dbUserID,
		&balance,
		&version,
	)

	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "wallet not found")
		return nil, wallet.ErrWalletNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find wallet: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("db.balance", balance),
		attribute.Int("db.version", version),
	)
	span.SetStatus(otelcodes.Ok, "wallet found")

	w, err := wallet.NewWallet(dbUserID, balance, version)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct wallet entity: %w", err)
	}

	return w, nil
}

// Save ウォレットを保存（更新、楽観的ロック対応）
func (r *WalletRepository) Save(ctx context.Context, w *wallet.Wallet) error {
	ctx, span := r.tracer.Start(ctx, "WalletRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", w.UserID()),
		attribute.Int64("db.balance", w.Balance()),
		attribute.Int("db.version", w.Version()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "wallets"),
	)

	// Credit/Debitでエンティティ側のversionは既に加算済みのため、
	// WHERE句には更新前のversion（現在値-1）を使う
	query := `
		UPDATE wallets
		SET balance = ?, version = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND version = ?
	`

	result, err := r.db.executor(ctx).ExecContext(ctx, query,
		w.Balance(),
		w.Version(),
		w.UserID(),
		w.Version()-1,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save wallet: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err := fmt.Errorf("optimistic lock failed: version mismatch or wallet not found")
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
	span.SetStatus(otelcodes.Ok, "wallet saved")
	return nil
}

// Create 新しいウォレットを作成
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	ctx, span := r.tracer.Start(ctx, "WalletRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", w.UserID()),
		attribute.Int64("db.balance", w.Balance()),
		attribute.Int("db.version", w.Version()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "wallets"),
	)

	query := `
		INSERT INTO wallets (user_id, balance, version)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		w.UserID(),
		w.Balance(),
		w.Version(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "wallet created")
	return nil
}

// FindAll 全ウォレットを取得（残高照合用）
func (r *WalletRepository) FindAll(ctx context.Context) ([]*wallet.Wallet, error) {
	ctx, span := r.tracer.Start(ctx, "WalletRepository.FindAll")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "wallets"),
	)

	query := `
		SELECT user_id, balance, version
		FROM wallets
		ORDER BY user_id
	`

	rows, err := r.db.executor(ctx).QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*wallet.Wallet
	for rows.Next() {
		var userID string
		var balance int64
		var version int
		if err := rows.Scan(&userID, &balance, &version); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		w, err := wallet.NewWallet(userID, balance, version)
		if err != nil {
			return nil, fmt.Errorf("failed to reconstruct wallet entity: %w", err)
		}
		wallets = append(wallets, w)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate wallets: %w", err)
	}

	span.SetAttributes(attribute.Int("db.result_count", len(wallets)))
	span.SetStatus(otelcodes.Ok, fmt.Sprintf("found %d wallets", len(wallets)))
	return wallets, nil
}

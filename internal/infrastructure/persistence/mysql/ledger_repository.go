package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storyverse-server/internal/domain/ledger"
)

// LedgerRepository MySQL実装のTransactionRepository
type LedgerRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewLedgerRepository 新しいLedgerRepositoryを作成
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{
		db:     db,
		tracer: otel.Tracer("ledger-repository"),
	}
}

const transactionColumns = `
	transaction_id, user_id, tx_type, coins,
	balance_before, balance_after, reason,
	rule_key, refund_of_id, meta, created_at
`

// Save トランザクションを保存（追記のみ・更新は行わない）
func (r *LedgerRepository) Save(ctx context.Context, t *ledger.Transaction) error {
	ctx, span := r.tracer.Start(ctx, "LedgerRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.transaction_id", t.TransactionID()),
		attribute.String("db.user_id", t.UserID()),
		attribute.String("db.tx_type", t.TransactionType().String()),
		attribute.Int64("db.coins", t.Coins()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "coin_transactions"),
	)

	query := `
		INSERT INTO coin_transactions (
			transaction_id, user_id, tx_type, coins,
			balance_before, balance_after, reason,
			rule_key, refund_of_id, meta, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var metaValue interface{}
	if t.Meta() != nil {
		metaJSON, err := json.Marshal(t.Meta())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return fmt.Errorf("failed to marshal meta: %w", err)
		}
		metaValue = string(metaJSON)
	}

	ruleKey := t.RuleKey()
	var ruleKeyValue interface{}
	if ruleKey != nil {
		ruleKeyValue = *ruleKey
	}

	refundOfID := t.RefundOfID()
	var refundOfIDValue interface{}
	if refundOfID != nil {
		refundOfIDValue = *refundOfID
	}

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		t.TransactionID(),
		t.UserID(),
		t.TransactionType().String(),
		t.Coins(),
		t.BalanceBefore(),
		t.BalanceAfter(),
		t.Reason(),
		ruleKeyValue,
		refundOfIDValue,
		metaValue,
		t.CreatedAt(),
	)

	if err != nil {
		var mysqlErr *mysql.MySQLError
		// 1062 = ER_DUP_ENTRY
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			span.SetStatus(otelcodes.Ok, "duplicate transaction id")
			return ledger.ErrDuplicateTransactionID
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "transaction saved")
	return nil
}

// scanTransaction 1行分のトランザクションをエンティティとして復元
func scanTransaction(scan func(dest ...interface{}) error) (*ledger.Transaction, error) {
	var dbTransactionID, dbUserID, dbTxType, dbReason string
	var coins, balanceBefore, balanceAfter int64
	var ruleKey sql.NullString
	var refundOfID sql.NullString
	var metaJSON sql.NullString
	var createdAt time.Time

	if err := scan(
		&dbTransactionID,
		&dbUserID,
		&dbTxType,
		&coins,
		&balanceBefore,
		&balanceAfter,
		&dbReason,
		&ruleKey,
		&refundOfID,
		&metaJSON,
		&createdAt,
	); err != nil {
		return nil, err
	}

	tt, err := ledger.NewTransactionType(dbTxType)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction type: %w", err)
	}

	var meta map[string]interface{}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meta: %w", err)
		}
	}

	var ruleKeyPtr *string
	if ruleKey.Valid {
		v := ruleKey.String
		ruleKeyPtr = &v
	}
	var refundOfIDPtr *string
	if refundOfID.Valid {
		v := refundOfID.String
		refundOfIDPtr = &v
	}

	t, err := ledger.ReconstructTransaction(
		dbTransactionID,
		dbUserID,
		tt,
		coins,
		balanceBefore,
		balanceAfter,
		dbReason,
		ruleKeyPtr,
		refundOfIDPtr,
		meta,
		createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct transaction entity: %w", err)
	}

	return t, nil
}

// FindByTransactionID トランザクションIDでトランザクションを取得
func (r *LedgerRepository) FindByTransactionID(ctx context.Context, transactionID string) (*ledger.Transaction, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerRepository.FindByTransactionID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.transaction_id", transactionID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "coin_transactions"),
	)

	query := `
		SELECT ` + transactionColumns + `
		FROM coin_transactions
		WHERE transaction_id = ?
	`

	row := r.db.executor(ctx).QueryRowContext(ctx, query, transactionID)
	t, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "transaction not found")
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "transaction found")
	return t, nil
}

// FindByUserID ユーザーIDでトランザクション一覧を取得（理由・タイプの部分一致フィルタとページネーション対応）
func (r *LedgerRepository) FindByUserID(ctx context.Context, userID string, query string, limit, offset int) ([]*ledger.Transaction, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerRepository.FindByUserID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.query", query),
		attribute.Int("db.limit", limit),
		attribute.Int("db.offset", offset),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "coin_transactions"),
	)

	sqlQuery := `
		SELECT ` + transactionColumns + `
		FROM coin_transactions
		WHERE user_id = ?
	`
	args := []interface{}{userID}

	if query != "" {
		sqlQuery += ` AND (reason LIKE ? OR tx_type LIKE ?)`
		pattern := "%" + query + "%"
		args = append(args, pattern, pattern)
	}

	sqlQuery += `
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, limit, offset)

	rows, err := r.db.executor(ctx).QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	span.SetAttributes(attribute.Int("db.result_count", len(transactions)))
	span.SetStatus(otelcodes.Ok, fmt.Sprintf("found %d transactions", len(transactions)))
	return transactions, nil
}

// FindRefundOf 指定トランザクションを取り消したrefundトランザクションを取得
func (r *LedgerRepository) FindRefundOf(ctx context.Context, transactionID string) (*ledger.Transaction, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerRepository.FindRefundOf")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.refund_of_id", transactionID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "coin_transactions"),
	)

	query := `
		SELECT ` + transactionColumns + `
		FROM coin_transactions
		WHERE refund_of_id = ?
		LIMIT 1
	`

	row := r.db.executor(ctx).QueryRowContext(ctx, query, transactionID)
	t, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "refund not found")
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find refund: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "refund found")
	return t, nil
}

// SumByUserID ユーザーの全トランザクションの符号付き合計を取得
func (r *LedgerRepository) SumByUserID(ctx context.Context, userID string) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerRepository.SumByUserID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "coin_transactions"),
	)

	query := `
		SELECT COALESCE(SUM(coins), 0)
		FROM coin_transactions
		WHERE user_id = ?
	`

	var sum int64
	if err := r.db.executor(ctx).QueryRowContext(ctx, query, userID).Scan(&sum); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.sum", sum))
	span.SetStatus(otelcodes.Ok, "sum computed")
	return sum, nil
}

// SumEarnedByRuleBetween 期間内に指定ルールで獲得したコインの合計を取得（日次上限の判定用）
func (r *LedgerRepository) SumEarnedByRuleBetween(ctx context.Context, userID, ruleKey string, from, to time.Time) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerRepository.SumEarnedByRuleBetween")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.rule_key", ruleKey),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "coin_transactions"),
	)

	query := `
		SELECT COALESCE(SUM(coins), 0)
		FROM coin_transactions
		WHERE user_id = ? AND rule_key = ? AND tx_type = 'earn'
		  AND created_at >= ? AND created_at < ?
	`

	var sum int64
	if err := r.db.executor(ctx).QueryRowContext(ctx, query, userID, ruleKey, from, to).Scan(&sum); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, fmt.Errorf("failed to sum earned coins: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.sum", sum))
	span.SetStatus(otelcodes.Ok, "sum computed")
	return sum, nil
}

// SummaryByUserID ログから再計算した獲得・消費の集計を取得
func (r *LedgerRepository) SummaryByUserID(ctx context.Context, userID string) (*ledger.Summary, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerRepository.SummaryByUserID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "coin_transactions"),
	)

	query := `
		SELECT
			COALESCE(SUM(CASE WHEN coins > 0 THEN coins ELSE 0 END), 0) AS earned,
			COALESCE(SUM(CASE WHEN tx_type = 'redeem' AND coins < 0 THEN -coins ELSE 0 END), 0) AS used
		FROM coin_transactions
		WHERE user_id = ?
	`

	var summary ledger.Summary
	if err := r.db.executor(ctx).QueryRowContext(ctx, query, userID).Scan(&summary.Earned, &summary.Used); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to compute summary: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("db.earned", summary.Earned),
		attribute.Int64("db.used", summary.Used),
	)
	span.SetStatus(otelcodes.Ok, "summary computed")
	return &summary, nil
}

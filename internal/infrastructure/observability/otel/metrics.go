package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics メトリクス定義
type Metrics struct {
	// トランザクション数（タイプ別）
	TransactionCount metric.Int64Counter

	// 付与コイン数（ルール別）
	CoinsGranted metric.Int64Counter

	// 消費コイン数
	CoinsSpent metric.Int64Counter

	// 日次上限によるクランプ発生件数
	CapClampCount metric.Int64Counter

	// チャプター解錠件数
	ChapterUnlockCount metric.Int64Counter

	// 残高照合で検出した不一致件数
	ReconcileDriftCount metric.Int64Counter

	// ウォレット残高の分布
	WalletBalance metric.Int64Gauge

	// リクエスト数
	RequestCount metric.Int64Counter

	// レスポンス時間
	ResponseTime metric.Float64Histogram

	// エラー率
	ErrorCount metric.Int64Counter
}

// NewMetrics 新しいMetricsを作成
func NewMetrics(meterName string) (*Metrics, error) {
	meter := otel.Meter(meterName)

	transactionCount, err := meter.Int64Counter(
		"coin_transactions_total",
		metric.WithDescription("Total number of coin transactions"),
	)
	if err != nil {
		return nil, err
	}

	coinsGranted, err := meter.Int64Counter(
		"coins_granted_total",
		metric.WithDescription("Total coins granted by reward rules"),
	)
	if err != nil {
		return nil, err
	}

	coinsSpent, err := meter.Int64Counter(
		"coins_spent_total",
		metric.WithDescription("Total coins spent"),
	)
	if err != nil {
		return nil, err
	}

	capClampCount, err := meter.Int64Counter(
		"reward_cap_clamps_total",
		metric.WithDescription("Total number of grants clamped by a daily cap"),
	)
	if err != nil {
		return nil, err
	}

	chapterUnlockCount, err := meter.Int64Counter(
		"chapter_unlocks_total",
		metric.WithDescription("Total number of chapter unlocks"),
	)
	if err != nil {
		return nil, err
	}

	reconcileDriftCount, err := meter.Int64Counter(
		"reconcile_drift_total",
		metric.WithDescription("Total number of wallet/ledger mismatches detected"),
	)
	if err != nil {
		return nil, err
	}

	walletBalance, err := meter.Int64Gauge(
		"wallet_balance",
		metric.WithDescription("Wallet balance"),
	)
	if err != nil {
		return nil, err
	}

	requestCount, err := meter.Int64Counter(
		"requests_total",
		metric.WithDescription("Total number of requests"),
	)
	if err != nil {
		return nil, err
	}

	responseTime, err := meter.Float64Histogram(
		"response_time_seconds",
		metric.WithDescription("Response time in seconds"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"errors_total",
		metric.WithDescription("Total number of errors"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		TransactionCount:    transactionCount,
		CoinsGranted:        coinsGranted,
		CoinsSpent:          coinsSpent,
		CapClampCount:       capClampCount,
		ChapterUnlockCount:  chapterUnlockCount,
		ReconcileDriftCount: reconcileDriftCount,
		WalletBalance:       walletBalance,
		RequestCount:        requestCount,
		ResponseTime:        responseTime,
		ErrorCount:          errorCount,
	}, nil
}

// RecordTransaction トランザクションを記録
func (m *Metrics) RecordTransaction(ctx context.Context, transactionType string) {
	m.TransactionCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("transaction_type", transactionType),
		),
	)
}

// RecordCoinsGranted 付与コインを記録
func (m *Metrics) RecordCoinsGranted(ctx context.Context, ruleKey string, coins int64) {
	m.CoinsGranted.Add(ctx, coins,
		metric.WithAttributes(
			attribute.String("rule_key", ruleKey),
		),
	)
}

// RecordCoinsSpent 消費コインを記録
func (m *Metrics) RecordCoinsSpent(ctx context.Context, reason string, coins int64) {
	m.CoinsSpent.Add(ctx, coins,
		metric.WithAttributes(
			attribute.String("reason", reason),
		),
	)
}

// RecordCapClamp 日次上限によるクランプを記録
func (m *Metrics) RecordCapClamp(ctx context.Context, ruleKey string) {
	m.CapClampCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("rule_key", ruleKey),
		),
	)
}

// RecordChapterUnlock チャプター解錠を記録
func (m *Metrics) RecordChapterUnlock(ctx context.Context, chapterNo int) {
	m.ChapterUnlockCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.Int("chapter_no", chapterNo),
		),
	)
}

// RecordReconcileDrift 残高照合の不一致を記録
func (m *Metrics) RecordReconcileDrift(ctx context.Context, userID string) {
	m.ReconcileDriftCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("user_id", userID),
		),
	)
}

// RecordWalletBalance ウォレット残高を記録
func (m *Metrics) RecordWalletBalance(ctx context.Context, userID string, balance int64) {
	m.WalletBalance.Record(ctx, balance,
		metric.WithAttributes(
			attribute.String("user_id", userID),
		),
	)
}

// RecordRequest リクエストを記録
func (m *Metrics) RecordRequest(ctx context.Context, method, path string) {
	m.RequestCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordResponseTime レスポンス時間を記録
func (m *Metrics) RecordResponseTime(ctx context.Context, method, path string, duration float64) {
	m.ResponseTime.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordError エラーを記録
func (m *Metrics) RecordError(ctx context.Context, errorType string) {
	m.ErrorCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error_type", errorType),
		),
	)
}

package reconcile

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storyverse-server/internal/domain/ledger"
	"storyverse-server/internal/domain/wallet"
	otelinfra "storyverse-server/internal/infrastructure/observability/otel"
)

// SweepResult 残高照合の結果
type SweepResult struct {
	Checked int
	Drifted int
}

// ReconcileApplicationService ウォレット残高と台帳の照合サービス
// wallet.balance == SUM(coin_transactions.coins) の不変条件を定期的に検証する
type ReconcileApplicationService struct {
	walletRepo      wallet.WalletRepository
	transactionRepo ledger.TransactionRepository
	logger          *otelinfra.Logger
	metrics         *otelinfra.Metrics
	tracer          trace.Tracer
}

// NewReconcileApplicationService 新しいReconcileApplicationServiceを作成
func NewReconcileApplicationService(
	walletRepo wallet.WalletRepository,
	transactionRepo ledger.TransactionRepository,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *ReconcileApplicationService {
	return &ReconcileApplicationService{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		logger:          logger,
		metrics:         metrics,
		tracer:          otel.Tracer("reconcile-service"),
	}
}

// Sweep 全ウォレットを走査し、台帳合計との不一致を検出
// 不一致は修復せず、ログとメトリクスで報告する
func (s *ReconcileApplicationService) Sweep(ctx context.Context) (*SweepResult, error) {
	ctx, span := s.tracer.Start(ctx, "ReconcileApplicationService.Sweep")
	defer span.End()

	s.logger.Info(ctx, "Starting reconciliation sweep", nil)

	wallets, err := s.walletRepo.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to list wallets", err, nil)
		return nil, err
	}

	result := &SweepResult{}
	for _, w := range wallets {
		result.Checked++

		sum, err := s.transactionRepo.SumByUserID(ctx, w.UserID())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			s.logger.Error(ctx, "Failed to sum transactions", err, map[string]interface{}{
				"user_id": w.UserID(),
			})
			return nil, err
		}

		if sum != w.Balance() {
			result.Drifted++
			s.metrics.RecordReconcileDrift(ctx, w.UserID())
			s.logger.Warn(ctx, "Wallet balance drift detected", map[string]interface{}{
				"user_id":        w.UserID(),
				"wallet_balance": w.Balance(),
				"ledger_sum":     sum,
			})
		}
	}

	span.SetAttributes(
		attribute.Int("reconcile.checked", result.Checked),
		attribute.Int("reconcile.drifted", result.Drifted),
	)

	s.logger.Info(ctx, "Reconciliation sweep finished", map[string]interface{}{
		"checked": result.Checked,
		"drifted": result.Drifted,
	})

	return result, nil
}

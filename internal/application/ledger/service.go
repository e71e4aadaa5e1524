package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storyverse-server/internal/domain/ledger"
	"storyverse-server/internal/domain/rewardrule"
	"storyverse-server/internal/domain/user"
	"storyverse-server/internal/domain/wallet"
	otelinfra "storyverse-server/internal/infrastructure/observability/otel"
)

// LedgerApplicationService コイン台帳アプリケーションサービス
type LedgerApplicationService struct {
	walletRepo      wallet.WalletRepository
	transactionRepo ledger.TransactionRepository
	ruleRepo        rewardrule.RewardRuleRepository
	userRepo        user.UserRepository
	txManager       ledger.TransactionManager
	logger          *otelinfra.Logger
	metrics         *otelinfra.Metrics
	tracer          trace.Tracer
	maxRetries      int
}

// NewLedgerApplicationService 新しいLedgerApplicationServiceを作成
func NewLedgerApplicationService(
	walletRepo wallet.WalletRepository,
	transactionRepo ledger.TransactionRepository,
	ruleRepo rewardrule.RewardRuleRepository,
	userRepo user.UserRepository,
	txManager ledger.TransactionManager,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *LedgerApplicationService {
	return &LedgerApplicationService{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		ruleRepo:        ruleRepo,
		userRepo:        userRepo,
		txManager:       txManager,
		logger:          logger,
		metrics:         metrics,
		tracer:          otel.Tracer("ledger-service"),
		maxRetries:      3,
	}
}

// Earn リワードルールに従ってコインを付与
// 日次上限（UTC日境界）に達している場合は残り枠にクランプし、0コインになる場合は
// トランザクションを追記しない
func (s *LedgerApplicationService) Earn(ctx context.Context, req *EarnRequest) (*EarnResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.Earn")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("rule_key", req.RuleKey),
	)

	s.logger.Info(ctx, "Earning coins", map[string]interface{}{
		"user_id":  req.UserID,
		"rule_key": req.RuleKey,
	})

	rule, err := s.ruleRepo.FindByKey(ctx, req.RuleKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if !rule.Enabled() {
		err := rewardrule.ErrRuleDisabled
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	// トランザクションIDを生成
	transactionID := s.generateTransactionID()

	var result *EarnResponse
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		// 楽観的ロックのリトライロジック
		var retryErr error
		for attempt := 0; attempt < s.maxRetries; attempt++ {
			if attempt > 0 {
				// 指数バックオフ
				backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 10 * time.Millisecond
				time.Sleep(backoff)
			}

			// 本日（UTC日境界）の獲得済みコインを集計し、付与可能額を決める
			from, to := utcDayWindow(time.Now())
			grantedToday, err := s.transactionRepo.SumEarnedByRuleBetween(ctx, req.UserID, req.RuleKey, from, to)
			if err != nil {
				return fmt.Errorf("failed to sum earned coins: %w", err)
			}

			grant := rule.AllowedGrant(grantedToday)

			// ウォレットを取得（存在しない場合は作成）
			w, err := s.walletRepo.FindByUserID(ctx, req.UserID)
			if err != nil && !errors.Is(err, wallet.ErrWalletNotFound) {
				return fmt.Errorf("failed to find wallet: %w", err)
			}
			if w == nil {
				if err := s.userRepo.EnsureExists(ctx, req.UserID); err != nil {
					return fmt.Errorf("failed to ensure user exists: %w", err)
				}
				w, err = wallet.NewWallet(req.UserID, 0, 0)
				if err != nil {
					return err
				}
				if err := s.walletRepo.Create(ctx, w); err != nil {
					return fmt.Errorf("failed to create wallet: %w", err)
				}
			}

			if grant == 0 {
				// 上限到達: 何も追記せずクランプだけ記録する
				s.metrics.RecordCapClamp(ctx, req.RuleKey)
				result = &EarnResponse{
					TransactionID: "",
					CoinsAwarded:  0,
					BalanceAfter:  w.Balance(),
					Capped:        true,
				}
				return nil
			}

			balanceBefore := w.Balance()

			if err := w.Credit(grant); err != nil {
				return err
			}

			// 保存（楽観的ロック）
			if err := s.walletRepo.Save(ctx, w); err != nil {
				if attempt < s.maxRetries-1 {
					retryErr = err
					continue
				}
				return fmt.Errorf("failed to save wallet after retries: %w", err)
			}

			// 台帳に追記
			txn, err := ledger.NewTransaction(
				transactionID,
				req.UserID,
				ledger.TransactionTypeEarn,
				grant,
				balanceBefore,
				w.Balance(),
				rule.Label(),
				req.Metadata,
			)
			if err != nil {
				return err
			}
			txn.SetRuleKey(req.RuleKey)

			if err := s.transactionRepo.Save(ctx, txn); err != nil {
				return fmt.Errorf("failed to save transaction: %w", err)
			}

			// メトリクス記録
			capped := grant < rule.Coins()
			if capped {
				s.metrics.RecordCapClamp(ctx, req.RuleKey)
			}
			s.metrics.RecordTransaction(ctx, "earn")
			s.metrics.RecordCoinsGranted(ctx, req.RuleKey, grant)
			s.metrics.RecordWalletBalance(ctx, req.UserID, w.Balance())

			result = &EarnResponse{
				TransactionID: transactionID,
				CoinsAwarded:  grant,
				BalanceAfter:  w.Balance(),
				Capped:        capped,
			}

			return nil
		}

		return retryErr
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to earn coins", err, map[string]interface{}{
			"user_id":  req.UserID,
			"rule_key": req.RuleKey,
		})
		s.metrics.RecordError(ctx, "earn_failed")
		return nil, err
	}

	s.logger.Info(ctx, "Coins earned", map[string]interface{}{
		"user_id":        req.UserID,
		"rule_key":       req.RuleKey,
		"transaction_id": result.TransactionID,
		"coins_awarded":  result.CoinsAwarded,
		"capped":         result.Capped,
	})

	return result, nil
}

// Adjust 残高を手動調整（管理者用）
// マイナス調整で残高を下回る場合はErrInsufficientBalanceを返す
func (s *LedgerApplicationService) Adjust(ctx context.Context, req *AdjustRequest) (*AdjustResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.Adjust")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.Int64("delta", req.Delta),
		attribute.String("reason", req.Reason),
	)

	s.logger.Info(ctx, "Adjusting balance", map[string]interface{}{
		"user_id": req.UserID,
		"delta":   req.Delta,
		"reason":  req.Reason,
	})

	if req.Delta == 0 {
		err := ledger.ErrInvalidCoins
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	transactionID := s.generateTransactionID()

	var result *AdjustResponse
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var retryErr error
		for attempt := 0; attempt < s.maxRetries; attempt++ {
			if attempt > 0 {
				backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 10 * time.Millisecond
				time.Sleep(backoff)
			}

			w, err := s.walletRepo.FindByUserID(ctx, req.UserID)
			if err != nil && !errors.Is(err, wallet.ErrWalletNotFound) {
				return fmt.Errorf("failed to find wallet: %w", err)
			}
			if w == nil {
				if req.Delta < 0 {
					return wallet.ErrInsufficientBalance
				}
				if err := s.userRepo.EnsureExists(ctx, req.UserID); err != nil {
					return fmt.Errorf("failed to ensure user exists: %w", err)
				}
				w, err = wallet.NewWallet(req.UserID, 0, 0)
				if err != nil {
					return err
				}
				if err := s.walletRepo.Create(ctx, w); err != nil {
					return fmt.Errorf("failed to create wallet: %w", err)
				}
			}

			balanceBefore := w.Balance()

			if req.Delta > 0 {
				if err := w.Credit(req.Delta); err != nil {
					return err
				}
			} else {
				if err := w.Debit(-req.Delta); err != nil {
					return err
				}
			}

			if err := s.walletRepo.Save(ctx, w); err != nil {
				if attempt < s.maxRetries-1 {
					retryErr = err
					continue
				}
				return fmt.Errorf("failed to save wallet after retries: %w", err)
			}

			txn, err := ledger.NewTransaction(
				transactionID,
				req.UserID,
				ledger.TransactionTypeAdjust,
				req.Delta,
				balanceBefore,
				w.Balance(),
				req.Reason,
				nil,
			)
			if err != nil {
				return err
			}

			if err := s.transactionRepo.Save(ctx, txn); err != nil {
				return fmt.Errorf("failed to save transaction: %w", err)
			}

			s.metrics.RecordTransaction(ctx, "adjust")
			s.metrics.RecordWalletBalance(ctx, req.UserID, w.Balance())

			result = &AdjustResponse{
				TransactionID: transactionID,
				BalanceAfter:  w.Balance(),
			}

			return nil
		}

		return retryErr
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to adjust balance", err, map[string]interface{}{
			"user_id": req.UserID,
			"delta":   req.Delta,
		})
		s.metrics.RecordError(ctx, "adjust_failed")
		return nil, err
	}

	s.logger.Info(ctx, "Balance adjusted", map[string]interface{}{
		"user_id":        req.UserID,
		"transaction_id": transactionID,
		"balance_after":  result.BalanceAfter,
	})

	return result, nil
}

// Refund 既存トランザクションを取り消す補償トランザクションを追記
// 元のトランザクションは変更せず、逆符号のrefundトランザクションで打ち消す
func (s *LedgerApplicationService) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.Refund")
	defer span.End()

	span.SetAttributes(
		attribute.String("transaction_id", req.TransactionID),
	)

	s.logger.Info(ctx, "Refunding transaction", map[string]interface{}{
		"transaction_id": req.TransactionID,
	})

	refundTransactionID := s.generateTransactionID()

	var result *RefundResponse
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		original, err := s.transactionRepo.FindByTransactionID(ctx, req.TransactionID)
		if err != nil {
			return err
		}

		if original.TransactionType() == ledger.TransactionTypeRefund {
			return ledger.ErrNotRefundable
		}

		// 二重取り消しの防止
		_, err = s.transactionRepo.FindRefundOf(ctx, req.TransactionID)
		if err == nil {
			return ledger.ErrAlreadyRefunded
		}
		if !errors.Is(err, ledger.ErrTransactionNotFound) {
			return fmt.Errorf("failed to check existing refund: %w", err)
		}

		refundCoins := -original.Coins()

		var retryErr error
		for attempt := 0; attempt < s.maxRetries; attempt++ {
			if attempt > 0 {
				backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 10 * time.Millisecond
				time.Sleep(backoff)
			}

			w, err := s.walletRepo.FindByUserID(ctx, original.UserID())
			if err != nil {
				return fmt.Errorf("failed to find wallet: %w", err)
			}

			balanceBefore := w.Balance()

			if refundCoins > 0 {
				if err := w.Credit(refundCoins); err != nil {
					return err
				}
			} else {
				if err := w.Debit(-refundCoins); err != nil {
					return err
				}
			}

			if err := s.walletRepo.Save(ctx, w); err != nil {
				if attempt < s.maxRetries-1 {
					retryErr = err
					continue
				}
				return fmt.Errorf("failed to save wallet after retries: %w", err)
			}

			txn, err := ledger.NewTransaction(
				refundTransactionID,
				original.UserID(),
				ledger.TransactionTypeRefund,
				refundCoins,
				balanceBefore,
				w.Balance(),
				fmt.Sprintf("refund of %s", original.TransactionID()),
				nil,
			)
			if err != nil {
				return err
			}
			txn.SetRefundOfID(original.TransactionID())

			if err := s.transactionRepo.Save(ctx, txn); err != nil {
				return fmt.Errorf("failed to save transaction: %w", err)
			}

			s.metrics.RecordTransaction(ctx, "refund")
			s.metrics.RecordWalletBalance(ctx, original.UserID(), w.Balance())

			result = &RefundResponse{
				RefundTransactionID: refundTransactionID,
				Coins:               refundCoins,
				BalanceAfter:        w.Balance(),
			}

			return nil
		}

		return retryErr
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to refund transaction", err, map[string]interface{}{
			"transaction_id": req.TransactionID,
		})
		s.metrics.RecordError(ctx, "refund_failed")
		return nil, err
	}

	s.logger.Info(ctx, "Transaction refunded", map[string]interface{}{
		"transaction_id":        req.TransactionID,
		"refund_transaction_id": refundTransactionID,
		"coins":                 result.Coins,
	})

	return result, nil
}

// Summary コインサマリーを取得
// Availableはウォレット、Used/Earnedはログからの再計算値
func (s *LedgerApplicationService) Summary(ctx context.Context, req *SummaryRequest) (*SummaryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.Summary")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
	)

	var available int64
	w, err := s.walletRepo.FindByUserID(ctx, req.UserID)
	if err != nil && !errors.Is(err, wallet.ErrWalletNotFound) {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find wallet: %w", err)
	}
	if w != nil {
		available = w.Balance()
	}

	summary, err := s.transactionRepo.SummaryByUserID(ctx, req.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to compute summary: %w", err)
	}

	return &SummaryResponse{
		UserID:    req.UserID,
		Available: available,
		Used:      summary.Used,
		Earned:    summary.Earned,
	}, nil
}

// ListTransactions トランザクション一覧を取得（管理者用）
func (s *LedgerApplicationService) ListTransactions(ctx context.Context, req *ListTransactionsRequest) (*ListTransactionsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.ListTransactions")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("query", req.Query),
		attribute.Int("limit", req.Limit),
		attribute.Int("offset", req.Offset),
	)

	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	transactions, err := s.transactionRepo.FindByUserID(ctx, req.UserID, req.Query, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to list transactions", err, map[string]interface{}{
			"user_id": req.UserID,
		})
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	dtos := make([]TransactionDTO, 0, len(transactions))
	for _, t := range transactions {
		dtos = append(dtos, TransactionDTO{
			TransactionID: t.TransactionID(),
			UserID:        t.UserID(),
			Type:          t.TransactionType().String(),
			Coins:         t.Coins(),
			BalanceBefore: t.BalanceBefore(),
			BalanceAfter:  t.BalanceAfter(),
			Reason:        t.Reason(),
			RuleKey:       t.RuleKey(),
			RefundOfID:    t.RefundOfID(),
			CreatedAt:     t.CreatedAt(),
		})
	}

	return &ListTransactionsResponse{Transactions: dtos}, nil
}

// generateTransactionID トランザクションIDを生成
func (s *LedgerApplicationService) generateTransactionID() string {
	return fmt.Sprintf("txn_%d", time.Now().UnixNano())
}

// utcDayWindow 指定時刻を含むUTC日の窓 [from, to) を返す
func utcDayWindow(now time.Time) (time.Time, time.Time) {
	utc := now.UTC()
	from := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.Add(24 * time.Hour)
}

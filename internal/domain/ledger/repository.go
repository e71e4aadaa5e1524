package ledger

import (
	"context"
	"time"
)

// Summary トランザクションログから再計算した集計値
type Summary struct {
	// Earned プラスのトランザクションの合計
	Earned int64
	// Used マイナスのredeemトランザクションの絶対値合計
	Used int64
}

// TransactionRepository トランザクションリポジトリインターフェース
type TransactionRepository interface {
	// Save トランザクションを保存（追記のみ）
	Save(ctx context.Context, transaction *Transaction) error

	// FindByTransactionID トランザクションIDでトランザクションを取得
	FindByTransactionID(ctx context.Context, transactionID string) (*Transaction, error)

	// FindByUserID ユーザーIDでトランザクション一覧を取得（理由・タイプの部分一致フィルタとページネーション対応）
	FindByUserID(ctx context.Context, userID string, query string, limit, offset int) ([]*Transaction, error)

	// FindRefundOf 指定トランザクションを取り消したrefundトランザクションを取得
	FindRefundOf(ctx context.Context, transactionID string) (*Transaction, error)

	// SumByUserID ユーザーの全トランザクションの符号付き合計を取得
	SumByUserID(ctx context.Context, userID string) (int64, error)

	// SumEarnedByRuleBetween 期間内に指定ルールで獲得したコインの合計を取得（日次上限の判定用）
	SumEarnedByRuleBetween(ctx context.Context, userID, ruleKey string, from, to time.Time) (int64, error)

	// SummaryByUserID ログから再計算した獲得・消費の集計を取得
	SummaryByUserID(ctx context.Context, userID string) (*Summary, error)
}

package ledger

import "time"

// EarnRequest コイン獲得リクエスト
type EarnRequest struct {
	UserID   string
	RuleKey  string
	Metadata map[string]interface{}
}

// EarnResponse コイン獲得レスポンス
// 日次上限で全額クランプされた場合はTransactionIDが空・CoinsAwardedが0になる
type EarnResponse struct {
	TransactionID string
	CoinsAwarded  int64
	BalanceAfter  int64
	Capped        bool
}

// AdjustRequest 残高調整リクエスト（管理者用）
type AdjustRequest struct {
	UserID string
	Delta  int64 // 符号付き（プラス=付与、マイナス=減算）
	Reason string
}

// AdjustResponse 残高調整レスポンス
type AdjustResponse struct {
	TransactionID string
	BalanceAfter  int64
}

// RefundRequest トランザクション取り消しリクエスト
type RefundRequest struct {
	TransactionID string
}

// RefundResponse トランザクション取り消しレスポンス
type RefundResponse struct {
	RefundTransactionID string
	Coins               int64 // 取り消しで動いたコイン数（符号付き）
	BalanceAfter        int64
}

// SummaryRequest コインサマリー取得リクエスト
type SummaryRequest struct {
	UserID string
}

// SummaryResponse コインサマリーレスポンス
// AvailableはウォレットからUsed/Earnedはログから再計算した値
type SummaryResponse struct {
	UserID    string
	Available int64
	Used      int64
	Earned    int64
}

// ListTransactionsRequest トランザクション一覧取得リクエスト
type ListTransactionsRequest struct {
	UserID string
	Query  string // 理由・タイプの部分一致フィルタ
	Limit  int
	Offset int
}

// ListTransactionsResponse トランザクション一覧レスポンス
type ListTransactionsResponse struct {
	Transactions []TransactionDTO
}

// TransactionDTO トランザクション表現
type TransactionDTO struct {
	TransactionID string
	UserID        string
	Type          string
	Coins         int64
	BalanceBefore int64
	BalanceAfter  int64
	Reason        string
	RuleKey       *string
	RefundOfID    *string
	CreatedAt     time.Time
}

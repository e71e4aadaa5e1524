package handler

import "time"

// ErrorResponse エラーレスポンス
// @Description エラーレスポンス
type ErrorResponse struct {
	Error   string `json:"error" example:"invalid_request"`
	Message string `json:"message" example:"invalid request body"`
}

// SummaryResponse コインサマリーレスポンス
// @Description コインサマリーレスポンス
type SummaryResponse struct {
	UserID    string `json:"user_id" example:"user123"`
	Available int64  `json:"available" example:"150"`
	Used      int64  `json:"used" example:"200"`
	Earned    int64  `json:"earned" example:"350"`
}

// TransactionItem トランザクションアイテム
// @Description トランザクションアイテム
type TransactionItem struct {
	TransactionID string    `json:"transaction_id" example:"txn_1756700000000000000"`
	UserID        string    `json:"user_id" example:"user123"`
	Type          string    `json:"type" example:"earn" enums:"earn,redeem,adjust,refund"`
	Coins         int64     `json:"coins" example:"2"`
	BalanceBefore int64     `json:"balance_before" example:"148"`
	BalanceAfter  int64     `json:"balance_after" example:"150"`
	Reason        string    `json:"reason" example:"チャプター評価"`
	RuleKey       *string   `json:"rule_key,omitempty" example:"rating_reward"`
	RefundOfID    *string   `json:"refund_of_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TransactionListResponse トランザクション一覧レスポンス
// @Description トランザクション一覧レスポンス
type TransactionListResponse struct {
	Transactions []TransactionItem `json:"transactions"`
}

// AdjustRequest 残高調整リクエスト
// @Description 残高調整リクエスト
type AdjustRequest struct {
	UserID string `json:"user_id" example:"user123"`
	Delta  int64  `json:"delta" example:"-50"`
	Reason string `json:"reason" example:"サポート対応"`
}

// AdjustResponse 残高調整レスポンス
// @Description 残高調整レスポンス
type AdjustResponse struct {
	TransactionID string `json:"transaction_id" example:"txn_1756700000000000001"`
	BalanceAfter  int64  `json:"balance_after" example:"100"`
}

// RefundRequest トランザクション取り消しリクエスト
// @Description トランザクション取り消しリクエスト
type RefundRequest struct {
	TransactionID string `json:"transaction_id" example:"txn_1756700000000000000"`
}

// RefundResponse トランザクション取り消しレスポンス
// @Description トランザクション取り消しレスポンス
type RefundResponse struct {
	RefundTransactionID string `json:"refund_transaction_id" example:"txn_1756700000000000002"`
	Coins               int64  `json:"coins" example:"-2"`
	BalanceAfter        int64  `json:"balance_after" example:"148"`
}

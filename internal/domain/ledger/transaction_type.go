package ledger

import (
	"fmt"
)

// TransactionType トランザクションタイプを表す値オブジェクト
type TransactionType string

const (
	TransactionTypeEarn   TransactionType = "earn"   // リワードルールによる獲得
	TransactionTypeRedeem TransactionType = "redeem" // チャプター解錠などの消費
	TransactionTypeAdjust TransactionType = "adjust" // 管理者による手動調整
	TransactionTypeRefund TransactionType = "refund" // 既存トランザクションの取り消し
)

// NewTransactionType 新しいTransactionTypeを作成
func NewTransactionType(s string) (TransactionType, error) {
	switch s {
	case "earn", "redeem", "adjust", "refund":
		return TransactionType(s), nil
	default:
		return "", fmt.Errorf("invalid transaction type: %s", s)
	}
}

// String 文字列表現を返す
func (tt TransactionType) String() string {
	return string(tt)
}

// Valid 有効なトランザクションタイプかどうかを返す
func (tt TransactionType) Valid() bool {
	switch tt {
	case TransactionTypeEarn, TransactionTypeRedeem, TransactionTypeAdjust, TransactionTypeRefund:
		return true
	default:
		return false
	}
}

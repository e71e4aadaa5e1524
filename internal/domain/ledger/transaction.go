package ledger

import (
	"errors"
	"regexp"
	"time"
)

var (
	// ErrInvalidTransactionID トランザクションIDが無効
	ErrInvalidTransactionID = errors.New("invalid transaction id")
	// ErrInvalidUserID ユーザーIDが無効
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrInvalidCoins コイン数が無効（0は禁止）
	ErrInvalidCoins = errors.New("invalid coins amount")
	// ErrCoinsTooLarge コイン数が大きすぎる
	ErrCoinsTooLarge = errors.New("coins amount too large")
	// ErrCoinsSignMismatch コイン数の符号がトランザクションタイプと一致しない
	ErrCoinsSignMismatch = errors.New("coins sign does not match transaction type")
)

const (
	// MaxCoins 1トランザクションの最大コイン数（絶対値）
	MaxCoins = 1_000_000_000
)

var (
	idRegex     = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)
	userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)
)

// Transaction コイン台帳のトランザクションエンティティ（追記専用・作成後は不変）
type Transaction struct {
	transactionID string
	userID        string
	txType        TransactionType
	coins         int64 // 符号付き整数（プラス=獲得、マイナス=消費）
	balanceBefore int64
	balanceAfter  int64
	reason        string
	ruleKey       *string // earnの場合のみ: 対象のリワードルールキー
	refundOfID    *string // refundの場合のみ: 取り消し対象のトランザクションID
	meta          map[string]interface{}
	createdAt     time.Time
}

// NewTransaction 新しいTransactionエンティティを作成
func NewTransaction(
	transactionID string,
	userID string,
	txType TransactionType,
	coins int64,
	balanceBefore int64,
	balanceAfter int64,
	reason string,
	meta map[string]interface{},
) (*Transaction, error) {
	if !idRegex.MatchString(transactionID) {
		return nil, ErrInvalidTransactionID
	}
	if !userIDRegex.MatchString(userID) {
		return nil, ErrInvalidUserID
	}
	if coins == 0 {
		return nil, ErrInvalidCoins
	}
	if coins > MaxCoins || coins < -MaxCoins {
		return nil, ErrCoinsTooLarge
	}
	// タイプごとの符号制約: earnはプラス、redeemはマイナス
	switch txType {
	case TransactionTypeEarn:
		if coins < 0 {
			return nil, ErrCoinsSignMismatch
		}
	case TransactionTypeRedeem:
		if coins > 0 {
			return nil, ErrCoinsSignMismatch
		}
	}

	return &Transaction{
		transactionID: transactionID,
		userID:        userID,
		txType:        txType,
		coins:         coins,
		balanceBefore: balanceBefore,
		balanceAfter:  balanceAfter,
		reason:        reason,
		meta:          meta,
		createdAt:     time.Now(),
	}, nil
}

// ReconstructTransaction 永続化済みの値からTransactionエンティティを復元
func ReconstructTransaction(
	transactionID string,
	userID string,
	txType TransactionType,
	coins int64,
	balanceBefore int64,
	balanceAfter int64,
	reason string,
	ruleKey *string,
	refundOfID *string,
	meta map[string]interface{},
	createdAt time.Time,
) (*Transaction, error) {
	if !idRegex.MatchString(transactionID) {
		return nil, ErrInvalidTransactionID
	}
	return &Transaction{
		transactionID: transactionID,
		userID:        userID,
		txType:        txType,
		coins:         coins,
		balanceBefore: balanceBefore,
		balanceAfter:  balanceAfter,
		reason:        reason,
		ruleKey:       ruleKey,
		refundOfID:    refundOfID,
		meta:          meta,
		createdAt:     createdAt,
	}, nil
}

// TransactionID トランザクションIDを返す
func (t *Transaction) TransactionID() string {
	return t.transactionID
}

// UserID ユーザーIDを返す
func (t *Transaction) UserID() string {
	return t.userID
}

// TransactionType トランザクションタイプを返す
func (t *Transaction) TransactionType() TransactionType {
	return t.txType
}

// Coins コイン数（符号付き）を返す
func (t *Transaction) Coins() int64 {
	return t.coins
}

// BalanceBefore 処理前の残高を返す
func (t *Transaction) BalanceBefore() int64 {
	return t.balanceBefore
}

// BalanceAfter 処理後の残高を返す
func (t *Transaction) BalanceAfter() int64 {
	return t.balanceAfter
}

// Reason 理由を返す
func (t *Transaction) Reason() string {
	return t.reason
}

// RuleKey リワードルールキーを返す（earn以外はnil）
func (t *Transaction) RuleKey() *string {
	return t.ruleKey
}

// SetRuleKey リワードルールキーを設定
func (t *Transaction) SetRuleKey(key string) {
	t.ruleKey = &key
}

// RefundOfID 取り消し対象のトランザクションIDを返す（refund以外はnil）
func (t *Transaction) RefundOfID() *string {
	return t.refundOfID
}

// SetRefundOfID 取り消し対象のトランザクションIDを設定
func (t *Transaction) SetRefundOfID(id string) {
	t.refundOfID = &id
}

// Meta メタデータを返す
func (t *Transaction) Meta() map[string]interface{} {
	return t.meta
}

// CreatedAt 作成日時を返す
func (t *Transaction) CreatedAt() time.Time {
	return t.createdAt
}

// MustNewTransaction テスト用ヘルパー: NewTransactionを呼び出し、エラーが発生した場合はpanicする
func MustNewTransaction(
	transactionID string,
	userID string,
	txType TransactionType,
	coins int64,
	balanceBefore int64,
	balanceAfter int64,
	reason string,
	meta map[string]interface{},
) *Transaction {
	t, err := NewTransaction(transactionID, userID, txType, coins, balanceBefore, balanceAfter, reason, meta)
	if err != nil {
		panic(err)
	}
	return t
}

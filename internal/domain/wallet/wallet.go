package wallet

import (
	"regexp"
)

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)

const (
	// MaxBalance 最大残高
	MaxBalance = 1_000_000_000_000
)

// Wallet ユーザーごとのコイン残高エンティティ
// 残高はトランザクションログから導出可能なキャッシュであり、常にログの符号付き合計と一致する
type Wallet struct {
	userID  string
	balance int64 // 非負整数
	version int   // 楽観的ロック用
}

// NewWallet 新しいWalletエンティティを作成
func NewWallet(userID string, balance int64, version int) (*Wallet, error) {
	if !userIDRegex.MatchString(userID) {
		return nil, ErrInvalidUserID
	}
	if balance < 0 {
		return nil, ErrNegativeBalance
	}
	if balance > MaxBalance {
		return nil, ErrBalanceOutOfRange
	}
	return &Wallet{
		userID:  userID,
		balance: balance,
		version: version,
	}, nil
}

// UserID ユーザーIDを返す
func (w *Wallet) UserID() string {
	return w.userID
}

// Balance 残高を返す
func (w *Wallet) Balance() int64 {
	return w.balance
}

// Version バージョンを返す（楽観的ロック用）
func (w *Wallet) Version() int {
	return w.version
}

// Credit コインを加算する
func (w *Wallet) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	// オーバーフローチェック
	if w.balance > MaxBalance-amount {
		return ErrBalanceOutOfRange
	}
	w.balance += amount
	w.version++
	return nil
}

// Debit コインを減算する（残高不足の場合はエラー、マイナス残高は発生させない）
func (w *Wallet) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.balance < amount {
		return ErrInsufficientBalance
	}
	w.balance -= amount
	w.version++
	return nil
}

// MustNewWallet テスト用ヘルパー: NewWalletを呼び出し、エラーが発生した場合はpanicする
func MustNewWallet(userID string, balance int64, version int) *Wallet {
	w, err := NewWallet(userID, balance, version)
	if err != nil {
		panic(err)
	}
	return w
}

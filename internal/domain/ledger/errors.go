package ledger

import "errors"

var (
	// ErrTransactionNotFound トランザクションが見つからないエラー
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrAlreadyRefunded 既に取り消し済みのトランザクションエラー
	ErrAlreadyRefunded = errors.New("transaction already refunded")
	// ErrDuplicateTransactionID 重複トランザクションIDエラー
	ErrDuplicateTransactionID = errors.New("duplicate transaction id")
	// ErrNotRefundable refundトランザクション自体は取り消し対象にできない
	ErrNotRefundable = errors.New("transaction is not refundable")
)

package wallet

import "errors"

var (
	// ErrWalletNotFound ウォレットが見つからないエラー
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrInsufficientBalance 残高不足エラー
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount 無効な金額エラー
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidUserID ユーザーIDが無効
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrNegativeBalance マイナス残高エラー
	ErrNegativeBalance = errors.New("negative balance")
	// ErrBalanceOutOfRange 残高が範囲外
	ErrBalanceOutOfRange = errors.New("balance out of range")
)

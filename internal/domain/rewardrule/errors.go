package rewardrule

import "errors"

var (
	// ErrRuleNotFound ルールが見つからないエラー
	ErrRuleNotFound = errors.New("reward rule not found")
	// ErrRuleDisabled ルールが無効化されているエラー
	ErrRuleDisabled = errors.New("reward rule disabled")
	// ErrRuleAlreadyExists ルールキーが既に存在するエラー
	ErrRuleAlreadyExists = errors.New("reward rule already exists")
	// ErrInvalidRuleKey ルールキーが無効
	ErrInvalidRuleKey = errors.New("invalid rule key")
	// ErrInvalidCoins 付与コイン数が無効
	ErrInvalidCoins = errors.New("invalid reward coins")
	// ErrInvalidDailyCap 日次上限が無効
	ErrInvalidDailyCap = errors.New("invalid daily cap")
)

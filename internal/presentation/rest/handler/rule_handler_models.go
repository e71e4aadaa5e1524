package handler

import "time"

// RuleItem リワードルールアイテム
// @Description リワードルールアイテム
type RuleItem struct {
	Key       string    `json:"key" example:"rating_reward"`
	Label     string    `json:"label" example:"チャプター評価リワード"`
	Coins     int64     `json:"coins" example:"2"`
	Enabled   bool      `json:"enabled" example:"true"`
	DailyCap  *int64    `json:"daily_cap,omitempty" example:"10"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RuleListResponse ルール一覧レスポンス
// @Description ルール一覧レスポンス
type RuleListResponse struct {
	Rules []RuleItem `json:"rules"`
}

// CreateRuleRequest ルール作成リクエスト
// @Description ルール作成リクエスト
type CreateRuleRequest struct {
	Key      string `json:"key" example:"rating_reward"`
	Label    string `json:"label" example:"チャプター評価リワード"`
	Coins    int64  `json:"coins" example:"2"`
	Enabled  bool   `json:"enabled" example:"true"`
	DailyCap *int64 `json:"daily_cap,omitempty" example:"10"`
}

// UpdateRuleRequest ルール更新リクエスト
// @Description ルール更新リクエスト。省略したフィールドは変更されない
type UpdateRuleRequest struct {
	Label         *string `json:"label,omitempty" example:"チャプター評価リワード"`
	Coins         *int64  `json:"coins,omitempty" example:"3"`
	Enabled       *bool   `json:"enabled,omitempty" example:"false"`
	DailyCap      *int64  `json:"daily_cap,omitempty" example:"20"`
	ClearDailyCap bool    `json:"clear_daily_cap,omitempty" example:"false"`
}

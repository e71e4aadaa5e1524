package rewardrule

import "time"

// RuleDTO リワードルール表現
type RuleDTO struct {
	Key       string
	Label     string
	Coins     int64
	Enabled   bool
	DailyCap  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListRulesResponse ルール一覧レスポンス
type ListRulesResponse struct {
	Rules []RuleDTO
}

// GetRuleRequest ルール取得リクエスト
type GetRuleRequest struct {
	Key string
}

// CreateRuleRequest ルール作成リクエスト
type CreateRuleRequest struct {
	Key      string
	Label    string
	Coins    int64
	Enabled  bool
	DailyCap *int64
}

// UpdateRuleRequest ルール更新リクエスト
// nilのフィールドは変更しない
type UpdateRuleRequest struct {
	Key      string
	Label    *string
	Coins    *int64
	Enabled  *bool
	DailyCap *int64
	// ClearDailyCap trueの場合は日次上限を外す（DailyCapより優先）
	ClearDailyCap bool
}

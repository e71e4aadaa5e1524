package rewardrule

import (
	"regexp"
	"time"
)

var keyRegex = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

const (
	// MaxCoins ルール1回あたりの最大付与コイン数
	MaxCoins = 1_000_000
	// MaxDailyCap 日次上限の最大値
	MaxDailyCap = 10_000_000
)

// RewardRule リワードルールエンティティ
// 管理者が実行時に追加・編集する付与ポリシー。キー文字列で参照される
type RewardRule struct {
	key       string
	label     string
	coins     int64  // 1回のトリガーで付与するコイン数
	enabled   bool
	dailyCap  *int64 // 1ユーザーが1日に獲得できる上限（nil = 無制限）
	createdAt time.Time
	updatedAt time.Time
}

// NewRewardRule 新しいRewardRuleエンティティを作成
func NewRewardRule(key, label string, coins int64, enabled bool, dailyCap *int64) (*RewardRule, error) {
	if !keyRegex.MatchString(key) {
		return nil, ErrInvalidRuleKey
	}
	if coins <= 0 || coins > MaxCoins {
		return nil, ErrInvalidCoins
	}
	if dailyCap != nil && (*dailyCap < 0 || *dailyCap > MaxDailyCap) {
		return nil, ErrInvalidDailyCap
	}

	now := time.Now()
	return &RewardRule{
		key:       key,
		label:     label,
		coins:     coins,
		enabled:   enabled,
		dailyCap:  dailyCap,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructRewardRule 永続化済みの値からRewardRuleエンティティを復元
func ReconstructRewardRule(key, label string, coins int64, enabled bool, dailyCap *int64, createdAt, updatedAt time.Time) (*RewardRule, error) {
	if !keyRegex.MatchString(key) {
		return nil, ErrInvalidRuleKey
	}
	return &RewardRule{
		key:       key,
		label:     label,
		coins:     coins,
		enabled:   enabled,
		dailyCap:  dailyCap,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}, nil
}

// Key ルールキーを返す
func (r *RewardRule) Key() string {
	return r.key
}

// Label 表示名を返す
func (r *RewardRule) Label() string {
	return r.label
}

// Coins 1回あたりの付与コイン数を返す
func (r *RewardRule) Coins() int64 {
	return r.coins
}

// Enabled 有効かどうかを返す
func (r *RewardRule) Enabled() bool {
	return r.enabled
}

// DailyCap 日次上限を返す（nil = 無制限）
func (r *RewardRule) DailyCap() *int64 {
	return r.dailyCap
}

// CreatedAt 作成日時を返す
func (r *RewardRule) CreatedAt() time.Time {
	return r.createdAt
}

// UpdatedAt 更新日時を返す
func (r *RewardRule) UpdatedAt() time.Time {
	return r.updatedAt
}

// AllowedGrant 本日の獲得済みコイン数を踏まえて、今回付与できるコイン数を返す
// 日次上限に達している場合は0を返す（拒否ではなく残り枠へのクランプ）
func (r *RewardRule) AllowedGrant(grantedToday int64) int64 {
	if r.dailyCap == nil {
		return r.coins
	}
	remaining := *r.dailyCap - grantedToday
	if remaining <= 0 {
		return 0
	}
	if remaining < r.coins {
		return remaining
	}
	return r.coins
}

// Update ルールの内容を更新する
func (r *RewardRule) Update(label string, coins int64, enabled bool, dailyCap *int64) error {
	if coins <= 0 || coins > MaxCoins {
		return ErrInvalidCoins
	}
	if dailyCap != nil && (*dailyCap < 0 || *dailyCap > MaxDailyCap) {
		return ErrInvalidDailyCap
	}
	r.label = label
	r.coins = coins
	r.enabled = enabled
	r.dailyCap = dailyCap
	r.updatedAt = time.Now()
	return nil
}

// MustNewRewardRule テスト用ヘルパー: NewRewardRuleを呼び出し、エラーが発生した場合はpanicする
func MustNewRewardRule(key, label string, coins int64, enabled bool, dailyCap *int64) *RewardRule {
	r, err := NewRewardRule(key, label, coins, enabled, dailyCap)
	if err != nil {
		panic(err)
	}
	return r
}

package rewardrule

import (
	"context"
)

// RewardRuleRepository リワードルールリポジトリインターフェース
type RewardRuleRepository interface {
	// FindByKey ルールキーでルールを取得
	FindByKey(ctx context.Context, key string) (*RewardRule, error)

	// FindAll 全ルールを取得
	FindAll(ctx context.Context) ([]*RewardRule, error)

	// Create 新しいルールを作成
	Create(ctx context.Context, rule *RewardRule) error

	// Update ルールを更新
	Update(ctx context.Context, rule *RewardRule) error
}

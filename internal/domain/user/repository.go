package user

import (
	"context"
)

// UserRepository ユーザーリポジトリインターフェース
type UserRepository interface {
	// FindByUserID ユーザーIDでユーザーを取得
	FindByUserID(ctx context.Context, userID string) (*User, error)

	// EnsureExists ユーザーが存在することを確認（存在しない場合は無料プランで作成）
	EnsureExists(ctx context.Context, userID string) error
}

package wallet

import (
	"context"
)

// WalletRepository ウォレットリポジトリインターフェース
type WalletRepository interface {
	// FindByUserID ユーザーIDでウォレットを取得
	FindByUserID(ctx context.Context, userID string) (*Wallet, error)

	// Save ウォレットを保存（更新、楽観的ロック対応）
	Save(ctx context.Context, wallet *Wallet) error

	// Create 新しいウォレットを作成
	Create(ctx context.Context, wallet *Wallet) error

	// FindAll 全ウォレットを取得（残高照合用）
	FindAll(ctx context.Context) ([]*Wallet, error)
}

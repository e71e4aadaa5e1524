package story

import (
	"context"
)

// NodeRepository チャプターノードリポジトリインターフェース
type NodeRepository interface {
	// FindByNodeID ノードIDでノードを取得
	FindByNodeID(ctx context.Context, nodeID string) (*Node, error)

	// FindByPosition ストーリー・ステップ・ジャンルでノードを取得
	FindByPosition(ctx context.Context, story string, stepNo int, genre string) (*Node, error)

	// FindGenresByStep 指定ステップで選択可能なジャンル一覧を取得
	FindGenresByStep(ctx context.Context, story string, stepNo int) ([]string, error)
}

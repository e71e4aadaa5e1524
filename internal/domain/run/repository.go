package run

import (
	"context"
)

// RunRepository ストーリーランリポジトリインターフェース
type RunRepository interface {
	// Create 新しいランを作成
	Create(ctx context.Context, storyRun *StoryRun) error

	// FindByRunID ランIDでランを取得
	FindByRunID(ctx context.Context, runID string) (*StoryRun, error)

	// Save ランの進行状態を保存
	Save(ctx context.Context, storyRun *StoryRun) error

	// SaveChoice ステップごとのジャンル選択を保存
	SaveChoice(ctx context.Context, runID string, stepNo int, genre string) error

	// FindChoice 指定ステップの選択済みジャンルを取得（未選択の場合は空文字）
	FindChoice(ctx context.Context, runID string, stepNo int) (string, error)

	// SaveUnlock チャプター解錠レコードを保存
	SaveUnlock(ctx context.Context, unlock *ChapterUnlock) error

	// IsUnlocked 指定チャプターが解錠済みかどうかを返す
	IsUnlocked(ctx context.Context, runID string, chapterNo int) (bool, error)

	// SaveRating ノード評価を保存
	SaveRating(ctx context.Context, rating *NodeRating) error

	// HasRating ノードが評価済みかどうかを返す
	HasRating(ctx context.Context, runID, nodeID string) (bool, error)
}

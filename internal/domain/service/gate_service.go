package service

import (
	"context"

	"storyverse-server/internal/domain/run"
	"storyverse-server/internal/domain/user"
)

// GateService チャプターゲートのドメインサービス
// プランと解錠レコードから、指定チャプターを表示してよいかを判定する
type GateService struct {
	runRepo run.RunRepository
}

// NewGateService 新しいGateServiceを作成
func NewGateService(runRepo run.RunRepository) *GateService {
	return &GateService{
		runRepo: runRepo,
	}
}

// CanAccessChapter ユーザーが指定チャプターへアクセスできるかどうかを返す
// 1〜2章は常に無料。3章以降は有料プランか解錠レコードが必要
func (s *GateService) CanAccessChapter(ctx context.Context, u *user.User, storyRun *run.StoryRun, chapterNo int) (bool, error) {
	if !run.ValidChapter(chapterNo) {
		return false, run.ErrInvalidChapter
	}
	if run.IsFreeChapter(chapterNo) {
		return true, nil
	}
	if u.Plan().BypassesGate() {
		return true, nil
	}
	return s.runRepo.IsUnlocked(ctx, storyRun.RunID(), chapterNo)
}

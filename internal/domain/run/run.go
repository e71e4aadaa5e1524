package run

import (
	"regexp"
	"time"
)

const (
	// TotalSteps 1つのジャーニーの固定チャプター数
	TotalSteps = 5
	// FreeSteps 常に無料で読めるチャプター数（1〜2章）
	FreeSteps = 2
)

var (
	runIDRegex  = regexp.MustCompile(`^[a-zA-Z0-9_\-]{1,64}$`)
	userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)
	genreRegex  = regexp.MustCompile(`^[a-z0-9_\-]{1,32}$`)
	storyRegex  = regexp.MustCompile(`^[a-z0-9_\-]{1,64}$`)
)

// StoryRun ユーザーによるストーリー読了の進行状態エンティティ
type StoryRun struct {
	runID       string
	userID      string
	story       string
	currentStep int // 1..TotalSteps
	completed   bool
	createdAt   time.Time
	updatedAt   time.Time
}

// NewStoryRun 新しいStoryRunエンティティを作成（ステップ1から開始）
func NewStoryRun(runID, userID, story string) (*StoryRun, error) {
	if !runIDRegex.MatchString(runID) {
		return nil, ErrInvalidRunID
	}
	if !userIDRegex.MatchString(userID) {
		return nil, ErrInvalidUserID
	}
	if !storyRegex.MatchString(story) {
		return nil, ErrInvalidStory
	}

	now := time.Now()
	return &StoryRun{
		runID:       runID,
		userID:      userID,
		story:       story,
		currentStep: 1,
		completed:   false,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructStoryRun 永続化済みの値からStoryRunエンティティを復元
func ReconstructStoryRun(runID, userID, story string, currentStep int, completed bool, createdAt, updatedAt time.Time) (*StoryRun, error) {
	if currentStep < 1 || currentStep > TotalSteps {
		return nil, ErrInvalidChapter
	}
	return &StoryRun{
		runID:       runID,
		userID:      userID,
		story:       story,
		currentStep: currentStep,
		completed:   completed,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}, nil
}

// RunID ランIDを返す
func (r *StoryRun) RunID() string {
	return r.runID
}

// UserID ユーザーIDを返す
func (r *StoryRun) UserID() string {
	return r.userID
}

// Story ストーリー識別子を返す
func (r *StoryRun) Story() string {
	return r.story
}

// CurrentStep 現在のステップ番号を返す
func (r *StoryRun) CurrentStep() int {
	return r.currentStep
}

// Completed 完了済みかどうかを返す
func (r *StoryRun) Completed() bool {
	return r.completed
}

// CreatedAt 作成日時を返す
func (r *StoryRun) CreatedAt() time.Time {
	return r.createdAt
}

// UpdatedAt 更新日時を返す
func (r *StoryRun) UpdatedAt() time.Time {
	return r.updatedAt
}

// Advance 次のステップへ進める（最終ステップの場合は完了フラグを立てる）
func (r *StoryRun) Advance() error {
	if r.completed {
		return ErrRunCompleted
	}
	if r.currentStep >= TotalSteps {
		r.completed = true
	} else {
		r.currentStep++
	}
	r.updatedAt = time.Now()
	return nil
}

// ValidGenre ジャンル文字列が有効かどうかを返す
func ValidGenre(genre string) bool {
	return genreRegex.MatchString(genre)
}

// IsFreeChapter 指定チャプターが常に無料かどうかを返す
func IsFreeChapter(chapterNo int) bool {
	return chapterNo >= 1 && chapterNo <= FreeSteps
}

// ValidChapter 指定チャプター番号が有効範囲かどうかを返す
func ValidChapter(chapterNo int) bool {
	return chapterNo >= 1 && chapterNo <= TotalSteps
}

// MustNewStoryRun テスト用ヘルパー: NewStoryRunを呼び出し、エラーが発生した場合はpanicする
func MustNewStoryRun(runID, userID, story string) *StoryRun {
	r, err := NewStoryRun(runID, userID, story)
	if err != nil {
		panic(err)
	}
	return r
}

package run

import (
	"errors"
	"fmt"
)

var (
	// ErrRunNotFound ランが見つからないエラー
	ErrRunNotFound = errors.New("story run not found")
	// ErrRunCompleted ランが既に完了しているエラー
	ErrRunCompleted = errors.New("story run already completed")
	// ErrAlreadyUnlocked チャプターが既に解錠済みのエラー
	ErrAlreadyUnlocked = errors.New("chapter already unlocked")
	// ErrAlreadyRated ノードが既に評価済みのエラー
	ErrAlreadyRated = errors.New("node already rated")
	// ErrInvalidRunID ランIDが無効
	ErrInvalidRunID = errors.New("invalid run id")
	// ErrInvalidUserID ユーザーIDが無効
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrInvalidStory ストーリー識別子が無効
	ErrInvalidStory = errors.New("invalid story")
	// ErrInvalidGenre ジャンルが無効
	ErrInvalidGenre = errors.New("invalid genre")
	// ErrInvalidChapter チャプター番号が無効
	ErrInvalidChapter = errors.New("invalid chapter number")
	// ErrInvalidRating 評価値が無効
	ErrInvalidRating = errors.New("invalid rating")
)

// InsufficientCoinsError 解錠に必要なコインが不足しているエラー
// 呼び出し側がペイウォールを表示できるよう残高と必要額を保持する
type InsufficientCoinsError struct {
	Available int64
	Required  int64
}

// Error エラーメッセージを返す
func (e *InsufficientCoinsError) Error() string {
	return fmt.Sprintf("insufficient coins: available=%d required=%d", e.Available, e.Required)
}

// ChapterLockedError 未解錠チャプターへのアクセスエラー
type ChapterLockedError struct {
	ChapterNumber int
	RequiredCoins int64
	Available     int64
}

// Error エラーメッセージを返す
func (e *ChapterLockedError) Error() string {
	return fmt.Sprintf("chapter %d is locked: required=%d available=%d", e.ChapterNumber, e.RequiredCoins, e.Available)
}

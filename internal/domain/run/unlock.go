package run

import (
	"time"
)

// ChapterUnlock ランごとのチャプター解錠レコード
// Unlockedになった時点で終端状態。中間状態は永続化されない
type ChapterUnlock struct {
	runID         string
	chapterNo     int
	transactionID string // 解錠コストを消費したredeemトランザクションのID
	createdAt     time.Time
}

// NewChapterUnlock 新しいChapterUnlockを作成
// 無料チャプターは解錠対象外
func NewChapterUnlock(runID string, chapterNo int, transactionID string) (*ChapterUnlock, error) {
	if !ValidChapter(chapterNo) || IsFreeChapter(chapterNo) {
		return nil, ErrInvalidChapter
	}
	return &ChapterUnlock{
		runID:         runID,
		chapterNo:     chapterNo,
		transactionID: transactionID,
		createdAt:     time.Now(),
	}, nil
}

// RunID ランIDを返す
func (u *ChapterUnlock) RunID() string {
	return u.runID
}

// ChapterNo チャプター番号を返す
func (u *ChapterUnlock) ChapterNo() int {
	return u.chapterNo
}

// TransactionID 消費トランザクションIDを返す
func (u *ChapterUnlock) TransactionID() string {
	return u.transactionID
}

// CreatedAt 作成日時を返す
func (u *ChapterUnlock) CreatedAt() time.Time {
	return u.createdAt
}

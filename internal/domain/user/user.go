package user

import (
	"errors"
	"regexp"
	"time"
)

var (
	// ErrUserNotFound ユーザーが見つからないエラー
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidUserID ユーザーIDが無効
	ErrInvalidUserID = errors.New("invalid user id")
)

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)

// User ユーザーエンティティ
type User struct {
	userID    string
	plan      Plan
	isAdmin   bool
	createdAt time.Time
}

// NewUser 新しいUserエンティティを作成
func NewUser(userID string, plan Plan, isAdmin bool) (*User, error) {
	if !userIDRegex.MatchString(userID) {
		return nil, ErrInvalidUserID
	}
	return &User{
		userID:    userID,
		plan:      plan,
		isAdmin:   isAdmin,
		createdAt: time.Now(),
	}, nil
}

// ReconstructUser 永続化済みの値からUserエンティティを復元
func ReconstructUser(userID string, plan Plan, isAdmin bool, createdAt time.Time) (*User, error) {
	if !userIDRegex.MatchString(userID) {
		return nil, ErrInvalidUserID
	}
	return &User{
		userID:    userID,
		plan:      plan,
		isAdmin:   isAdmin,
		createdAt: createdAt,
	}, nil
}

// UserID ユーザーIDを返す
func (u *User) UserID() string {
	return u.userID
}

// Plan プランを返す
func (u *User) Plan() Plan {
	return u.plan
}

// IsAdmin 管理者かどうかを返す
func (u *User) IsAdmin() bool {
	return u.isAdmin
}

// CreatedAt 作成日時を返す
func (u *User) CreatedAt() time.Time {
	return u.createdAt
}

// MustNewUser テスト用ヘルパー: NewUserを呼び出し、エラーが発生した場合はpanicする
func MustNewUser(userID string, plan Plan, isAdmin bool) *User {
	u, err := NewUser(userID, plan, isAdmin)
	if err != nil {
		panic(err)
	}
	return u
}

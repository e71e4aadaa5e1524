package handler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"storyverse-server/internal/domain/ledger"
	"storyverse-server/internal/domain/rewardrule"
	"storyverse-server/internal/domain/run"
	"storyverse-server/internal/domain/story"
	"storyverse-server/internal/domain/user"
	"storyverse-server/internal/domain/wallet"
)

// MockWalletRepository モックウォレットリポジトリ
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) FindByUserID(ctx context.Context, userID string) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) Save(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWalletRepository) FindAll(ctx context.Context) ([]*wallet.Wallet, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*wallet.Wallet), args.Error(1)
}

// MockTransactionRepository モックトランザクションリポジトリ
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Save(ctx context.Context, t *ledger.Transaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTransactionRepository) FindByTransactionID(ctx context.Context, transactionID string) (*ledger.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByUserID(ctx context.Context, userID string, query string, limit, offset int) ([]*ledger.Transaction, error) {
	args := m.Called(ctx, userID, query, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindRefundOf(ctx context.Context, transactionID string) (*ledger.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SumByUserID(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) SumEarnedByRuleBetween(ctx context.Context, userID, ruleKey string, from, to time.Time) (int64, error) {
	args := m.Called(ctx, userID, ruleKey, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) SummaryByUserID(ctx context.Context, userID string) (*ledger.Summary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Summary), args.Error(1)
}

// MockRewardRuleRepository モックリワードルールリポジトリ
type MockRewardRuleRepository struct {
	mock.Mock
}

func (m *MockRewardRuleRepository) FindByKey(ctx context.Context, key string) (*rewardrule.RewardRule, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rewardrule.RewardRule), args.Error(1)
}

func (m *MockRewardRuleRepository) FindAll(ctx context.Context) ([]*rewardrule.RewardRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*rewardrule.RewardRule), args.Error(1)
}

func (m *MockRewardRuleRepository) Create(ctx context.Context, rule *rewardrule.RewardRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockRewardRuleRepository) Update(ctx context.Context, rule *rewardrule.RewardRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

// MockUserRepository モックユーザーリポジトリ
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByUserID(ctx context.Context, userID string) (*user.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserRepository) EnsureExists(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockRunRepository モックランリポジトリ
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Create(ctx context.Context, storyRun *run.StoryRun) error {
	args := m.Called(ctx, storyRun)
	return args.Error(0)
}

func (m *MockRunRepository) FindByRunID(ctx context.Context, runID string) (*run.StoryRun, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*run.StoryRun), args.Error(1)
}

func (m *MockRunRepository) Save(ctx context.Context, storyRun *run.StoryRun) error {
	args := m.Called(ctx, storyRun)
	return args.Error(0)
}

func (m *MockRunRepository) SaveChoice(ctx context.Context, runID string, stepNo int, genre string) error {
	args := m.Called(ctx, runID, stepNo, genre)
	return args.Error(0)
}

func (m *MockRunRepository) FindChoice(ctx context.Context, runID string, stepNo int) (string, error) {
	args := m.Called(ctx, runID, stepNo)
	return args.String(0), args.Error(1)
}

func (m *MockRunRepository) SaveUnlock(ctx context.Context, unlock *run.ChapterUnlock) error {
	args := m.Called(ctx, unlock)
	return args.Error(0)
}

func (m *MockRunRepository) IsUnlocked(ctx context.Context, runID string, chapterNo int) (bool, error) {
	args := m.Called(ctx, runID, chapterNo)
	return args.Bool(0), args.Error(1)
}

func (m *MockRunRepository) SaveRating(ctx context.Context, rating *run.NodeRating) error {
	args := m.Called(ctx, rating)
	return args.Error(0)
}

func (m *MockRunRepository) HasRating(ctx context.Context, runID, nodeID string) (bool, error) {
	args := m.Called(ctx, runID, nodeID)
	return args.Bool(0), args.Error(1)
}

// MockNodeRepository モックチャプターノードリポジトリ
type MockNodeRepository struct {
	mock.Mock
}

func (m *MockNodeRepository) FindByNodeID(ctx context.Context, nodeID string) (*story.Node, error) {
	args := m.Called(ctx, nodeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*story.Node), args.Error(1)
}

func (m *MockNodeRepository) FindByPosition(ctx context.Context, storyID string, stepNo int, genre string) (*story.Node, error) {
	args := m.Called(ctx, storyID, stepNo, genre)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*story.Node), args.Error(1)
}

func (m *MockNodeRepository) FindGenresByStep(ctx context.Context, storyID string, stepNo int) ([]string, error) {
	args := m.Called(ctx, storyID, stepNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockTransactionManager モックトランザクションマネージャー
// トランザクションを開始せず、関数をそのまま実行する
type MockTransactionManager struct{}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

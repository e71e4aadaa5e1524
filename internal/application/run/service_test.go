package run

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	ledgerapp "storyverse-server/internal/application/ledger"
	"storyverse-server/internal/domain/ledger"
	"storyverse-server/internal/domain/rewardrule"
	"storyverse-server/internal/domain/run"
	"storyverse-server/internal/domain/service"
	"storyverse-server/internal/domain/story"
	"storyverse-server/internal/domain/user"
	"storyverse-server/internal/domain/wallet"
	otelinfra "storyverse-server/internal/infrastructure/observability/otel"
)

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

// MockNodeRepository モックノードリポジトリ
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

func (m *MockTransactionRepository) Save(ctx context.Context, txn *ledger.Transaction) error {
	args := m.Called(ctx, txn)
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

// MockTransactionManager モックトランザクションマネージャー
// 実際のDBトランザクションは使わず、関数を直接実行する
type MockTransactionManager struct{}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type testMocks struct {
	runRepo         *MockRunRepository
	nodeRepo        *MockNodeRepository
	userRepo        *MockUserRepository
	walletRepo      *MockWalletRepository
	transactionRepo *MockTransactionRepository
	ruleRepo        *MockRewardRuleRepository
}

// trackingTxManager トランザクションスコープの出入りを記録するモック
// ネストした呼び出しは実装と同様に外側へ参加する
type trackingTxManager struct {
	inTx   bool
	begun  int
	joined int
}

func (m *trackingTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.inTx {
		m.joined++
		return fn(ctx)
	}
	m.begun++
	m.inTx = true
	defer func() { m.inTx = false }()
	return fn(ctx)
}

func newTestService(t *testing.T) (*RunApplicationService, *testMocks) {
	t.Helper()
	return newTestServiceWithTxManager(t, &MockTransactionManager{})
}

func newTestServiceWithTxManager(t *testing.T, txManager ledger.TransactionManager) (*RunApplicationService, *testMocks) {
	t.Helper()

	m := &testMocks{
		runRepo:         new(MockRunRepository),
		nodeRepo:        new(MockNodeRepository),
		userRepo:        new(MockUserRepository),
		walletRepo:      new(MockWalletRepository),
		transactionRepo: new(MockTransactionRepository),
		ruleRepo:        new(MockRewardRuleRepository),
	}

	tracer := otel.Tracer("test")
	logger := otelinfra.NewLogger(tracer)
	metrics, err := otelinfra.NewMetrics("test")
	require.NoError(t, err)
	gateService := service.NewGateService(m.runRepo)
	ledgerService := ledgerapp.NewLedgerApplicationService(
		m.walletRepo,
		m.transactionRepo,
		m.ruleRepo,
		m.userRepo,
		txManager,
		logger,
		metrics,
	)

	svc := NewRunApplicationService(
		m.runRepo,
		m.nodeRepo,
		m.userRepo,
		m.walletRepo,
		m.transactionRepo,
		txManager,
		gateService,
		ledgerService,
		100,
		"rating_reward",
		logger,
		metrics,
	)
	return svc, m
}

func runAtStep(t *testing.T, stepNo int) *run.StoryRun {
	t.Helper()
	now := time.Now()
	r, err := run.ReconstructStoryRun("run-001", "user123", "midnight-library", stepNo, false, now, now)
	require.NoError(t, err)
	return r
}

func TestRunApplicationService_StartRun(t *testing.T) {
	t.Run("正常系: ランを開始", func(t *testing.T) {
		svc, m := newTestService(t)
		m.userRepo.On("EnsureExists", mock.Anything, "user123").Return(nil)
		m.runRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

		got, err := svc.StartRun(context.Background(), &StartRunRequest{UserID: "user123", Story: "midnight-library"})

		require.NoError(t, err)
		assert.NotEmpty(t, got.RunID)
		assert.Equal(t, "midnight-library", got.Story)
		assert.Equal(t, 1, got.CurrentStep)
		assert.False(t, got.Completed)
		m.runRepo.AssertExpectations(t)
		m.userRepo.AssertExpectations(t)
	})

	t.Run("異常系: 無効なストーリー識別子", func(t *testing.T) {
		svc, _ := newTestService(t)

		got, err := svc.StartRun(context.Background(), &StartRunRequest{UserID: "user123", Story: "Midnight Library"})

		assert.ErrorIs(t, err, run.ErrInvalidStory)
		assert.Nil(t, got)
	})
}

func TestRunApplicationService_Current(t *testing.T) {
	t.Run("正常系: ジャンル未選択の場合は選択肢を返す", func(t *testing.T) {
		svc, m := newTestService(t)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 1), nil)
		m.userRepo.On("FindByUserID", mock.Anything, "user123").Return(user.MustNewUser("user123", user.PlanFree, false), nil)
		m.runRepo.On("FindChoice", mock.Anything, "run-001", 1).Return("", nil)
		m.nodeRepo.On("FindGenresByStep", mock.Anything, "midnight-library", 1).Return([]string{"fantasy", "mystery", "romance"}, nil)

		got, err := svc.Current(context.Background(), &CurrentRequest{UserID: "user123", RunID: "run-001"})

		require.NoError(t, err)
		assert.Equal(t, []string{"fantasy", "mystery", "romance"}, got.Genres)
		assert.Nil(t, got.Node)
		m.runRepo.AssertExpectations(t)
		m.nodeRepo.AssertExpectations(t)
	})

	t.Run("正常系: 選択済みの場合はノードを返す", func(t *testing.T) {
		svc, m := newTestService(t)
		node := story.NewNode("midnight-library_1_mystery", "midnight-library", 1, "mystery", "開かれた扉", "...")
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 1), nil)
		m.userRepo.On("FindByUserID", mock.Anything, "user123").Return(user.MustNewUser("user123", user.PlanFree, false), nil)
		m.runRepo.On("FindChoice", mock.Anything, "run-001", 1).Return("mystery", nil)
		m.nodeRepo.On("FindByPosition", mock.Anything, "midnight-library", 1, "mystery").Return(node, nil)

		got, err := svc.Current(context.Background(), &CurrentRequest{UserID: "user123", RunID: "run-001"})

		require.NoError(t, err)
		require.NotNil(t, got.Node)
		assert.Equal(t, "midnight-library_1_mystery", got.Node.NodeID)
		assert.Empty(t, got.Genres)
	})

	t.Run("正常系: 完了済みランはノードなしで返す", func(t *testing.T) {
		svc, m := newTestService(t)
		now := time.Now()
		completed, err := run.ReconstructStoryRun("run-001", "user123", "midnight-library", run.TotalSteps, true, now, now)
		require.NoError(t, err)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(completed, nil)

		got, err := svc.Current(context.Background(), &CurrentRequest{UserID: "user123", RunID: "run-001"})

		require.NoError(t, err)
		assert.True(t, got.Completed)
		assert.Nil(t, got.Node)
	})

	t.Run("正常系: premiumプランは有料チャプターでもゲートを通過", func(t *testing.T) {
		svc, m := newTestService(t)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 3), nil)
		m.userRepo.On("FindByUserID", mock.Anything, "user123").Return(user.MustNewUser("user123", user.PlanPremium, false), nil)
		m.runRepo.On("FindChoice", mock.Anything, "run-001", 3).Return("", nil)
		m.nodeRepo.On("FindGenresByStep", mock.Anything, "midnight-library", 3).Return([]string{"mystery"}, nil)

		got, err := svc.Current(context.Background(), &CurrentRequest{UserID: "user123", RunID: "run-001"})

		require.NoError(t, err)
		assert.Equal(t, []string{"mystery"}, got.Genres)
	})

	t.Run("異常系: 有料チャプターが未解錠の場合はChapterLockedError", func(t *testing.T) {
		svc, m := newTestService(t)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 3), nil)
		m.userRepo.On("FindByUserID", mock.Anything, "user123").Return(user.MustNewUser("user123", user.PlanFree, false), nil)
		m.runRepo.On("IsUnlocked", mock.Anything, "run-001", 3).Return(false, nil)
		m.walletRepo.On("FindByUserID", mock.Anything, "user123").Return(wallet.MustNewWallet("user123", 50, 1), nil)

		got, err := svc.Current(context.Background(), &CurrentRequest{UserID: "user123", RunID: "run-001"})

		require.Error(t, err)
		assert.Nil(t, got)
		var lockedErr *run.ChapterLockedError
		require.ErrorAs(t, err, &lockedErr)
		assert.Equal(t, 3, lockedErr.ChapterNumber)
		assert.Equal(t, int64(100), lockedErr.RequiredCoins)
		assert.Equal(t, int64(50), lockedErr.Available)
	})

	t.Run("異常系: 他人のランはNotFound扱い", func(t *testing.T) {
		svc, m := newTestService(t)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 1), nil)

		got, err := svc.Current(context.Background(), &CurrentRequest{UserID: "other-user", RunID: "run-001"})

		assert.ErrorIs(t, err, run.ErrRunNotFound)
		assert.Nil(t, got)
	})
}

func TestRunApplicationService_Choose(t *testing.T) {
	t.Run("正常系: ジャンルを選択して次のステップへ進む", func(t *testing.T) {
		svc, m := newTestService(t)
		node := story.NewNode("midnight-library_1_mystery", "midnight-library", 1, "mystery", "開かれた扉", "...")
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 1), nil)
		m.userRepo.On("FindByUserID", mock.Anything, "user123").Return(user.MustNewUser("user123", user.PlanFree, false), nil)
		m.nodeRepo.On("FindByPosition", mock.Anything, "midnight-library", 1, "mystery").Return(node, nil)
		m.runRepo.On("SaveChoice", mock.Anything, "run-001", 1, "mystery").Return(nil)
		m.runRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		got, err := svc.Choose(context.Background(), &ChooseRequest{UserID: "user123", RunID: "run-001", Genre: "mystery"})

		require.NoError(t, err)
		assert.Equal(t, 2, got.CurrentStep)
		assert.False(t, got.Completed)
		require.NotNil(t, got.Node)
		assert.Equal(t, "midnight-library_1_mystery", got.Node.NodeID)
		m.runRepo.AssertExpectations(t)
	})

	t.Run("正常系: 最終ステップの選択でランが完了する", func(t *testing.T) {
		svc, m := newTestService(t)
		node := story.NewNode("midnight-library_5_mystery", "midnight-library", run.TotalSteps, "mystery", "結末", "...")
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, run.TotalSteps), nil)
		m.userRepo.On("FindByUserID", mock.Anything, "user123").Return(user.MustNewUser("user123", user.PlanPremium, false), nil)
		m.nodeRepo.On("FindByPosition", mock.Anything, "midnight-library", run.TotalSteps, "mystery").Return(node, nil)
		m.runRepo.On("SaveChoice", mock.Anything, "run-001", run.TotalSteps, "mystery").Return(nil)
		m.runRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		got, err := svc.Choose(context.Background(), &ChooseRequest{UserID: "user123", RunID: "run-001", Genre: "mystery"})

		require.NoError(t, err)
		assert.True(t, got.Completed)
		assert.Equal(t, run.TotalSteps, got.CurrentStep)
	})

	t.Run("異常系: 無効なジャンル", func(t *testing.T) {
		svc, _ := newTestService(t)

		got, err := svc.Choose(context.Background(), &ChooseRequest{UserID: "user123", RunID: "run-001", Genre: "Not A Genre"})

		assert.ErrorIs(t, err, run.ErrInvalidGenre)
		assert.Nil(t, got)
	})

	t.Run("異常系: 完了済みランでは選択できない", func(t *testing.T) {
		svc, m := newTestService(t)
		now := time.Now()
		completed, err := run.ReconstructStoryRun("run-001", "user123", "midnight-library", run.TotalSteps, true, now, now)
		require.NoError(t, err)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(completed, nil)

		got, err := svc.Choose(context.Background(), &ChooseRequest{UserID: "user123", RunID: "run-001", Genre: "mystery"})

		assert.ErrorIs(t, err, run.ErrRunCompleted)
		assert.Nil(t, got)
	})

	t.Run("異常系: 指定位置にノードが存在しない", func(t *testing.T) {
		svc, m := newTestService(t)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 1), nil)
		m.userRepo.On("FindByUserID", mock.Anything, "user123").Return(user.MustNewUser("user123", user.PlanFree, false), nil)
		m.nodeRepo.On("FindByPosition", mock.Anything, "midnight-library", 1, "horror").Return(nil, story.ErrNodeNotFound)

		got, err := svc.Choose(context.Background(), &ChooseRequest{UserID: "user123", RunID: "run-001", Genre: "horror"})

		assert.ErrorIs(t, err, story.ErrNodeNotFound)
		assert.Nil(t, got)
	})
}

func TestRunApplicationService_Rate(t *testing.T) {
	node := story.NewNode("midnight-library_1_mystery", "midnight-library", 1, "mystery", "開かれた扉", "...")

	t.Run("正常系: 評価を保存しリワードを付与", func(t *testing.T) {
		svc, m := newTestService(t)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 2), nil)
		m.nodeRepo.On("FindByNodeID", mock.Anything, "midnight-library_1_mystery").Return(node, nil)
		m.runRepo.On("SaveRating", mock.Anything, mock.Anything).Return(nil)

		rule := rewardrule.MustNewRewardRule("rating_reward", "評価ボーナス", 2, true, nil)
		m.ruleRepo.On("FindByKey", mock.Anything, "rating_reward").Return(rule, nil)
		m.transactionRepo.On("SumEarnedByRuleBetween", mock.Anything, "user123", "rating_reward", mock.Anything, mock.Anything).Return(int64(0), nil)
		m.walletRepo.On("FindByUserID", mock.Anything, "user123").Return(wallet.MustNewWallet("user123", 10, 1), nil)
		m.walletRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		m.transactionRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		got, err := svc.Rate(context.Background(), &RateRequest{UserID: "user123", RunID: "run-001", NodeID: "midnight-library_1_mystery", Rating: 5})

		require.NoError(t, err)
		assert.True(t, got.OK)
		assert.Equal(t, int64(2), got.CoinsAwarded)
		m.runRepo.AssertExpectations(t)
	})

	t.Run("正常系: リワードルール未設定でも評価は成功する", func(t *testing.T) {
		svc, m := newTestService(t)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 2), nil)
		m.nodeRepo.On("FindByNodeID", mock.Anything, "midnight-library_1_mystery").Return(node, nil)
		m.runRepo.On("SaveRating", mock.Anything, mock.Anything).Return(nil)
		m.ruleRepo.On("FindByKey", mock.Anything, "rating_reward").Return(nil, rewardrule.ErrRuleNotFound)

		got, err := svc.Rate(context.Background(), &RateRequest{UserID: "user123", RunID: "run-001", NodeID: "midnight-library_1_mystery", Rating: 4})

		require.NoError(t, err)
		assert.True(t, got.OK)
		assert.Equal(t, int64(0), got.CoinsAwarded)
	})

	t.Run("異常系: 同一ランでの再評価は拒否", func(t *testing.T) {
		svc, m := newTestService(t)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 2), nil)
		m.nodeRepo.On("FindByNodeID", mock.Anything, "midnight-library_1_mystery").Return(node, nil)
		m.runRepo.On("SaveRating", mock.Anything, mock.Anything).Return(run.ErrAlreadyRated)

		got, err := svc.Rate(context.Background(), &RateRequest{UserID: "user123", RunID: "run-001", NodeID: "midnight-library_1_mystery", Rating: 5})

		assert.ErrorIs(t, err, run.ErrAlreadyRated)
		assert.Nil(t, got)
	})

	t.Run("異常系: 別ストーリーのノードは評価できない", func(t *testing.T) {
		svc, m := newTestService(t)
		otherNode := story.NewNode("other-story_1_mystery", "other-story", 1, "mystery", "...", "...")
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 2), nil)
		m.nodeRepo.On("FindByNodeID", mock.Anything, "other-story_1_mystery").Return(otherNode, nil)

		got, err := svc.Rate(context.Background(), &RateRequest{UserID: "user123", RunID: "run-001", NodeID: "other-story_1_mystery", Rating: 5})

		assert.ErrorIs(t, err, story.ErrNodeNotFound)
		assert.Nil(t, got)
	})

	t.Run("異常系: 無効な評価値", func(t *testing.T) {
		svc, m := newTestService(t)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 2), nil)
		m.nodeRepo.On("FindByNodeID", mock.Anything, "midnight-library_1_mystery").Return(node, nil)

		got, err := svc.Rate(context.Background(), &RateRequest{UserID: "user123", RunID: "run-001", NodeID: "midnight-library_1_mystery", Rating: 6})

		assert.ErrorIs(t, err, run.ErrInvalidRating)
		assert.Nil(t, got)
	})

	t.Run("正常系: 評価保存とリワード付与は同一トランザクションで実行される", func(t *testing.T) {
		tm := &trackingTxManager{}
		svc, m := newTestServiceWithTxManager(t, tm)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 2), nil)
		m.nodeRepo.On("FindByNodeID", mock.Anything, "midnight-library_1_mystery").Return(node, nil)
		m.runRepo.On("SaveRating", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			assert.True(t, tm.inTx, "評価の保存がトランザクション外で実行された")
		}).Return(nil)

		rule := rewardrule.MustNewRewardRule("rating_reward", "評価ボーナス", 2, true, nil)
		m.ruleRepo.On("FindByKey", mock.Anything, "rating_reward").Return(rule, nil)
		m.transactionRepo.On("SumEarnedByRuleBetween", mock.Anything, "user123", "rating_reward", mock.Anything, mock.Anything).Return(int64(0), nil)
		m.walletRepo.On("FindByUserID", mock.Anything, "user123").Return(wallet.MustNewWallet("user123", 10, 1), nil)
		m.walletRepo.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			assert.True(t, tm.inTx, "ウォレット更新がトランザクション外で実行された")
		}).Return(nil)
		m.transactionRepo.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			assert.True(t, tm.inTx, "台帳追記がトランザクション外で実行された")
		}).Return(nil)

		got, err := svc.Rate(context.Background(), &RateRequest{UserID: "user123", RunID: "run-001", NodeID: "midnight-library_1_mystery", Rating: 5})

		require.NoError(t, err)
		assert.Equal(t, int64(2), got.CoinsAwarded)
		// 付与側のWithTransactionは新規開始せず評価側のトランザクションに参加する
		assert.Equal(t, 1, tm.begun)
		assert.Equal(t, 1, tm.joined)
	})

	t.Run("異常系: リワード付与の基盤エラーは評価ごと失敗させる", func(t *testing.T) {
		svc, m := newTestService(t)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 2), nil)
		m.nodeRepo.On("FindByNodeID", mock.Anything, "midnight-library_1_mystery").Return(node, nil)
		m.runRepo.On("SaveRating", mock.Anything, mock.Anything).Return(nil)

		rule := rewardrule.MustNewRewardRule("rating_reward", "評価ボーナス", 2, true, nil)
		m.ruleRepo.On("FindByKey", mock.Anything, "rating_reward").Return(rule, nil)
		m.transactionRepo.On("SumEarnedByRuleBetween", mock.Anything, "user123", "rating_reward", mock.Anything, mock.Anything).Return(int64(0), errors.New("db gone"))

		got, err := svc.Rate(context.Background(), &RateRequest{UserID: "user123", RunID: "run-001", NodeID: "midnight-library_1_mystery", Rating: 5})

		assert.Error(t, err)
		assert.Nil(t, got)
	})
}

func TestRunApplicationService_Unlock(t *testing.T) {
	t.Run("正常系: コインを消費してチャプターを解錠", func(t *testing.T) {
		svc, m := newTestService(t)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 2), nil)
		m.runRepo.On("IsUnlocked", mock.Anything, "run-001", 3).Return(false, nil)
		m.walletRepo.On("FindByUserID", mock.Anything, "user123").Return(wallet.MustNewWallet("user123", 150, 1), nil)
		m.walletRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		m.transactionRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		m.runRepo.On("SaveUnlock", mock.Anything, mock.Anything).Return(nil)

		got, err := svc.Unlock(context.Background(), &UnlockRequest{UserID: "user123", RunID: "run-001", ChapterNumber: 3})

		require.NoError(t, err)
		assert.True(t, got.Unlocked)
		assert.NotEmpty(t, got.TransactionID)
		assert.Equal(t, int64(50), got.BalanceAfter)
		m.runRepo.AssertExpectations(t)
		m.walletRepo.AssertExpectations(t)
		m.transactionRepo.AssertExpectations(t)
	})

	t.Run("異常系: コイン不足の場合は残高を変更しない", func(t *testing.T) {
		svc, m := newTestService(t)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 2), nil)
		m.runRepo.On("IsUnlocked", mock.Anything, "run-001", 3).Return(false, nil)
		m.walletRepo.On("FindByUserID", mock.Anything, "user123").Return(wallet.MustNewWallet("user123", 50, 1), nil)

		got, err := svc.Unlock(context.Background(), &UnlockRequest{UserID: "user123", RunID: "run-001", ChapterNumber: 3})

		require.Error(t, err)
		assert.Nil(t, got)
		var insufficientErr *run.InsufficientCoinsError
		require.ErrorAs(t, err, &insufficientErr)
		assert.Equal(t, int64(50), insufficientErr.Available)
		assert.Equal(t, int64(100), insufficientErr.Required)
		m.walletRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		m.transactionRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("異常系: ウォレット未作成の場合はavailable=0", func(t *testing.T) {
		svc, m := newTestService(t)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 2), nil)
		m.runRepo.On("IsUnlocked", mock.Anything, "run-001", 3).Return(false, nil)
		m.walletRepo.On("FindByUserID", mock.Anything, "user123").Return(nil, wallet.ErrWalletNotFound)

		got, err := svc.Unlock(context.Background(), &UnlockRequest{UserID: "user123", RunID: "run-001", ChapterNumber: 3})

		require.Error(t, err)
		assert.Nil(t, got)
		var insufficientErr *run.InsufficientCoinsError
		require.ErrorAs(t, err, &insufficientErr)
		assert.Equal(t, int64(0), insufficientErr.Available)
	})

	t.Run("異常系: 既に解錠済み", func(t *testing.T) {
		svc, m := newTestService(t)
		m.runRepo.On("FindByRunID", mock.Anything, "run-001").Return(runAtStep(t, 2), nil)
		m.runRepo.On("IsUnlocked", mock.Anything, "run-001", 3).Return(true, nil)

		got, err := svc.Unlock(context.Background(), &UnlockRequest{UserID: "user123", RunID: "run-001", ChapterNumber: 3})

		assert.ErrorIs(t, err, run.ErrAlreadyUnlocked)
		assert.Nil(t, got)
		m.walletRepo.AssertNotCalled(t, "FindByUserID", mock.Anything, mock.Anything)
	})

	t.Run("異常系: 無料チャプターは解錠対象外", func(t *testing.T) {
		svc, _ := newTestService(t)

		got, err := svc.Unlock(context.Background(), &UnlockRequest{UserID: "user123", RunID: "run-001", ChapterNumber: 1})

		assert.ErrorIs(t, err, run.ErrInvalidChapter)
		assert.Nil(t, got)
	})
}

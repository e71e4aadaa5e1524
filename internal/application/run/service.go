package run

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

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

// RunApplicationService ストーリーランアプリケーションサービス
type RunApplicationService struct {
	runRepo         run.RunRepository
	nodeRepo        story.NodeRepository
	userRepo        user.UserRepository
	walletRepo      wallet.WalletRepository
	transactionRepo ledger.TransactionRepository
	txManager       ledger.TransactionManager
	gateService     *service.GateService
	ledgerService   *ledgerapp.LedgerApplicationService
	unlockCost      int64
	ratingRuleKey   string
	logger          *otelinfra.Logger
	metrics         *otelinfra.Metrics
	tracer          trace.Tracer
	maxRetries      int
}

// NewRunApplicationService 新しいRunApplicationServiceを作成
func NewRunApplicationService(
	runRepo run.RunRepository,
	nodeRepo story.NodeRepository,
	userRepo user.UserRepository,
	walletRepo wallet.WalletRepository,
	transactionRepo ledger.TransactionRepository,
	txManager ledger.TransactionManager,
	gateService *service.GateService,
	ledgerService *ledgerapp.LedgerApplicationService,
	unlockCost int64,
	ratingRuleKey string,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *RunApplicationService {
	return &RunApplicationService{
		runRepo:         runRepo,
		nodeRepo:        nodeRepo,
		userRepo:        userRepo,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		txManager:       txManager,
		gateService:     gateService,
		ledgerService:   ledgerService,
		unlockCost:      unlockCost,
		ratingRuleKey:   ratingRuleKey,
		logger:          logger,
		metrics:         metrics,
		tracer:          otel.Tracer("run-service"),
		maxRetries:      3,
	}
}

// StartRun 新しいランを開始
func (s *RunApplicationService) StartRun(ctx context.Context, req *StartRunRequest) (*StartRunResponse, error) {
	ctx, span := s.tracer.Start(ctx, "RunApplicationService.StartRun")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("story", req.Story),
	)

	s.logger.Info(ctx, "Starting run", map[string]interface{}{
		"user_id": req.UserID,
		"story":   req.Story,
	})

	runID := uuid.NewString()

	storyRun, err := run.NewStoryRun(runID, req.UserID, req.Story)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if err := s.userRepo.EnsureExists(ctx, req.UserID); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to ensure user exists: %w", err)
	}

	if err := s.runRepo.Create(ctx, storyRun); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to create run", err, map[string]interface{}{
			"user_id": req.UserID,
			"story":   req.Story,
		})
		return nil, err
	}

	span.SetAttributes(attribute.String("run_id", runID))
	s.logger.Info(ctx, "Run started", map[string]interface{}{
		"run_id":  runID,
		"user_id": req.UserID,
		"story":   req.Story,
	})

	return &StartRunResponse{
		RunID:       storyRun.RunID(),
		Story:       storyRun.Story(),
		CurrentStep: storyRun.CurrentStep(),
		Completed:   storyRun.Completed(),
	}, nil
}

// Current ランの現在チャプターを取得
// 現在ステップが有料かつ未解錠の場合はChapterLockedErrorを返す
func (s *RunApplicationService) Current(ctx context.Context, req *CurrentRequest) (*CurrentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "RunApplicationService.Current")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("run_id", req.RunID),
	)

	storyRun, err := s.findOwnedRun(ctx, req.RunID, req.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if storyRun.Completed() {
		return &CurrentResponse{
			RunID:       storyRun.RunID(),
			Story:       storyRun.Story(),
			CurrentStep: storyRun.CurrentStep(),
			Completed:   true,
		}, nil
	}

	if err := s.checkGate(ctx, req.UserID, storyRun, storyRun.CurrentStep()); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	resp := &CurrentResponse{
		RunID:       storyRun.RunID(),
		Story:       storyRun.Story(),
		CurrentStep: storyRun.CurrentStep(),
		Completed:   storyRun.Completed(),
	}

	genre, err := s.runRepo.FindChoice(ctx, storyRun.RunID(), storyRun.CurrentStep())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if genre == "" {
		// ジャンル未選択: 選択肢を返す
		genres, err := s.nodeRepo.FindGenresByStep(ctx, storyRun.Story(), storyRun.CurrentStep())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		resp.Genres = genres
		return resp, nil
	}

	node, err := s.nodeRepo.FindByPosition(ctx, storyRun.Story(), storyRun.CurrentStep(), genre)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	resp.Node = toNodeDTO(node)
	return resp, nil
}

// Choose 現在ステップのジャンルを選択して次のステップへ進む
// 選択したノードの本文を返す。最終ステップの選択でランは完了になる
func (s *RunApplicationService) Choose(ctx context.Context, req *ChooseRequest) (*ChooseResponse, error) {
	ctx, span := s.tracer.Start(ctx, "RunApplicationService.Choose")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("run_id", req.RunID),
		attribute.String("genre", req.Genre),
	)

	s.logger.Info(ctx, "Choosing genre", map[string]interface{}{
		"user_id": req.UserID,
		"run_id":  req.RunID,
		"genre":   req.Genre,
	})

	if !run.ValidGenre(req.Genre) {
		err := run.ErrInvalidGenre
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	storyRun, err := s.findOwnedRun(ctx, req.RunID, req.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if storyRun.Completed() {
		err := run.ErrRunCompleted
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	stepNo := storyRun.CurrentStep()

	if err := s.checkGate(ctx, req.UserID, storyRun, stepNo); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	node, err := s.nodeRepo.FindByPosition(ctx, storyRun.Story(), stepNo, req.Genre)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.runRepo.SaveChoice(ctx, storyRun.RunID(), stepNo, req.Genre); err != nil {
			return err
		}
		if err := storyRun.Advance(); err != nil {
			return err
		}
		return s.runRepo.Save(ctx, storyRun)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to save choice", err, map[string]interface{}{
			"run_id": req.RunID,
			"genre":  req.Genre,
		})
		return nil, err
	}

	s.logger.Info(ctx, "Genre chosen", map[string]interface{}{
		"run_id":       req.RunID,
		"step_no":      stepNo,
		"genre":        req.Genre,
		"current_step": storyRun.CurrentStep(),
		"completed":    storyRun.Completed(),
	})

	return &ChooseResponse{
		RunID:       storyRun.RunID(),
		Node:        toNodeDTO(node),
		CurrentStep: storyRun.CurrentStep(),
		Completed:   storyRun.Completed(),
	}, nil
}

// Rate ノードを評価し、リワードルールに従ってコインを付与
// 同一ラン内での再評価は拒否する（リワードの二重取り防止）
func (s *RunApplicationService) Rate(ctx context.Context, req *RateRequest) (*RateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "RunApplicationService.Rate")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("run_id", req.RunID),
		attribute.String("node_id", req.NodeID),
		attribute.Int("rating", req.Rating),
	)

	s.logger.Info(ctx, "Rating node", map[string]interface{}{
		"user_id": req.UserID,
		"run_id":  req.RunID,
		"node_id": req.NodeID,
		"rating":  req.Rating,
	})

	storyRun, err := s.findOwnedRun(ctx, req.RunID, req.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	node, err := s.nodeRepo.FindByNodeID(ctx, req.NodeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if node.Story() != storyRun.Story() {
		err := story.ErrNodeNotFound
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	rating, err := run.NewNodeRating(req.RunID, req.NodeID, req.Rating)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	// 評価とリワード付与を同一トランザクションで書き込む
	// 付与が失敗して評価行だけ残ると、再試行がErrAlreadyRatedで弾かれてしまう
	var coinsAwarded int64
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.runRepo.SaveRating(ctx, rating); err != nil {
			return err
		}

		// 評価リワードの付与。ルール未設定・無効の場合は0コインで成功扱い
		earnResp, err := s.ledgerService.Earn(ctx, &ledgerapp.EarnRequest{
			UserID:  req.UserID,
			RuleKey: s.ratingRuleKey,
			Metadata: map[string]interface{}{
				"run_id":  req.RunID,
				"node_id": req.NodeID,
				"rating":  req.Rating,
			},
		})
		if err != nil {
			if errors.Is(err, rewardrule.ErrRuleNotFound) || errors.Is(err, rewardrule.ErrRuleDisabled) {
				s.logger.Warn(ctx, "Rating reward rule unavailable", map[string]interface{}{
					"rule_key": s.ratingRuleKey,
				})
				return nil
			}
			return err
		}
		coinsAwarded = earnResp.CoinsAwarded
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	s.logger.Info(ctx, "Node rated", map[string]interface{}{
		"run_id":        req.RunID,
		"node_id":       req.NodeID,
		"coins_awarded": coinsAwarded,
	})

	return &RateResponse{
		OK:           true,
		CoinsAwarded: coinsAwarded,
	}, nil
}

// Unlock 有料チャプターをコインで解錠
// 消費トランザクションと解錠レコードを単一DBトランザクションで書き込む
func (s *RunApplicationService) Unlock(ctx context.Context, req *UnlockRequest) (*UnlockResponse, error) {
	ctx, span := s.tracer.Start(ctx, "RunApplicationService.Unlock")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("run_id", req.RunID),
		attribute.Int("chapter_number", req.ChapterNumber),
	)

	s.logger.Info(ctx, "Unlocking chapter", map[string]interface{}{
		"user_id":        req.UserID,
		"run_id":         req.RunID,
		"chapter_number": req.ChapterNumber,
	})

	if !run.ValidChapter(req.ChapterNumber) || run.IsFreeChapter(req.ChapterNumber) {
		err := run.ErrInvalidChapter
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	storyRun, err := s.findOwnedRun(ctx, req.RunID, req.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	transactionID := fmt.Sprintf("txn_%d", time.Now().UnixNano())

	var result *UnlockResponse
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		unlocked, err := s.runRepo.IsUnlocked(ctx, storyRun.RunID(), req.ChapterNumber)
		if err != nil {
			return err
		}
		if unlocked {
			return run.ErrAlreadyUnlocked
		}

		var retryErr error
		for attempt := 0; attempt < s.maxRetries; attempt++ {
			if attempt > 0 {
				backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 10 * time.Millisecond
				time.Sleep(backoff)
			}

			w, err := s.walletRepo.FindByUserID(ctx, req.UserID)
			if err != nil {
				if errors.Is(err, wallet.ErrWalletNotFound) {
					return &run.InsufficientCoinsError{Available: 0, Required: s.unlockCost}
				}
				return fmt.Errorf("failed to find wallet: %w", err)
			}

			balanceBefore := w.Balance()

			if err := w.Debit(s.unlockCost); err != nil {
				if errors.Is(err, wallet.ErrInsufficientBalance) {
					return &run.InsufficientCoinsError{Available: balanceBefore, Required: s.unlockCost}
				}
				return err
			}

			if err := s.walletRepo.Save(ctx, w); err != nil {
				if attempt < s.maxRetries-1 {
					retryErr = err
					continue
				}
				return fmt.Errorf("failed to save wallet after retries: %w", err)
			}

			txn, err := ledger.NewTransaction(
				transactionID,
				req.UserID,
				ledger.TransactionTypeRedeem,
				-s.unlockCost,
				balanceBefore,
				w.Balance(),
				"chapter_unlock",
				map[string]interface{}{
					"run_id":     req.RunID,
					"chapter_no": req.ChapterNumber,
				},
			)
			if err != nil {
				return err
			}

			if err := s.transactionRepo.Save(ctx, txn); err != nil {
				return fmt.Errorf("failed to save transaction: %w", err)
			}

			unlock, err := run.NewChapterUnlock(storyRun.RunID(), req.ChapterNumber, transactionID)
			if err != nil {
				return err
			}
			// 一意制約違反（並行解錠）の場合はErrAlreadyUnlockedでロールバックし、二重課金しない
			if err := s.runRepo.SaveUnlock(ctx, unlock); err != nil {
				return err
			}

			s.metrics.RecordTransaction(ctx, "redeem")
			s.metrics.RecordCoinsSpent(ctx, "chapter_unlock", s.unlockCost)
			s.metrics.RecordChapterUnlock(ctx, req.ChapterNumber)
			s.metrics.RecordWalletBalance(ctx, req.UserID, w.Balance())

			result = &UnlockResponse{
				Unlocked:      true,
				TransactionID: transactionID,
				BalanceAfter:  w.Balance(),
			}

			return nil
		}

		return retryErr
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to unlock chapter", err, map[string]interface{}{
			"user_id":        req.UserID,
			"run_id":         req.RunID,
			"chapter_number": req.ChapterNumber,
		})
		s.metrics.RecordError(ctx, "unlock_failed")
		return nil, err
	}

	s.logger.Info(ctx, "Chapter unlocked", map[string]interface{}{
		"run_id":         req.RunID,
		"chapter_number": req.ChapterNumber,
		"transaction_id": transactionID,
		"balance_after":  result.BalanceAfter,
	})

	return result, nil
}

// findOwnedRun ランを取得し、リクエスト主の所有であることを確認
// 他人のランはNotFound扱いにする（存在の有無を漏らさない）
func (s *RunApplicationService) findOwnedRun(ctx context.Context, runID, userID string) (*run.StoryRun, error) {
	storyRun, err := s.runRepo.FindByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if storyRun.UserID() != userID {
		return nil, run.ErrRunNotFound
	}
	return storyRun, nil
}

// checkGate 現在のプランと解錠状態でチャプターへアクセスできるかを確認
// アクセスできない場合はペイウォール表示用のChapterLockedErrorを返す
func (s *RunApplicationService) checkGate(ctx context.Context, userID string, storyRun *run.StoryRun, chapterNo int) error {
	u, err := s.userRepo.FindByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			return fmt.Errorf("failed to find user: %w", err)
		}
		u, err = user.NewUser(userID, user.PlanFree, false)
		if err != nil {
			return err
		}
	}

	ok, err := s.gateService.CanAccessChapter(ctx, u, storyRun, chapterNo)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	var available int64
	w, err := s.walletRepo.FindByUserID(ctx, userID)
	if err != nil && !errors.Is(err, wallet.ErrWalletNotFound) {
		return fmt.Errorf("failed to find wallet: %w", err)
	}
	if w != nil {
		available = w.Balance()
	}

	return &run.ChapterLockedError{
		ChapterNumber: chapterNo,
		RequiredCoins: s.unlockCost,
		Available:     available,
	}
}

// toNodeDTO ノードエンティティをDTOへ変換
func toNodeDTO(n *story.Node) *NodeDTO {
	return &NodeDTO{
		NodeID: n.NodeID(),
		Story:  n.Story(),
		StepNo: n.StepNo(),
		Genre:  n.Genre(),
		Title:  n.Title(),
		Body:   n.Body(),
	}
}

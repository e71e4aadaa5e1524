package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storyverse-server/internal/domain/run"
)

// RunRepository MySQL実装のRunRepository
type RunRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewRunRepository 新しいRunRepositoryを作成
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{
		db:     db,
		tracer: otel.Tracer("run-repository"),
	}
}

// Create 新しいランを作成
func (r *RunRepository) Create(ctx context.Context, storyRun *run.StoryRun) error {
	ctx, span := r.tracer.Start(ctx, "RunRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.run_id", storyRun.RunID()),
		attribute.String("db.user_id", storyRun.UserID()),
		attribute.String("db.story", storyRun.Story()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "story_runs"),
	)

	query := `
		INSERT INTO story_runs (run_id, user_id, story, current_step, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		storyRun.RunID(),
		storyRun.UserID(),
		storyRun.Story(),
		storyRun.CurrentStep(),
		storyRun.Completed(),
		storyRun.CreatedAt(),
		storyRun.UpdatedAt(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to create run: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "run created")
	return nil
}

// FindByRunID ランIDでランを取得
func (r *RunRepository) FindByRunID(ctx context.Context, runID string) (*run.StoryRun, error) {
	ctx, span := r.tracer.Start(ctx, "RunRepository.FindByRunID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.run_id", runID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "story_runs"),
	)

	query := `
		SELECT run_id, user_id, story, current_step, completed, created_at, updated_at
		FROM story_runs
		WHERE run_id = ?
	`

	var dbRunID, dbUserID, dbStory string
	var currentStep int
	var completed bool
	var createdAt, updatedAt time.Time

	err := r.db.executor(ctx).QueryRowContext(ctx, query, runID).Scan(
		&dbRunID,
		&dbUserID,
		&dbStory,
		&currentStep,
		&completed,
		&createdAt,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "run not found")
		return nil, run.ErrRunNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find run: %w", err)
	}

	span.SetAttributes(
		attribute.Int("db.current_step", currentStep),
		attribute.Bool("db.completed", completed),
	)
	span.SetStatus(otelcodes.Ok, "run found")

	storyRun, err := run.ReconstructStoryRun(dbRunID, dbUserID, dbStory, currentStep, completed, createdAt, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct run entity: %w", err)
	}

	return storyRun, nil
}

// Save ランの進行状態を保存
func (r *RunRepository) Save(ctx context.Context, storyRun *run.StoryRun) error {
	ctx, span := r.tracer.Start(ctx, "RunRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.run_id", storyRun.RunID()),
		attribute.Int("db.current_step", storyRun.CurrentStep()),
		attribute.Bool("db.completed", storyRun.Completed()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "story_runs"),
	)

	query := `
		UPDATE story_runs
		SET current_step = ?, completed = ?, updated_at = ?
		WHERE run_id = ?
	`

	result, err := r.db.executor(ctx).ExecContext(ctx, query,
		storyRun.CurrentStep(),
		storyRun.Completed(),
		storyRun.UpdatedAt(),
		storyRun.RunID(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		span.SetStatus(otelcodes.Ok, "run not found")
		return run.ErrRunNotFound
	}

	span.SetStatus(otelcodes.Ok, "run saved")
	return nil
}

// SaveChoice ステップごとのジャンル選択を保存
func (r *RunRepository) SaveChoice(ctx context.Context, runID string, stepNo int, genre string) error {
	ctx, span := r.tracer.Start(ctx, "RunRepository.SaveChoice")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.run_id", runID),
		attribute.Int("db.step_no", stepNo),
		attribute.String("db.genre", genre),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "run_choices"),
	)

	query := `
		INSERT INTO run_choices (run_id, step_no, genre)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE genre = VALUES(genre)
	`

	_, err := r.db.executor(ctx).ExecContext(ctx, query, runID, stepNo, genre)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save choice: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "choice saved")
	return nil
}

// FindChoice 指定ステップの選択済みジャンルを取得（未選択の場合は空文字）
func (r *RunRepository) FindChoice(ctx context.Context, runID string, stepNo int) (string, error) {
	ctx, span := r.tracer.Start(ctx, "RunRepository.FindChoice")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.run_id", runID),
		attribute.Int("db.step_no", stepNo),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "run_choices"),
	)

	query := `
		SELECT genre
		FROM run_choices
		WHERE run_id = ? AND step_no = ?
	`

	var genre string
	err := r.db.executor(ctx).QueryRowContext(ctx, query, runID, stepNo).Scan(&genre)
	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "choice not found")
		return "", nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return "", fmt.Errorf("failed to find choice: %w", err)
	}

	span.SetAttributes(attribute.String("db.genre", genre))
	span.SetStatus(otelcodes.Ok, "choice found")
	return genre, nil
}

// SaveUnlock チャプター解錠レコードを保存
func (r *RunRepository) SaveUnlock(ctx context.Context, unlock *run.ChapterUnlock) error {
	ctx, span := r.tracer.Start(ctx, "RunRepository.SaveUnlock")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.run_id", unlock.RunID()),
		attribute.Int("db.chapter_no", unlock.ChapterNo()),
		attribute.String("db.transaction_id", unlock.TransactionID()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "run_unlocks"),
	)

	query := `
		INSERT INTO run_unlocks (run_id, chapter_no, transaction_id, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		unlock.RunID(),
		unlock.ChapterNo(),
		unlock.TransactionID(),
		unlock.CreatedAt(),
	)

	if err != nil {
		var mysqlErr *mysql.MySQLError
		// 1062 = ER_DUP_ENTRY
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			span.SetStatus(otelcodes.Ok, "chapter already unlocked")
			return run.ErrAlreadyUnlocked
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save unlock: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "unlock saved")
	return nil
}

// IsUnlocked 指定チャプターが解錠済みかどうかを返す
func (r *RunRepository) IsUnlocked(ctx context.Context, runID string, chapterNo int) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "RunRepository.IsUnlocked")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.run_id", runID),
		attribute.Int("db.chapter_no", chapterNo),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "run_unlocks"),
	)

	query := `
		SELECT EXISTS(
			SELECT 1 FROM run_unlocks WHERE run_id = ? AND chapter_no = ?
		)
	`

	var unlocked bool
	if err := r.db.executor(ctx).QueryRowContext(ctx, query, runID, chapterNo).Scan(&unlocked); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to check unlock: %w", err)
	}

	span.SetAttributes(attribute.Bool("db.unlocked", unlocked))
	span.SetStatus(otelcodes.Ok, "unlock checked")
	return unlocked, nil
}

// SaveRating ノード評価を保存
func (r *RunRepository) SaveRating(ctx context.Context, rating *run.NodeRating) error {
	ctx, span := r.tracer.Start(ctx, "RunRepository.SaveRating")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.run_id", rating.RunID()),
		attribute.String("db.node_id", rating.NodeID()),
		attribute.Int("db.rating", rating.Rating()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "node_ratings"),
	)

	query := `
		INSERT INTO node_ratings (run_id, node_id, rating, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		rating.RunID(),
		rating.NodeID(),
		rating.Rating(),
		rating.CreatedAt(),
	)

	if err != nil {
		var mysqlErr *mysql.MySQLError
		// 1062 = ER_DUP_ENTRY
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			span.SetStatus(otelcodes.Ok, "node already rated")
			return run.ErrAlreadyRated
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save rating: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "rating saved")
	return nil
}

// HasRating ノードが評価済みかどうかを返す
func (r *RunRepository) HasRating(ctx context.Context, runID, nodeID string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "RunRepository.HasRating")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.run_id", runID),
		attribute.String("db.node_id", nodeID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "node_ratings"),
	)

	query := `
		SELECT EXISTS(
			SELECT 1 FROM node_ratings WHERE run_id = ? AND node_id = ?
		)
	`

	var rated bool
	if err := r.db.executor(ctx).QueryRowContext(ctx, query, runID, nodeID).Scan(&rated); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to check rating: %w", err)
	}

	span.SetAttributes(attribute.Bool("db.rated", rated))
	span.SetStatus(otelcodes.Ok, "rating checked")
	return rated, nil
}

package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storyverse-server/internal/domain/story"
)

// StoryNodeRepository MySQL実装のNodeRepository
type StoryNodeRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewStoryNodeRepository 新しいStoryNodeRepositoryを作成
func NewStoryNodeRepository(db *DB) *StoryNodeRepository {
	return &StoryNodeRepository{
		db:     db,
		tracer: otel.Tracer("story-node-repository"),
	}
}

// FindByNodeID ノードIDでノードを取得
func (r *StoryNodeRepository) FindByNodeID(ctx context.Context, nodeID string) (*story.Node, error) {
	ctx, span := r.tracer.Start(ctx, "StoryNodeRepository.FindByNodeID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.node_id", nodeID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "story_nodes"),
	)

	query := `
		SELECT node_id, story, step_no, genre, title, body
		FROM story_nodes
		WHERE node_id = ?
	`

	var dbNodeID, dbStory, genre, title, body string
	var stepNo int

	err := r.db.executor(ctx).QueryRowContext(ctx, query, nodeID).Scan(
		&dbNodeID,
		&dbStory,
		&stepNo,
		&genre,
		&title,
		&body,
	)

	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "node not found")
		return nil, story.ErrNodeNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find node: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "node found")
	return story.NewNode(dbNodeID, dbStory, stepNo, genre, title, body), nil
}

// FindByPosition ストーリー・ステップ・ジャンルでノードを取得
func (r *StoryNodeRepository) FindByPosition(ctx context.Context, storyID string, stepNo int, genre string) (*story.Node, error) {
	ctx, span := r.tracer.Start(ctx, "StoryNodeRepository.FindByPosition")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.story", storyID),
		attribute.Int("db.step_no", stepNo),
		attribute.String("db.genre", genre),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "story_nodes"),
	)

	query := `
		SELECT node_id, story, step_no, genre, title, body
		FROM story_nodes
		WHERE story = ? AND step_no = ? AND genre = ?
	`

	var dbNodeID, dbStory, dbGenre, title, body string
	var dbStepNo int

	err := r.db.executor(ctx).QueryRowContext(ctx, query, storyID, stepNo, genre).Scan(
		&dbNodeID,
		&dbStory,
		&dbStepNo,
		&dbGenre,
		&title,
		&body,
	)

	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "node not found")
		return nil, story.ErrNodeNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find node: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "node found")
	return story.NewNode(dbNodeID, dbStory, dbStepNo, dbGenre, title, body), nil
}

// FindGenresByStep 指定ストーリー・ステップで選択可能なジャンル一覧を取得
func (r *StoryNodeRepository) FindGenresByStep(ctx context.Context, storyID string, stepNo int) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "StoryNodeRepository.FindGenresByStep")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.story", storyID),
		attribute.Int("db.step_no", stepNo),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "story_nodes"),
	)

	query := `
		SELECT genre
		FROM story_nodes
		WHERE story = ? AND step_no = ?
		ORDER BY genre
	`

	rows, err := r.db.executor(ctx).QueryContext(ctx, query, storyID, stepNo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query genres: %w", err)
	}
	defer rows.Close()

	var genres []string
	for rows.Next() {
		var genre string
		if err := rows.Scan(&genre); err != nil {
			return nil, fmt.Errorf("failed to scan genre: %w", err)
		}
		genres = append(genres, genre)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate genres: %w", err)
	}

	span.SetAttributes(attribute.Int("db.result_count", len(genres)))
	span.SetStatus(otelcodes.Ok, fmt.Sprintf("found %d genres", len(genres)))
	return genres, nil
}

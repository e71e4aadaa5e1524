package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storyverse-server/internal/domain/user"
)

// UserRepository MySQL実装のUserRepository
type UserRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewUserRepository 新しいUserRepositoryを作成
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{
		db:     db,
		tracer: otel.Tracer("user-repository"),
	}
}

// FindByUserID ユーザーIDでユーザーを取得
func (r *UserRepository) FindByUserID(ctx context.Context, userID string) (*user.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.FindByUserID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "users"),
	)

	query := `
		SELECT user_id, plan, is_admin, created_at
		FROM users
		WHERE user_id = ?
	`

	var dbUserID, dbPlan string
	var isAdmin bool
	var createdAt time.Time

	err := r.db.executor(ctx).QueryRowContext(ctx, query, userID).Scan(
		&dbUserID,
		&dbPlan,
		&isAdmin,
		&createdAt,
	)

	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "user not found")
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	plan, err := user.NewPlan(dbPlan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	span.SetAttributes(attribute.String("db.plan", dbPlan))
	span.SetStatus(otelcodes.Ok, "user found")

	u, err := user.ReconstructUser(dbUserID, plan, isAdmin, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct user entity: %w", err)
	}

	return u, nil
}

// EnsureExists ユーザーが存在することを確認（存在しない場合は無料プランで作成）
func (r *UserRepository) EnsureExists(ctx context.Context, userID string) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.EnsureExists")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "users"),
	)

	query := `
		INSERT INTO users (user_id, plan, is_admin)
		VALUES (?, 'free', FALSE)
		ON DUPLICATE KEY UPDATE updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.executor(ctx).ExecContext(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to ensure user exists: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "user ensured")
	return nil
}

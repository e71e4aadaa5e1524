package mysql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"storyverse-server/internal/domain/user"
)

func TestUserRepository_FindByUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &UserRepository{
		db:     &DB{DB: db},
		tracer: otel.Tracer("test"),
	}

	tests := []struct {
		name      string
		userID    string
		setupMock func()
		wantPlan  user.Plan
		wantError bool
		errorType error
	}{
		{
			name:   "正常系: 無料プランのユーザー",
			userID: "user123",
			setupMock: func() {
				rows := sqlmock.NewRows([]string{"user_id", "plan", "is_admin", "created_at"}).
					AddRow("user123", "free", false, testTime())
				mock.ExpectQuery(`SELECT user_id, plan, is_admin`).
					WithArgs("user123").
					WillReturnRows(rows)
			},
			wantPlan: user.PlanFree,
		},
		{
			name:   "正常系: プレミアムプランのユーザー",
			userID: "user456",
			setupMock: func() {
				rows := sqlmock.NewRows([]string{"user_id", "plan", "is_admin", "created_at"}).
					AddRow("user456", "premium", false, testTime())
				mock.ExpectQuery(`SELECT user_id, plan, is_admin`).
					WithArgs("user456").
					WillReturnRows(rows)
			},
			wantPlan: user.PlanPremium,
		},
		{
			name:   "異常系: ユーザーが見つからない",
			userID: "user404",
			setupMock: func() {
				mock.ExpectQuery(`SELECT user_id, plan, is_admin`).
					WithArgs("user404").
					WillReturnError(sql.ErrNoRows)
			},
			wantError: true,
			errorType: user.ErrUserNotFound,
		},
		{
			name:   "異常系: 不明なプラン値",
			userID: "user123",
			setupMock: func() {
				rows := sqlmock.NewRows([]string{"user_id", "plan", "is_admin", "created_at"}).
					AddRow("user123", "platinum", false, testTime())
				mock.ExpectQuery(`SELECT user_id, plan, is_admin`).
					WithArgs("user123").
					WillReturnRows(rows)
			},
			wantError: true,
		},
		{
			name:   "異常系: DBエラー",
			userID: "user123",
			setupMock: func() {
				mock.ExpectQuery(`SELECT user_id, plan, is_admin`).
					WithArgs("user123").
					WillReturnError(sql.ErrConnDone)
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()
			got, err := repo.FindByUserID(context.Background(), tt.userID)

			if tt.wantError {
				assert.Error(t, err)
				if tt.errorType != nil {
					assert.Equal(t, tt.errorType, err)
				}
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.userID, got.UserID())
				assert.Equal(t, tt.wantPlan, got.Plan())
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_EnsureExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &UserRepository{
		db:     &DB{DB: db},
		tracer: otel.Tracer("test"),
	}

	t.Run("正常系: ユーザーを作成", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs("user123").
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.EnsureExists(context.Background(), "user123")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("異常系: DBエラー", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs("user123").
			WillReturnError(sql.ErrConnDone)

		err := repo.EnsureExists(context.Background(), "user123")

		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

package mysql

import (
	"context"
)

// TransactionManager DBトランザクション管理を提供
type TransactionManager struct {
	db *DB
}

// NewTransactionManager 新しいトランザクションマネージャーを作成
func NewTransactionManager(db *DB) *TransactionManager {
	return &TransactionManager{db: db}
}

// WithTransaction トランザクション内で関数を実行
// 開始したトランザクションはコンテキスト経由でリポジトリへ伝播し、fn配下の
// 全クエリが同一トランザクションで実行される。fnがエラーを返した場合・
// panicした場合はロールバックし、正常終了時のみコミットする。
// 既にトランザクション中のコンテキストで呼ばれた場合は外側に参加する
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(withTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

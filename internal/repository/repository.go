// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"

	"github.com/zhipai/zhipai/pkg/model"
)

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// RunStore 运行历史仓储接口
//
// 同时充当派发器的本地结果目录来源（命名冲突检查的后备）
// 和 Result_N 计数器的持久化存储。
type RunStore interface {
	SaveRun(ctx context.Context, r *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.RunResult, error)
	ListRuns(ctx context.Context, limit int) ([]*model.RunResult, error)
	ListFolders(ctx context.Context) ([]model.ResultFolder, error)
	NextCounter(ctx context.Context) (int, error)
	BumpCounter(ctx context.Context, n int) error
}

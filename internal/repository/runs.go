// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/zhipai/zhipai/pkg/model"
)

// RunRepository 基于 PostgreSQL 的运行历史仓储
type RunRepository struct {
	db DB
}

// NewRunRepository 创建运行历史仓储
func NewRunRepository(db DB) *RunRepository {
	return &RunRepository{db: db}
}

// SaveRun 保存一次运行的快照
func (r *RunRepository) SaveRun(ctx context.Context, result *model.RunResult) error {
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("序列化汇总失败: %w", err)
	}
	assignments, err := json.Marshal(result.Assignments)
	if err != nil {
		return fmt.Errorf("序列化分配记录失败: %w", err)
	}
	statistics, err := json.Marshal(result.Statistics)
	if err != nil {
		return fmt.Errorf("序列化统计失败: %w", err)
	}
	snapshot, err := json.Marshal(result.CaseSnapshot)
	if err != nil {
		return fmt.Errorf("序列化案例快照失败: %w", err)
	}

	query := `
		INSERT INTO runs (id, run_id, out_dir, solver, summary, assignments, statistics, raw, case_snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (out_dir) DO NOTHING`

	raw := result.Raw
	if raw == nil {
		raw = json.RawMessage("null")
	}

	_, err = r.db.ExecContext(ctx, query,
		uuid.New(), result.RunID, result.OutDir, string(result.Solver),
		summary, assignments, statistics, []byte(raw), snapshot, result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("保存运行记录失败: %w", err)
	}
	return nil
}

// GetRun 按运行ID查询
func (r *RunRepository) GetRun(ctx context.Context, runID string) (*model.RunResult, error) {
	query := `
		SELECT run_id, out_dir, solver, summary, assignments, statistics, raw, case_snapshot, created_at
		FROM runs WHERE run_id = $1`
	row := r.db.QueryRowContext(ctx, query, runID)
	result, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return result, err
}

// ListRuns 按创建时间倒序列出运行记录
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*model.RunResult, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT run_id, out_dir, solver, summary, assignments, statistics, raw, case_snapshot, created_at
		FROM runs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	defer rows.Close()

	var out []*model.RunResult
	for rows.Next() {
		result, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

// ListFolders 以结果目录视角列出已有运行
func (r *RunRepository) ListFolders(ctx context.Context) ([]model.ResultFolder, error) {
	query := `SELECT out_dir, created_at FROM runs ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询结果目录失败: %w", err)
	}
	defer rows.Close()

	var out []model.ResultFolder
	for rows.Next() {
		var f model.ResultFolder
		var created sql.NullTime
		if err := rows.Scan(&f.Name, &created); err != nil {
			return nil, err
		}
		if created.Valid {
			f.Created = created.Time.Format("2006-01-02T15:04:05")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// NextCounter 读取下一个可用的 Result_N 序号，计数器缺失或损坏时按零处理
func (r *RunRepository) NextCounter(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT next_n FROM result_counter WHERE id = 1`).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("读取结果计数器失败: %w", err)
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

// BumpCounter 把计数器推进到不小于 n 的值
func (r *RunRepository) BumpCounter(ctx context.Context, n int) error {
	query := `
		INSERT INTO result_counter (id, next_n, updated_at) VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET next_n = GREATEST(result_counter.next_n, $1), updated_at = now()`
	if _, err := r.db.ExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("更新结果计数器失败: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*model.RunResult, error) {
	var result model.RunResult
	var solver string
	var summary, assignments, statistics, raw, snapshot []byte

	err := row.Scan(&result.RunID, &result.OutDir, &solver,
		&summary, &assignments, &statistics, &raw, &snapshot, &result.CreatedAt)
	if err != nil {
		return nil, err
	}
	result.Solver = model.SolverKind(solver)

	if err := json.Unmarshal(summary, &result.Summary); err != nil {
		return nil, fmt.Errorf("解析汇总失败: %w", err)
	}
	if err := json.Unmarshal(assignments, &result.Assignments); err != nil {
		return nil, fmt.Errorf("解析分配记录失败: %w", err)
	}
	if len(statistics) > 0 && string(statistics) != "null" {
		if err := json.Unmarshal(statistics, &result.Statistics); err != nil {
			return nil, fmt.Errorf("解析统计失败: %w", err)
		}
	}
	if len(raw) > 0 && string(raw) != "null" {
		result.Raw = json.RawMessage(raw)
	}
	if len(snapshot) > 0 && string(snapshot) != "null" {
		if err := json.Unmarshal(snapshot, &result.CaseSnapshot); err != nil {
			return nil, fmt.Errorf("解析案例快照失败: %w", err)
		}
	}
	return &result, nil
}

// MemoryRunStore 内存版运行历史，数据库未启用时使用
type MemoryRunStore struct {
	mu      sync.RWMutex
	runs    map[string]*model.RunResult // out_dir -> result
	counter int
}

// NewMemoryRunStore 创建内存仓储
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*model.RunResult)}
}

// SaveRun 保存运行记录
func (s *MemoryRunStore) SaveRun(ctx context.Context, r *model.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.OutDir] = r
	return nil
}

// GetRun 按运行ID查询
func (s *MemoryRunStore) GetRun(ctx context.Context, runID string) (*model.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.runs {
		if r.RunID == runID {
			return r, nil
		}
	}
	return nil, nil
}

// ListRuns 按创建时间倒序列出
func (s *MemoryRunStore) ListRuns(ctx context.Context, limit int) ([]*model.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.RunResult, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListFolders 列出结果目录
func (s *MemoryRunStore) ListFolders(ctx context.Context) ([]model.ResultFolder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ResultFolder, 0, len(s.runs))
	for dir, r := range s.runs {
		out = append(out, model.ResultFolder{
			Name:    dir,
			Created: r.CreatedAt.Format("2006-01-02T15:04:05"),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// NextCounter 读取计数器
func (s *MemoryRunStore) NextCounter(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counter, nil
}

// BumpCounter 推进计数器
func (s *MemoryRunStore) BumpCounter(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.counter {
		s.counter = n
	}
	return nil
}

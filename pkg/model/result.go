// Package model 定义排班案例与求解结果的核心数据模型
package model

import (
	"encoding/json"
	"time"
)

// Assignment 单条排班分配（扁平记录，已做两端响应形状归一）
type Assignment struct {
	Date         string `json:"date"`
	ShiftID      string `json:"shift_id"`
	ShiftType    string `json:"shift_type"`
	ProviderID   string `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
}

// RunSummary 运行汇总，由本地根据分配记录重新计算，不直接信任求解端
type RunSummary struct {
	TotalAssignments int `json:"total_assignments"`
	TotalProviders   int `json:"total_providers"` // 去重后的人员数
	TotalShifts      int `json:"total_shifts"`
}

// RunResult 一次求解运行的规范化结果
//
// 保存案例快照，结果在案例后续被编辑后仍可复现。
type RunResult struct {
	RunID        string          `json:"run_id"`
	OutDir       string          `json:"out_dir"`
	CreatedAt    time.Time       `json:"created_at"`
	Solver       SolverKind      `json:"solver"` // 哪个求解端产生的结果
	Assignments  []Assignment    `json:"assignments"`
	Summary      RunSummary      `json:"summary"`
	Statistics   JSONMap         `json:"statistics,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`           // 求解端原始响应
	CaseSnapshot *SchedulingCase `json:"case_snapshot,omitempty"` // 发送时的案例快照
}

// ===== 求解端响应的两种已知形状（本地 / 远程），由 ingest 归一 =====

// SolveResponse 求解端 /solve 响应
//
// 本地端返回 results.solutions + statistics；
// 远程端可能带 output_directory、packaged_files 和嵌套 statistics。
// 所有可选字段缺失时按零值处理，不视为错误。
type SolveResponse struct {
	Status          string        `json:"status"` // completed/success/error/...
	Message         string        `json:"message,omitempty"`
	Error           string        `json:"error,omitempty"`
	RunID           string        `json:"run_id,omitempty"`
	Progress        float64       `json:"progress,omitempty"`
	OutputDirectory string        `json:"output_directory,omitempty"`
	PackagedFiles   []string      `json:"packaged_files,omitempty"`
	Results         *SolveResults `json:"results,omitempty"`
	Statistics      JSONMap       `json:"statistics,omitempty"`
}

// SolveResults 求解结果集合
type SolveResults struct {
	Solutions   []Solution `json:"solutions"`
	SolverStats JSONMap    `json:"solver_stats,omitempty"`
}

// Solution 单个解
type Solution struct {
	SolutionID     string           `json:"solution_id,omitempty"`
	ObjectiveValue float64          `json:"objective_value,omitempty"`
	Feasible       bool             `json:"feasible,omitempty"`
	Assignments    []WireAssignment `json:"assignments"`
}

// WireAssignment 求解端线上的分配记录
type WireAssignment struct {
	ShiftID       string `json:"shift_id"`
	ShiftName     string `json:"shift_name,omitempty"`
	ProviderID    string `json:"provider_id"`
	ProviderName  string `json:"provider_name,omitempty"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	SolutionIndex int    `json:"solution_index,omitempty"`
}

// Succeeded 检查响应是否为成功状态
func (r *SolveResponse) Succeeded() bool {
	switch r.Status {
	case "completed", "success", "ok":
		return true
	}
	return false
}

// ResultFolder 结果目录（用于命名冲突检查与 next-name 计算）
type ResultFolder struct {
	Name      string `json:"name"`
	Created   string `json:"created,omitempty"`
	FileCount int    `json:"fileCount,omitempty"`
}

// FolderListing 结果目录列表响应
type FolderListing struct {
	Folders []ResultFolder `json:"folders"`
}

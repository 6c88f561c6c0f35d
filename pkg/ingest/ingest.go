// Package ingest 把求解端的原始响应归一化为规范的 RunResult
//
// 本地端和远程端的响应形状存在差异（output_directory、packaged_files、
// 嵌套 statistics 的有无），这里统一用一个纯映射函数归并为同一内部
// 表示，调用点不再各自按字段存在性分支。可选字段缺失不报错，按显式
// 空值或系统默认值处理。
package ingest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/zhipai/zhipai/pkg/errors"
	"github.com/zhipai/zhipai/pkg/model"
	"github.com/zhipai/zhipai/pkg/stats"
)

// Options 归一化选项
type Options struct {
	Solver       model.SolverKind      // 哪个求解端产生的响应
	Endpoint     string                // 出错时带入上下文
	FallbackOut  string                // 响应未给出输出目录时使用的名称
	CaseSnapshot *model.SchedulingCase // 发送时的案例快照，结果保持可复现
}

// Ingest 解析并归一化求解端响应体
//
// 2xx 但不可解析的响应体返回 MALFORMED_RESPONSE；
// status 为 error 的响应体返回携带求解端消息的错误。
func Ingest(raw []byte, opts Options) (*model.RunResult, error) {
	var resp model.SolveResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.MalformedResponse(opts.Endpoint, err)
	}

	if !resp.Succeeded() {
		msg := resp.Error
		if msg == "" {
			msg = resp.Message
		}
		if msg == "" {
			msg = "求解端返回失败状态"
		}
		return nil, errors.New(errors.CodeInternal, msg).
			WithField("endpoint", opts.Endpoint).
			WithField("solver_status", resp.Status)
	}

	result := &model.RunResult{
		RunID:        resp.RunID,
		OutDir:       resp.OutputDirectory,
		CreatedAt:    time.Now(),
		Solver:       opts.Solver,
		Raw:          json.RawMessage(raw),
		Statistics:   resp.Statistics,
		CaseSnapshot: opts.CaseSnapshot,
	}
	if result.RunID == "" {
		result.RunID = uuid.New().String()
	}
	if result.OutDir == "" {
		result.OutDir = opts.FallbackOut
	}

	result.Assignments = flattenAssignments(&resp, opts.CaseSnapshot)
	result.Summary = stats.Summarize(result.Assignments, totalShifts(&resp, opts.CaseSnapshot, result.Assignments))

	return result, nil
}

// flattenAssignments 把首个解的分配记录映射为扁平记录
func flattenAssignments(resp *model.SolveResponse, snapshot *model.SchedulingCase) []model.Assignment {
	if resp.Results == nil || len(resp.Results.Solutions) == 0 {
		return []model.Assignment{}
	}

	// 班次类型从案例快照按 ID 反查，查不到时退回线上的 shift_name
	typeByID := make(map[string]string)
	if snapshot != nil {
		for _, s := range snapshot.Shifts {
			typeByID[s.ID] = s.Type
		}
	}

	wire := resp.Results.Solutions[0].Assignments
	out := make([]model.Assignment, 0, len(wire))
	for _, a := range wire {
		shiftType := typeByID[a.ShiftID]
		if shiftType == "" {
			shiftType = a.ShiftName
		}
		out = append(out, model.Assignment{
			Date:         a.Date,
			ShiftID:      a.ShiftID,
			ShiftType:    shiftType,
			ProviderID:   a.ProviderID,
			ProviderName: a.ProviderName,
			StartTime:    a.StartTime,
			EndTime:      a.EndTime,
		})
	}
	return out
}

// totalShifts 班次总数优先取案例快照，其次取求解端统计，最后退回分配数
func totalShifts(resp *model.SolveResponse, snapshot *model.SchedulingCase, assignments []model.Assignment) int {
	if snapshot != nil && len(snapshot.Shifts) > 0 {
		return len(snapshot.Shifts)
	}
	if resp.Statistics != nil {
		if v, ok := resp.Statistics["totalShifts"]; ok {
			if f, ok := v.(float64); ok {
				return int(f)
			}
		}
	}
	return len(assignments)
}

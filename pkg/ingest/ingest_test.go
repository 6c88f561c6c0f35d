package ingest

import (
	"testing"

	apperrors "github.com/zhipai/zhipai/pkg/errors"
	"github.com/zhipai/zhipai/pkg/model"
)

const localResponse = `{
	"status": "completed",
	"run_id": "run-123",
	"output_directory": "Result_7",
	"results": {
		"solutions": [{
			"solution_index": 0,
			"assignments": [
				{"shift_id": "s1", "shift_name": "白班", "provider_id": "p1", "provider_name": "张医生", "date": "2025-03-10", "start_time": "2025-03-10T08:00:00", "end_time": "2025-03-10T16:00:00"},
				{"shift_id": "s2", "shift_name": "夜班", "provider_id": "p2", "provider_name": "李医生", "date": "2025-03-10", "start_time": "2025-03-10T22:00:00", "end_time": "2025-03-11T06:00:00"}
			]
		}]
	},
	"statistics": {"totalShifts": 2, "totalProviders": 2, "solverType": "local", "feasible": true}
}`

func TestIngest_LocalShape(t *testing.T) {
	got, err := Ingest([]byte(localResponse), Options{
		Solver:      model.SolverLocal,
		Endpoint:    "http://localhost:8000",
		FallbackOut: "Result_1",
	})
	if err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}

	if got.RunID != "run-123" {
		t.Errorf("run_id = %s", got.RunID)
	}
	if got.OutDir != "Result_7" {
		t.Errorf("响应给出输出目录时应优先使用, 实际 %s", got.OutDir)
	}
	if got.Solver != model.SolverLocal {
		t.Errorf("solver = %s", got.Solver)
	}
	if len(got.Assignments) != 2 {
		t.Fatalf("assignments = %d, 期望 2", len(got.Assignments))
	}
	a := got.Assignments[0]
	if a.ShiftID != "s1" || a.ProviderName != "张医生" || a.Date != "2025-03-10" {
		t.Errorf("首条分配未正确映射: %+v", a)
	}
	if got.Summary.TotalAssignments != 2 || got.Summary.TotalProviders != 2 || got.Summary.TotalShifts != 2 {
		t.Errorf("summary = %+v", got.Summary)
	}
	if len(got.Raw) == 0 {
		t.Error("应保留原始响应体")
	}
}

func TestIngest_ShiftTypeFromSnapshot(t *testing.T) {
	snapshot := &model.SchedulingCase{
		Shifts: []model.Shift{
			{ID: "s1", Type: "MD_D"},
			{ID: "s2", Type: "MD_N"},
		},
	}

	got, err := Ingest([]byte(localResponse), Options{
		Solver:       model.SolverLocal,
		CaseSnapshot: snapshot,
	})
	if err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}

	if got.Assignments[0].ShiftType != "MD_D" {
		t.Errorf("类型应从快照反查, 实际 %s", got.Assignments[0].ShiftType)
	}
	if got.CaseSnapshot != snapshot {
		t.Error("结果应携带案例快照")
	}
}

func TestIngest_ShiftTypeFallsBackToWireName(t *testing.T) {
	got, err := Ingest([]byte(localResponse), Options{Solver: model.SolverLocal})
	if err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}
	if got.Assignments[0].ShiftType != "白班" {
		t.Errorf("无快照时类型退回线上的 shift_name, 实际 %s", got.Assignments[0].ShiftType)
	}
}

func TestIngest_MissingOptionalFields(t *testing.T) {
	// 精简的远程响应：无 run_id、无输出目录、无 solutions
	raw := []byte(`{"status": "success", "statistics": {"totalShifts": 5}}`)

	got, err := Ingest(raw, Options{
		Solver:      model.SolverServerless,
		FallbackOut: "Result_3",
	})
	if err != nil {
		t.Fatalf("可选字段缺失不应报错: %v", err)
	}

	if got.RunID == "" {
		t.Error("缺失 run_id 时应生成标识")
	}
	if got.OutDir != "Result_3" {
		t.Errorf("缺失输出目录时应使用退路名称, 实际 %s", got.OutDir)
	}
	if got.Assignments == nil || len(got.Assignments) != 0 {
		t.Errorf("无解时 assignments 应为空列表, 实际 %v", got.Assignments)
	}
	if got.Summary.TotalShifts != 5 {
		t.Errorf("班次总数应取求解端统计, 实际 %d", got.Summary.TotalShifts)
	}
}

func TestIngest_ErrorStatus(t *testing.T) {
	raw := []byte(`{"status": "error", "error": "infeasible model"}`)

	_, err := Ingest(raw, Options{Endpoint: "http://localhost:8000"})
	if err == nil {
		t.Fatal("失败状态应返回错误")
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("应返回 AppError, 实际 %T", err)
	}
	if appErr.Message != "infeasible model" {
		t.Errorf("应携带求解端的错误消息, 实际 %s", appErr.Message)
	}
}

func TestIngest_MalformedBody(t *testing.T) {
	_, err := Ingest([]byte("<html>Bad Gateway</html>"), Options{Endpoint: "http://remote"})
	if err == nil {
		t.Fatal("不可解析的响应体应返回错误")
	}
	if apperrors.GetCode(err) != apperrors.CodeMalformedResponse {
		t.Errorf("错误码 = %s, 期望 %s", apperrors.GetCode(err), apperrors.CodeMalformedResponse)
	}
}

func TestIngest_SucceededStatuses(t *testing.T) {
	for _, status := range []string{"completed", "success", "ok"} {
		t.Run(status, func(t *testing.T) {
			raw := []byte(`{"status": "` + status + `"}`)
			if _, err := Ingest(raw, Options{FallbackOut: "Result_1"}); err != nil {
				t.Errorf("status=%s 应视为成功: %v", status, err)
			}
		})
	}
}

package normalizer

import (
	"reflect"
	"testing"

	"github.com/zhipai/zhipai/pkg/model"
)

func TestWindow(t *testing.T) {
	tests := []struct {
		name      string
		year      int
		month     int
		wantStart string
		wantEnd   string
		wantDays  int
		wantErr   bool
	}{
		{"2025年3月", 2025, 3, "2025-03-01", "2025-03-31", 31, false},
		{"平年2月", 2025, 2, "2025-02-01", "2025-02-28", 28, false},
		{"闰年2月", 2024, 2, "2024-02-01", "2024-02-29", 29, false},
		{"非法月份", 2025, 13, "", "", 0, true},
		{"零月份", 2025, 0, "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Window(tt.year, tt.month)
			if tt.wantErr {
				if err == nil {
					t.Fatal("应返回错误")
				}
				return
			}
			if err != nil {
				t.Fatalf("不应返回错误: %v", err)
			}
			if w.Start != tt.wantStart || w.End != tt.wantEnd {
				t.Errorf("窗口 = [%s, %s], 期望 [%s, %s]", w.Start, w.End, tt.wantStart, tt.wantEnd)
			}
			if len(w.Days) != tt.wantDays {
				t.Errorf("天数 = %d, 期望 %d", len(w.Days), tt.wantDays)
			}
		})
	}
}

func sampleCase() *model.SchedulingCase {
	return &model.SchedulingCase{
		Constants: model.DefaultConstants(),
		Run:       model.RunConfig{Out: "Result_1", K: 3},
		Calendar: model.Calendar{
			Days:        []string{"2025-03-01", "2025-03-02"},
			WeekendDays: []string{"Saturday", "Sunday"},
		},
		Shifts: []model.Shift{
			{ID: "s1", Date: "2025-03-10", Type: "MD_D", StartTime: "2025-03-10T08:00:00", EndTime: "2025-03-10T16:00:00"},
			{ID: "s2", Date: "2025-03-15", Type: "MD_N", StartTime: "2025-03-15T22:00:00", EndTime: "2025-03-15T06:00:00"},
			{ID: "s3", Date: "2025-04-01", Type: "MD_D", StartTime: "2025-04-01T08:00:00", EndTime: "2025-04-01T16:00:00"},
		},
		Providers: []model.Provider{
			{
				ID:                "p1",
				Name:              "张医生",
				ForbiddenDaysHard: []string{"2025-03-05", "2025-04-02"},
				ForbiddenDaysSoft: []string{"2025-02-28"},
				PreferredDaysHard: map[string][]string{"2025-03-06": {"MD_D"}, "2025-04-03": {"MD_D"}},
				PreferredDaysSoft: map[string][]string{"2025-03-07": {"MD_N"}},
			},
		},
	}
}

func TestNormalize_FiltersToMonth(t *testing.T) {
	c := sampleCase()

	got, fellBack := Normalize(c, 2025, 3)
	if fellBack {
		t.Fatal("归一化不应退回")
	}

	if len(got.Shifts) != 2 {
		t.Fatalf("窗口外的班次应被过滤, 剩余 %d 个", len(got.Shifts))
	}
	for _, s := range got.Shifts {
		if s.Date < "2025-03-01" || s.Date > "2025-03-31" {
			t.Errorf("班次 %s 的日期 %s 不在窗口内", s.ID, s.Date)
		}
	}

	if len(got.Calendar.Days) != 31 || got.Calendar.Days[0] != "2025-03-01" {
		t.Errorf("日历应替换为全月日期列表, 实际 %d 天", len(got.Calendar.Days))
	}

	p := got.Providers[0]
	if !reflect.DeepEqual(p.ForbiddenDaysHard, []string{"2025-03-05"}) {
		t.Errorf("forbidden_days_hard 应裁剪到窗口内, 实际 %v", p.ForbiddenDaysHard)
	}
	if len(p.ForbiddenDaysSoft) != 0 {
		t.Errorf("窗口外的 forbidden_days_soft 应被裁剪, 实际 %v", p.ForbiddenDaysSoft)
	}
	if _, ok := p.PreferredDaysHard["2025-04-03"]; ok {
		t.Error("窗口外的 preferred_days_hard 键应被裁剪")
	}
	if _, ok := p.PreferredDaysHard["2025-03-06"]; !ok {
		t.Error("窗口内的 preferred_days_hard 键应保留")
	}
}

func TestNormalize_OvernightCorrection(t *testing.T) {
	c := &model.SchedulingCase{
		Shifts: []model.Shift{
			{ID: "s1", Date: "2025-03-10", StartTime: "2025-03-10T22:00:00", EndTime: "2025-03-10T06:00:00"},
		},
	}

	got, fellBack := Normalize(c, 2025, 3)
	if fellBack {
		t.Fatal("归一化不应退回")
	}

	s := got.Shifts[0]
	if s.EndTime != "2025-03-11T06:00:00" {
		t.Errorf("跨夜班次结束时间应修正为 2025-03-11T06:00:00, 实际 %s", s.EndTime)
	}
	if s.StartTime != "2025-03-10T22:00:00" {
		t.Errorf("开始时间不应改变, 实际 %s", s.StartTime)
	}
}

func TestNormalize_EqualTimestampsCorrected(t *testing.T) {
	c := &model.SchedulingCase{
		Shifts: []model.Shift{
			{ID: "s1", Date: "2025-03-10", StartTime: "2025-03-10T08:00:00", EndTime: "2025-03-10T08:00:00"},
		},
	}

	got, _ := Normalize(c, 2025, 3)
	if got.Shifts[0].EndTime != "2025-03-11T08:00:00" {
		t.Errorf("结束等于开始也应视为跨夜, 实际 %s", got.Shifts[0].EndTime)
	}
}

func TestNormalize_BadTimestampPassedThrough(t *testing.T) {
	c := &model.SchedulingCase{
		Shifts: []model.Shift{
			{ID: "s1", Date: "2025-03-10", StartTime: "not-a-time", EndTime: "2025-03-10T06:00:00"},
			{ID: "s2", Date: "2025-03-11", StartTime: "2025-03-11T08:00:00", EndTime: "2025-03-11T16:00:00"},
		},
	}

	got, fellBack := Normalize(c, 2025, 3)
	if fellBack {
		t.Fatal("单条坏记录不应使整个归一化失败")
	}
	if len(got.Shifts) != 2 {
		t.Fatalf("坏记录应原样保留而非丢弃, 剩余 %d 个", len(got.Shifts))
	}
	if got.Shifts[0].EndTime != "2025-03-10T06:00:00" {
		t.Error("无法解析的班次应原样保留")
	}
}

func TestNormalize_RoundTrip(t *testing.T) {
	// 所有班次都在选定月份内时，输出除 calendar.days 外应与输入相等
	c := sampleCase()
	c.Shifts = c.Shifts[:1] // 只留月内的正常班次
	c.Providers[0].ForbiddenDaysHard = []string{"2025-03-05"}
	c.Providers[0].PreferredDaysHard = map[string][]string{"2025-03-06": {"MD_D"}}

	got, fellBack := Normalize(c, 2025, 3)
	if fellBack {
		t.Fatal("归一化不应退回")
	}

	if !reflect.DeepEqual(got.Shifts, c.Shifts) {
		t.Error("月内班次不应改变")
	}
	if !reflect.DeepEqual(got.Providers[0].ForbiddenDaysHard, c.Providers[0].ForbiddenDaysHard) {
		t.Error("月内偏好不应改变")
	}
	if !reflect.DeepEqual(got.Run, c.Run) || !reflect.DeepEqual(got.Constants, c.Constants) {
		t.Error("其余字段应原样复制")
	}
	if len(got.Calendar.Days) != 31 {
		t.Error("calendar.days 应始终替换为规范的月份日期列表")
	}
}

func TestNormalize_DoesNotMutateOriginal(t *testing.T) {
	c := sampleCase()
	shiftsBefore := len(c.Shifts)
	hardBefore := len(c.Providers[0].ForbiddenDaysHard)

	Normalize(c, 2025, 3)

	if len(c.Shifts) != shiftsBefore {
		t.Error("原案例的班次不应被修改")
	}
	if len(c.Providers[0].ForbiddenDaysHard) != hardBefore {
		t.Error("原案例的偏好不应被修改")
	}
}

func TestNormalize_FallsBackOnBadMonth(t *testing.T) {
	c := sampleCase()

	got, fellBack := Normalize(c, 2025, 13)
	if !fellBack {
		t.Fatal("非法月份应退回原始案例")
	}
	if got != c {
		t.Error("退回时应返回原始案例本身")
	}
}

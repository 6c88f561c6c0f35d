package constraints

import (
	"testing"

	"github.com/zhipai/zhipai/pkg/model"
)

func TestLibrary_KeysUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, d := range Library() {
		if seen[d.Key] {
			t.Errorf("权重键 %s 重复", d.Key)
		}
		seen[d.Key] = true
		if d.DisplayName == "" || d.Description == "" {
			t.Errorf("权重 %s 缺少展示信息", d.Key)
		}
		if d.Category != model.ConstraintHard && d.Category != model.ConstraintSoft {
			t.Errorf("权重 %s 的类别非法: %s", d.Key, d.Category)
		}
	}
}

func TestLibrary_MatchesDefaultConstants(t *testing.T) {
	constants := model.DefaultConstants()
	weights := constants["weights"].(map[string]interface{})
	hard := weights["hard"].(map[string]interface{})
	soft := weights["soft"].(map[string]interface{})

	for _, d := range Library() {
		var table map[string]interface{}
		if d.Category == model.ConstraintHard {
			table = hard
		} else {
			table = soft
		}
		v, ok := table[d.Key]
		if !ok {
			t.Errorf("目录中的权重 %s 在默认求解常量中不存在", d.Key)
			continue
		}
		if toFloat(v) != d.Default {
			t.Errorf("权重 %s 的目录默认值 %v 与求解常量 %v 不一致", d.Key, d.Default, v)
		}
	}

	// 反向：常量表里的每个权重都应在目录中有说明
	for key := range hard {
		if _, ok := Lookup(key); !ok {
			t.Errorf("硬约束权重 %s 缺少目录条目", key)
		}
	}
	for key := range soft {
		if _, ok := Lookup(key); !ok {
			t.Errorf("软约束权重 %s 缺少目录条目", key)
		}
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return -1
}

func TestLookup(t *testing.T) {
	d, ok := Lookup("requested_off")
	if !ok || d.Category != model.ConstraintSoft {
		t.Errorf("Lookup(requested_off) = %+v, %v", d, ok)
	}
	if _, ok := Lookup("nope"); ok {
		t.Error("不存在的键不应命中")
	}
}

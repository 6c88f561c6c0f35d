// Package probe 提供求解端可用性探测
package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/zhipai/zhipai/pkg/logger"
)

// SolverInfo 求解端健康响应中的能力元数据
type SolverInfo struct {
	Status           string   `json:"status"`
	Message          string   `json:"message,omitempty"`
	SolverType       string   `json:"solver_type,omitempty"`
	OrtoolsAvailable bool     `json:"ortools_available,omitempty"`
	Capabilities     []string `json:"capabilities,omitempty"`
}

// Result 探测结果
//
// 非 2xx、超时、网络错误统一表现为 Available=false，不向调用方抛错。
type Result struct {
	Available bool
	Info      *SolverInfo
	Latency   time.Duration
}

// 求解端未上报能力列表时使用的固定描述，探测成功时能力列表从不为空
var fallbackCapabilities = []string{
	"Constraint-based optimization",
	"Multi-solution generation",
	"High-performance local execution",
}

// Prober 可用性探测器
type Prober struct {
	client         *http.Client
	timeout        time.Duration // 常规探活，UI 可见路径，保持秒级
	installTimeout time.Duration // 安装/启动验证用的较长超时
}

// New 创建探测器
func New(timeout, installTimeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if installTimeout <= 0 {
		installTimeout = 5 * time.Second
	}
	return &Prober{
		client:         &http.Client{},
		timeout:        timeout,
		installTimeout: installTimeout,
	}
}

// Probe 对候选求解端执行健康检查
func (p *Prober) Probe(ctx context.Context, baseURL string) Result {
	return p.probe(ctx, baseURL, p.timeout)
}

// ProbeForInstall 安装/启动验证专用的较长超时探活
func (p *Prober) ProbeForInstall(ctx context.Context, baseURL string) Result {
	return p.probe(ctx, baseURL, p.installTimeout)
}

func (p *Prober) probe(ctx context.Context, baseURL string, timeout time.Duration) Result {
	if baseURL == "" {
		return Result{Available: false}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return Result{Available: false}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Debug().
			Str("endpoint", baseURL).
			Err(err).
			Msg("求解端探活失败")
		return Result{Available: false, Latency: time.Since(start)}
	}
	defer resp.Body.Close()

	latency := time.Since(start)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debug().
			Str("endpoint", baseURL).
			Int("status", resp.StatusCode).
			Msg("求解端探活返回非 2xx")
		return Result{Available: false, Latency: latency}
	}

	var info SolverInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		// 2xx 但响应体不可解析：视为可用但无元数据
		info = SolverInfo{Status: "ok"}
	}
	if len(info.Capabilities) == 0 {
		info.Capabilities = append([]string(nil), fallbackCapabilities...)
	}

	return Result{Available: true, Info: &info, Latency: latency}
}

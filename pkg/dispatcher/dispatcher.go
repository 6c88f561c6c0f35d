// Package dispatcher 提供求解请求的派发编排
//
// 在本地高性能求解端与远程求解端之间做选择：探活、本地端唤醒重试、
// 安全回退，并把派发过程表达为显式的有界状态机，总等待时间可审计。
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/zhipai/zhipai/pkg/errors"
	"github.com/zhipai/zhipai/pkg/ingest"
	"github.com/zhipai/zhipai/pkg/logger"
	"github.com/zhipai/zhipai/pkg/model"
	"github.com/zhipai/zhipai/pkg/probe"
)

// State 派发状态
type State string

const (
	StateReady      State = "ready"
	StateConnecting State = "connecting"
	StateRunning    State = "running"
	StateFinished   State = "finished"
	StateError      State = "error"
)

// Mode 派发模式
type Mode string

const (
	ModeAuto       Mode = "auto"       // 本地可达则先本地，失败回退远程
	ModeLocal      Mode = "local"      // 只用本地端，失败即终止
	ModeServerless Mode = "serverless" // 只用远程端
)

// FolderLister 结果目录来源（本地持久层，可选）
type FolderLister interface {
	ListFolders(ctx context.Context) ([]model.ResultFolder, error)
}

// RunRecorder 运行历史存储（可选）
type RunRecorder interface {
	SaveRun(ctx context.Context, r *model.RunResult) error
}

// ResultCounter 持久化的 Result_N 序号计数器（可选），目录列表全部
// 不可达时作为 next-name 推导的最后来源
type ResultCounter interface {
	NextCounter(ctx context.Context) (int, error)
	BumpCounter(ctx context.Context, n int) error
}

// Hooks 派发过程中的可观测事件回调（指标等），全部可为 nil
type Hooks struct {
	OnFallback    func(cause error)
	OnStateChange func(from, to State)
	OnProbe       func(available bool, latency time.Duration)
}

// Options 派发器配置
type Options struct {
	LocalURL      string
	ServerlessURL string

	// 求解请求的超时独立于探活超时，优化任务可能长达数小时
	SolveTimeout time.Duration

	// 本地端唤醒策略
	ActivationAttempts int
	ActivationBackoff  time.Duration

	// 安装元数据：本地求解端文件已就位（进程可能未在运行）
	LocalInstalled bool

	Client   *http.Client
	Prober   *probe.Prober
	Lister   FolderLister
	Recorder RunRecorder
	Counter  ResultCounter
	Hooks    Hooks
}

// Dispatcher 求解请求派发器
type Dispatcher struct {
	opts   Options
	client *http.Client
	prober *probe.Prober
	log    *logger.DispatchLogger

	mu        sync.Mutex
	state     State
	lastProbe *probe.Result
	gen       uint64 // 派发代数，停止后递增，迟到的响应据此丢弃
	cancel    context.CancelFunc
}

// New 创建派发器
func New(opts Options) *Dispatcher {
	if opts.SolveTimeout <= 0 {
		opts.SolveTimeout = 4 * time.Hour
	}
	if opts.ActivationAttempts <= 0 {
		opts.ActivationAttempts = 3
	}
	if opts.ActivationBackoff <= 0 {
		opts.ActivationBackoff = 2 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	prober := opts.Prober
	if prober == nil {
		prober = probe.New(2*time.Second, 5*time.Second)
	}
	return &Dispatcher{
		opts:   opts,
		client: client,
		prober: prober,
		log:    logger.NewDispatchLogger(),
		state:  StateReady,
	}
}

// State 返回当前状态
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// RefreshProbe 探测本地求解端并缓存结果，auto 模式依据最近一次探测结果选路
func (d *Dispatcher) RefreshProbe(ctx context.Context) probe.Result {
	r := d.prober.Probe(ctx, d.opts.LocalURL)
	d.mu.Lock()
	d.lastProbe = &r
	d.mu.Unlock()
	if d.opts.Hooks.OnProbe != nil {
		d.opts.Hooks.OnProbe(r.Available, r.Latency)
	}
	return r
}

// Stop 用户主动停止：取消在途请求并回到 ready
//
// 停止后到达的响应会被丢弃，不再应用。
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.setStateLocked(StateReady)
}

// Dispatch 派发求解请求
//
// 调用前案例须已通过 validator.Precheck；payload 须已按锁定月份归一化。
// 同一时间只允许一次派发，输出目录名冲突在发送任何求解请求前拒绝。
func (d *Dispatcher) Dispatch(ctx context.Context, c *model.SchedulingCase, mode Mode) (*model.RunResult, error) {
	if mode == "" {
		mode = ModeAuto
	}

	d.mu.Lock()
	if d.state == StateConnecting || d.state == StateRunning {
		d.mu.Unlock()
		return nil, errors.New(errors.CodeInvalidInput, "已有派发正在进行")
	}
	gen := d.gen
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.setStateLocked(StateConnecting)
	d.mu.Unlock()
	defer cancel()

	started := time.Now()
	d.log.StartDispatch(c.Run.Out, string(mode), len(c.Shifts), len(c.Providers))

	result, err := d.run(ctx, gen, c, mode)

	d.mu.Lock()
	if gen != d.gen {
		// 用户已停止，迟到的结果不再应用；状态由 Stop 维持在 ready
		d.mu.Unlock()
		return nil, errors.New(errors.CodeCanceled, "派发已被用户停止")
	}
	d.cancel = nil
	if err != nil {
		d.setStateLocked(StateError)
		d.mu.Unlock()
		return nil, err
	}
	d.setStateLocked(StateFinished)
	d.mu.Unlock()

	d.log.DispatchComplete(result.RunID, result.OutDir, string(result.Solver), time.Since(started))

	// 历史落库和计数器推进失败都不影响派发结果，也不在锁内执行
	if d.opts.Counter != nil {
		if n, ok := ParseResultName(result.OutDir); ok {
			if cerr := d.opts.Counter.BumpCounter(ctx, n+1); cerr != nil {
				logger.Warn().Err(cerr).Str("out_dir", result.OutDir).Msg("结果计数器推进失败")
			}
		}
	}
	if d.opts.Recorder != nil {
		if serr := d.opts.Recorder.SaveRun(ctx, result); serr != nil {
			logger.Warn().Err(serr).Str("run_id", result.RunID).Msg("运行历史保存失败")
		}
	}
	return result, nil
}

func (d *Dispatcher) run(ctx context.Context, gen uint64, c *model.SchedulingCase, mode Mode) (*model.RunResult, error) {
	// 命名冲突守卫：在任何求解请求发出之前检查
	if c.Run.Out != "" {
		names := d.knownFolderNames(ctx)
		if _, exists := names[c.Run.Out]; exists {
			return nil, errors.NameConflict(c.Run.Out)
		}
	}

	switch mode {
	case ModeLocal:
		result, err := d.solveLocal(ctx, gen, c)
		if err != nil {
			// 显式钉死本地端时失败即终止，绝不替换为远程端
			return nil, errors.LocalSolver(d.opts.LocalURL, err)
		}
		return result, nil

	case ModeServerless:
		if d.opts.ServerlessURL == "" {
			return nil, errors.New(errors.CodeInvalidInput, "未配置远程求解端")
		}
		result, err := d.solveAt(ctx, gen, d.opts.ServerlessURL, model.SolverServerless, c)
		if err != nil {
			return nil, errors.AllSolversFailed(1, err)
		}
		return result, nil

	case ModeAuto:
		return d.runAuto(ctx, gen, c)

	default:
		return nil, errors.InvalidInput("mode", fmt.Sprintf("未知派发模式 %q", mode))
	}
}

// runAuto 自动模式：最近一次探测可达时先试本地端，失败回退远程端
func (d *Dispatcher) runAuto(ctx context.Context, gen uint64, c *model.SchedulingCase) (*model.RunResult, error) {
	attempts := 0
	var localErr error

	if d.localReachable(ctx) {
		attempts++
		result, err := d.solveLocal(ctx, gen, c)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.CodeCanceled, "派发已取消")
		}
		localErr = err
		// 回退必须是可观测的独立事件
		d.log.Fallback(d.opts.LocalURL, d.opts.ServerlessURL, err)
		if d.opts.Hooks.OnFallback != nil {
			d.opts.Hooks.OnFallback(err)
		}
	}

	if d.opts.ServerlessURL == "" {
		if localErr != nil {
			return nil, errors.AllSolversFailed(attempts, localErr)
		}
		return nil, errors.New(errors.CodeAllSolversFailed, "本地端不可达且未配置远程求解端")
	}

	attempts++
	result, err := d.solveAt(ctx, gen, d.opts.ServerlessURL, model.SolverServerless, c)
	if err != nil {
		cause := err
		if localErr != nil {
			cause = fmt.Errorf("本地端: %v; 远程端: %w", localErr, err)
		}
		return nil, errors.AllSolversFailed(attempts, cause)
	}
	return result, nil
}

// localReachable 按最近一次探测结果判断本地端是否可达，从未探测过时现场探测一次
func (d *Dispatcher) localReachable(ctx context.Context) bool {
	if d.opts.LocalURL == "" {
		return false
	}
	d.mu.Lock()
	last := d.lastProbe
	d.mu.Unlock()
	if last != nil {
		return last.Available
	}
	return d.RefreshProbe(ctx).Available
}

// solveLocal 本地端求解，失败时按安装状态执行有界的唤醒-重试序列
//
// 唤醒序列：固定间隔重复探活至多 ActivationAttempts 次，仍无响应则
// 发送一次尽力而为的隐藏唤醒请求；激活成功后恰好重试一次求解请求。
// 每一步都有固定超时，整个序列的等待时间有上界，绝不无限阻塞。
func (d *Dispatcher) solveLocal(ctx context.Context, gen uint64, c *model.SchedulingCase) (*model.RunResult, error) {
	result, err := d.solveAt(ctx, gen, d.opts.LocalURL, model.SolverLocal, c)
	if err == nil {
		return result, nil
	}
	if !d.opts.LocalInstalled || ctx.Err() != nil {
		return nil, err
	}

	logger.Info().
		Str("endpoint", d.opts.LocalURL).
		Int("attempts", d.opts.ActivationAttempts).
		Msg("本地求解端无响应，尝试唤醒")

	activated := false
	for i := 0; i < d.opts.ActivationAttempts; i++ {
		if pr := d.prober.ProbeForInstall(ctx, d.opts.LocalURL); pr.Available {
			activated = true
			break
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(d.opts.ActivationBackoff):
		}
	}

	if !activated {
		// 替代激活机制：隐藏请求触发后台唤醒，结果不检查
		d.wake(ctx, d.opts.LocalURL)
		if pr := d.prober.ProbeForInstall(ctx, d.opts.LocalURL); pr.Available {
			activated = true
		}
	}

	if !activated {
		return nil, err
	}

	logger.Info().Str("endpoint", d.opts.LocalURL).Msg("本地求解端已唤醒，重试求解请求")
	return d.solveAt(ctx, gen, d.opts.LocalURL, model.SolverLocal, c)
}

// wake 尽力而为的后台唤醒请求
func (d *Dispatcher) wake(ctx context.Context, baseURL string) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/?wake=1", nil)
	if err != nil {
		return
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

// solveAt 向指定求解端发送求解请求并归一化响应
func (d *Dispatcher) solveAt(ctx context.Context, gen uint64, baseURL string, kind model.SolverKind, c *model.SchedulingCase) (*model.RunResult, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "案例序列化失败")
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.SolveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/solve", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "构建求解请求失败")
	}
	req.Header.Set("Content-Type", "application/json")

	d.setState(gen, StateRunning)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("求解请求失败 (%s): %w", baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取求解响应失败 (%s): %w", baseURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("求解端返回 %d (%s)", resp.StatusCode, baseURL)
	}

	fallbackOut := c.Run.Out
	if fallbackOut == "" {
		fallbackOut = d.NextResultName(ctx)
	}

	return ingest.Ingest(raw, ingest.Options{
		Solver:       kind,
		Endpoint:     baseURL,
		FallbackOut:  fallbackOut,
		CaseSnapshot: c,
	})
}

// setState 仅对当前派发代数生效，停止后迟到的状态迁移被丢弃
func (d *Dispatcher) setState(gen uint64, s State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return
	}
	d.setStateLocked(s)
}

func (d *Dispatcher) setStateLocked(s State) {
	if d.state == s {
		return
	}
	from := d.state
	d.state = s
	d.log.StateChange(string(from), string(s))
	if d.opts.Hooks.OnStateChange != nil {
		d.opts.Hooks.OnStateChange(from, s)
	}
}

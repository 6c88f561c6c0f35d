package dispatcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/zhipai/zhipai/pkg/errors"
	"github.com/zhipai/zhipai/pkg/model"
	"github.com/zhipai/zhipai/pkg/probe"
)

const solveOK = `{
	"status": "completed",
	"run_id": "run-1",
	"results": {"solutions": [{"assignments": [
		{"shift_id": "s1", "provider_id": "p1", "provider_name": "张医生", "date": "2025-03-10"}
	]}]}
}`

// fakeSolver 模拟求解端：可配置 /solve 行为并记录调用次数
type fakeSolver struct {
	srv        *httptest.Server
	solveCalls int32
	healthy    atomic.Bool
	folders    []string
	solve      func(n int32, w http.ResponseWriter)
}

func newFakeSolver(t *testing.T) *fakeSolver {
	t.Helper()
	f := &fakeSolver{}
	f.healthy.Store(true)
	f.solve = func(n int32, w http.ResponseWriter) {
		w.Write([]byte(solveOK))
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			if f.healthy.Load() {
				w.Write([]byte(`{"status":"healthy"}`))
			} else {
				http.Error(w, "down", http.StatusServiceUnavailable)
			}
		case "/results/folders":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"folders":[`))
			for i, name := range f.folders {
				if i > 0 {
					w.Write([]byte(","))
				}
				w.Write([]byte(`{"name":"` + name + `"}`))
			}
			w.Write([]byte(`]}`))
		case "/solve":
			n := atomic.AddInt32(&f.solveCalls, 1)
			f.solve(n, w)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSolver) calls() int32 {
	return atomic.LoadInt32(&f.solveCalls)
}

func testCase(out string) *model.SchedulingCase {
	return &model.SchedulingCase{
		Run: model.RunConfig{Out: out},
		Shifts: []model.Shift{
			{ID: "s1", Date: "2025-03-10", Type: "MD_D"},
		},
		Providers: []model.Provider{{ID: "p1", Name: "张医生"}},
	}
}

func fastOpts() Options {
	return Options{
		SolveTimeout:       5 * time.Second,
		ActivationAttempts: 1,
		ActivationBackoff:  10 * time.Millisecond,
		Prober:             probe.New(500*time.Millisecond, 500*time.Millisecond),
	}
}

func TestDispatch_Serverless(t *testing.T) {
	remote := newFakeSolver(t)
	opts := fastOpts()
	opts.ServerlessURL = remote.srv.URL
	d := New(opts)

	result, err := d.Dispatch(context.Background(), testCase("Result_9"), ModeServerless)
	if err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}
	if result.Solver != model.SolverServerless {
		t.Errorf("solver = %s", result.Solver)
	}
	if result.OutDir != "Result_9" {
		t.Errorf("out_dir = %s", result.OutDir)
	}
	if d.State() != StateFinished {
		t.Errorf("派发完成后状态 = %s, 期望 finished", d.State())
	}
}

func TestDispatch_AutoPrefersLocal(t *testing.T) {
	local := newFakeSolver(t)
	remote := newFakeSolver(t)

	opts := fastOpts()
	opts.LocalURL = local.srv.URL
	opts.ServerlessURL = remote.srv.URL
	d := New(opts)
	d.RefreshProbe(context.Background())

	result, err := d.Dispatch(context.Background(), testCase("Result_1"), ModeAuto)
	if err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}
	if result.Solver != model.SolverLocal {
		t.Errorf("本地可达时应选择本地端, 实际 %s", result.Solver)
	}
	if remote.calls() != 0 {
		t.Errorf("远程端不应收到求解请求, 实际 %d 次", remote.calls())
	}
}

func TestDispatch_AutoFallsBackToRemote(t *testing.T) {
	local := newFakeSolver(t)
	local.solve = func(n int32, w http.ResponseWriter) {
		http.Error(w, "crash", http.StatusInternalServerError)
	}
	remote := newFakeSolver(t)

	var fallbackCause error
	opts := fastOpts()
	opts.LocalURL = local.srv.URL
	opts.ServerlessURL = remote.srv.URL
	opts.Hooks.OnFallback = func(cause error) { fallbackCause = cause }
	d := New(opts)
	d.RefreshProbe(context.Background())

	result, err := d.Dispatch(context.Background(), testCase("Result_1"), ModeAuto)
	if err != nil {
		t.Fatalf("回退后应成功: %v", err)
	}
	if result.Solver != model.SolverServerless {
		t.Errorf("回退后 solver = %s, 期望 serverless", result.Solver)
	}
	if fallbackCause == nil {
		t.Error("回退事件应触发回调并携带本地失败原因")
	}
}

func TestDispatch_AutoSkipsUnreachableLocal(t *testing.T) {
	local := newFakeSolver(t)
	local.healthy.Store(false)
	remote := newFakeSolver(t)

	opts := fastOpts()
	opts.LocalURL = local.srv.URL
	opts.ServerlessURL = remote.srv.URL
	d := New(opts)
	d.RefreshProbe(context.Background())

	result, err := d.Dispatch(context.Background(), testCase("Result_1"), ModeAuto)
	if err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}
	if result.Solver != model.SolverServerless {
		t.Errorf("本地不可达时应直接用远程端, 实际 %s", result.Solver)
	}
	if local.calls() != 0 {
		t.Errorf("不可达的本地端不应收到求解请求, 实际 %d 次", local.calls())
	}
}

func TestDispatch_LocalPinnedNeverFallsBack(t *testing.T) {
	local := newFakeSolver(t)
	local.solve = func(n int32, w http.ResponseWriter) {
		http.Error(w, "crash", http.StatusInternalServerError)
	}
	remote := newFakeSolver(t)

	opts := fastOpts()
	opts.LocalURL = local.srv.URL
	opts.ServerlessURL = remote.srv.URL
	d := New(opts)

	_, err := d.Dispatch(context.Background(), testCase("Result_1"), ModeLocal)
	if !apperrors.Is(err, apperrors.CodeLocalSolver) {
		t.Fatalf("钉死本地端时应返回本地求解端错误, 实际 %v", err)
	}
	if remote.calls() != 0 {
		t.Errorf("钉死本地端时绝不应请求远程端, 实际 %d 次", remote.calls())
	}
	if d.State() != StateError {
		t.Errorf("失败后状态 = %s, 期望 error", d.State())
	}
}

func TestDispatch_AllSolversFailed(t *testing.T) {
	local := newFakeSolver(t)
	local.solve = func(n int32, w http.ResponseWriter) {
		http.Error(w, "crash", http.StatusInternalServerError)
	}
	remote := newFakeSolver(t)
	remote.solve = func(n int32, w http.ResponseWriter) {
		http.Error(w, "crash", http.StatusBadGateway)
	}

	opts := fastOpts()
	opts.LocalURL = local.srv.URL
	opts.ServerlessURL = remote.srv.URL
	d := New(opts)
	d.RefreshProbe(context.Background())

	_, err := d.Dispatch(context.Background(), testCase("Result_1"), ModeAuto)
	if !apperrors.Is(err, apperrors.CodeAllSolversFailed) {
		t.Fatalf("两端均失败时错误码应为 ALL_SOLVERS_FAILED, 实际 %v", err)
	}
}

func TestDispatch_NameConflictBeforeSolve(t *testing.T) {
	remote := newFakeSolver(t)
	remote.folders = []string{"Result_1", "Result_5"}

	opts := fastOpts()
	opts.ServerlessURL = remote.srv.URL
	d := New(opts)

	_, err := d.Dispatch(context.Background(), testCase("Result_5"), ModeServerless)
	if !apperrors.Is(err, apperrors.CodeNameConflict) {
		t.Fatalf("错误码 = %v, 期望 NAME_CONFLICT", err)
	}
	if remote.calls() != 0 {
		t.Errorf("冲突应在发送任何求解请求之前拒绝, 实际 %d 次", remote.calls())
	}
}

func TestDispatch_LocalActivationRetry(t *testing.T) {
	local := newFakeSolver(t)
	local.solve = func(n int32, w http.ResponseWriter) {
		if n == 1 {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(solveOK))
	}

	opts := fastOpts()
	opts.LocalURL = local.srv.URL
	opts.LocalInstalled = true
	d := New(opts)

	result, err := d.Dispatch(context.Background(), testCase("Result_1"), ModeLocal)
	if err != nil {
		t.Fatalf("唤醒后的重试应成功: %v", err)
	}
	if result.Solver != model.SolverLocal {
		t.Errorf("solver = %s", result.Solver)
	}
	if local.calls() != 2 {
		t.Errorf("激活成功后应恰好重试一次, 实际共 %d 次求解请求", local.calls())
	}
}

func TestDispatch_NoRetryWhenNotInstalled(t *testing.T) {
	local := newFakeSolver(t)
	local.solve = func(n int32, w http.ResponseWriter) {
		http.Error(w, "crash", http.StatusInternalServerError)
	}

	opts := fastOpts()
	opts.LocalURL = local.srv.URL
	opts.LocalInstalled = false
	d := New(opts)

	_, err := d.Dispatch(context.Background(), testCase("Result_1"), ModeLocal)
	if err == nil {
		t.Fatal("应返回错误")
	}
	if local.calls() != 1 {
		t.Errorf("未安装时不应执行唤醒重试, 实际 %d 次求解请求", local.calls())
	}
}

func TestDispatch_StopDiscardsLateResult(t *testing.T) {
	remote := newFakeSolver(t)
	remote.solve = func(n int32, w http.ResponseWriter) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(solveOK))
	}

	opts := fastOpts()
	opts.ServerlessURL = remote.srv.URL
	d := New(opts)

	var wg sync.WaitGroup
	var dispatchErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, dispatchErr = d.Dispatch(context.Background(), testCase("Result_1"), ModeServerless)
	}()

	time.Sleep(100 * time.Millisecond)
	d.Stop()
	wg.Wait()

	if !apperrors.Is(dispatchErr, apperrors.CodeCanceled) {
		t.Fatalf("停止后的结果应被丢弃, 实际 %v", dispatchErr)
	}
	if d.State() != StateReady {
		t.Errorf("停止后状态 = %s, 期望 ready", d.State())
	}
}

func TestDispatch_RejectsConcurrent(t *testing.T) {
	remote := newFakeSolver(t)
	remote.solve = func(n int32, w http.ResponseWriter) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(solveOK))
	}

	opts := fastOpts()
	opts.ServerlessURL = remote.srv.URL
	d := New(opts)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Dispatch(context.Background(), testCase("Result_1"), ModeServerless)
	}()

	time.Sleep(100 * time.Millisecond)
	_, err := d.Dispatch(context.Background(), testCase("Result_2"), ModeServerless)
	wg.Wait()

	if err == nil {
		t.Fatal("进行中的派发应拒绝并发请求")
	}
}

// recorderSpy 记录 SaveRun 调用
type recorderSpy struct {
	mu    sync.Mutex
	saved []*model.RunResult
}

func (r *recorderSpy) SaveRun(ctx context.Context, result *model.RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, result)
	return nil
}

func TestDispatch_SavesRunHistory(t *testing.T) {
	remote := newFakeSolver(t)
	spy := &recorderSpy{}

	opts := fastOpts()
	opts.ServerlessURL = remote.srv.URL
	opts.Recorder = spy
	d := New(opts)

	result, err := d.Dispatch(context.Background(), testCase("Result_1"), ModeServerless)
	if err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}

	spy.mu.Lock()
	defer spy.mu.Unlock()
	if len(spy.saved) != 1 || spy.saved[0].RunID != result.RunID {
		t.Errorf("成功派发应写入运行历史, 实际 %d 条", len(spy.saved))
	}
}

func TestDispatch_UnknownMode(t *testing.T) {
	d := New(fastOpts())
	_, err := d.Dispatch(context.Background(), testCase("Result_1"), Mode("banana"))
	if !apperrors.Is(err, apperrors.CodeInvalidInput) {
		t.Fatalf("未知模式应返回输入错误, 实际 %v", err)
	}
}

func TestDispatch_ServerlessMissingURL(t *testing.T) {
	d := New(fastOpts())
	_, err := d.Dispatch(context.Background(), testCase("Result_1"), ModeServerless)
	if err == nil {
		t.Fatal("未配置远程端时应返回错误")
	}
}

// blockingLister 第一次调用阻塞在目录列表上，直到被放行
type blockingLister struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (l *blockingLister) ListFolders(ctx context.Context) ([]model.ResultFolder, error) {
	l.once.Do(func() { close(l.entered) })
	<-l.release
	return nil, nil
}

func TestDispatch_StopDuringPreflightKeepsReady(t *testing.T) {
	remote := newFakeSolver(t)
	lister := &blockingLister{entered: make(chan struct{}), release: make(chan struct{})}

	opts := fastOpts()
	opts.ServerlessURL = remote.srv.URL
	opts.Lister = lister
	d := New(opts)

	var wg sync.WaitGroup
	var dispatchErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, dispatchErr = d.Dispatch(context.Background(), testCase("Result_1"), ModeServerless)
	}()

	// 在命名冲突预检中停止，随后才放行被阻塞的目录列表
	<-lister.entered
	d.Stop()
	close(lister.release)
	wg.Wait()

	if !apperrors.Is(dispatchErr, apperrors.CodeCanceled) {
		t.Fatalf("停止后的结果应被丢弃, 实际 %v", dispatchErr)
	}
	if d.State() != StateReady {
		t.Fatalf("停止后状态 = %s, 期望 ready", d.State())
	}

	// 残留的状态不应拒绝后续派发
	if _, err := d.Dispatch(context.Background(), testCase("Result_2"), ModeServerless); err != nil {
		t.Errorf("停止后的新派发不应被拒绝: %v", err)
	}
}

func TestDispatch_BumpsResultCounter(t *testing.T) {
	remote := newFakeSolver(t)
	counter := &counterStub{}

	opts := fastOpts()
	opts.ServerlessURL = remote.srv.URL
	opts.Counter = counter
	d := New(opts)

	if _, err := d.Dispatch(context.Background(), testCase("Result_6"), ModeServerless); err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}
	if counter.bumped != 7 {
		t.Errorf("成功派发后计数器应推进到 7, 实际 %d", counter.bumped)
	}
}

// slowRecorder 在保存运行历史时阻塞，直到被放行
type slowRecorder struct {
	entered chan struct{}
	release chan struct{}
}

func (r *slowRecorder) SaveRun(ctx context.Context, result *model.RunResult) error {
	close(r.entered)
	<-r.release
	return nil
}

func TestDispatch_SaveRunDoesNotBlockState(t *testing.T) {
	remote := newFakeSolver(t)
	rec := &slowRecorder{entered: make(chan struct{}), release: make(chan struct{})}

	opts := fastOpts()
	opts.ServerlessURL = remote.srv.URL
	opts.Recorder = rec
	d := New(opts)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Dispatch(context.Background(), testCase("Result_1"), ModeServerless)
	}()

	<-rec.entered
	got := make(chan State, 1)
	go func() { got <- d.State() }()
	select {
	case s := <-got:
		if s != StateFinished {
			t.Errorf("保存进行中状态 = %s, 期望 finished", s)
		}
	case <-time.After(time.Second):
		t.Error("历史保存进行中 State() 不应被阻塞")
	}
	close(rec.release)
	wg.Wait()
}

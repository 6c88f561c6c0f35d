// ZhiPai 排班案例与求解派发服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zhipai/zhipai/internal/config"
	"github.com/zhipai/zhipai/internal/database"
	"github.com/zhipai/zhipai/internal/handler"
	"github.com/zhipai/zhipai/internal/metrics"
	"github.com/zhipai/zhipai/internal/middleware"
	"github.com/zhipai/zhipai/internal/repository"
	"github.com/zhipai/zhipai/pkg/dispatcher"
	"github.com/zhipai/zhipai/pkg/logger"
	"github.com/zhipai/zhipai/pkg/prefs"
	"github.com/zhipai/zhipai/pkg/probe"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// .env 存在时先载入，再从环境变量取配置
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: "console",
	})

	fmt.Printf("ZhiPai 排班派发服务 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	// 运行历史存储：数据库未启用时退回内存存储
	var store repository.RunStore
	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("数据库初始化失败")
		}
		defer db.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := db.EnsureSchema(ctx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("表结构初始化失败")
		}
		cancel()
		store = repository.NewRunRepository(db)
	} else {
		logger.Info().Msg("数据库未启用，运行历史仅保留在内存")
		store = repository.NewMemoryRunStore()
	}

	// 派发器：探活、唤醒、回退策略，全部事件接入指标
	reg := metrics.GetRegistry()
	prober := probe.New(cfg.Solver.ProbeTimeout, cfg.Solver.InstallProbeTimeout)
	disp := dispatcher.New(dispatcher.Options{
		LocalURL:           cfg.Solver.LocalURL,
		ServerlessURL:      cfg.Solver.ServerlessURL,
		SolveTimeout:       cfg.Solver.SolveTimeout,
		ActivationAttempts: cfg.Solver.ActivationAttempts,
		ActivationBackoff:  cfg.Solver.ActivationBackoff,
		LocalInstalled:     cfg.Solver.LocalInstalled,
		Prober:             prober,
		Lister:             store,
		Recorder:           store,
		Counter:            store,
		Hooks: dispatcher.Hooks{
			OnFallback: func(cause error) {
				if c := reg.GetCounter("zhipai_dispatch_fallback_total"); c != nil {
					c.Inc()
				}
			},
			OnStateChange: func(from, to dispatcher.State) {
				if g := reg.GetGauge("zhipai_dispatch_state"); g != nil {
					g.Set(stateValue(to))
				}
			},
			OnProbe: func(available bool, latency time.Duration) {
				if h := reg.GetHistogram("zhipai_probe_duration_seconds"); h != nil {
					h.Observe(latency.Seconds(), fmt.Sprintf("%t", available))
				}
			},
		},
	})

	// 处理器
	defaults := prefs.Defaults{
		MaxTotal:           cfg.Defaults.MaxTotal,
		MaxConsecutiveDays: cfg.Defaults.MaxConsecutiveDays,
	}
	dispatchHandler := handler.NewDispatchHandler(disp, store)
	caseHandler := handler.NewCaseHandler(defaults)
	resultsHandler := handler.NewResultsHandler(store, disp)

	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"zhipai"}`))
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","build_time":"%s","git_commit":"%s"}`, Version, BuildTime, GitCommit)
	})

	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	// ========================================
	// API v1 端点
	// ========================================

	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"message": "ZhiPai 排班派发服务 API v1",
			"endpoints": {
				"dispatch": {
					"dispatch": "POST /api/v1/dispatch",
					"stop": "POST /api/v1/dispatch/stop",
					"state": "GET /api/v1/dispatch/state",
					"solver_health": "GET /api/v1/solver/health"
				},
				"case": {
					"prefs": "POST /api/v1/providers/prefs",
					"add_provider": "POST /api/v1/providers",
					"merge_provider": "POST /api/v1/providers/merge",
					"remove_provider": "POST /api/v1/providers/remove",
					"normalize": "POST /api/v1/normalize",
					"validate": "POST /api/v1/validate",
					"constraints": "GET /api/v1/constraints"
				},
				"results": {
					"list": "GET /api/v1/results",
					"get": "GET /api/v1/results/run",
					"folders": "GET /api/v1/results/folders",
					"next_name": "GET /api/v1/results/next-name"
				}
			}
		}`))
	})

	// 派发 API
	mux.HandleFunc("/api/v1/dispatch", dispatchHandler.Dispatch)
	mux.HandleFunc("/api/v1/dispatch/stop", dispatchHandler.Stop)
	mux.HandleFunc("/api/v1/dispatch/state", dispatchHandler.State)
	mux.HandleFunc("/api/v1/solver/health", dispatchHandler.SolverHealth)

	// 案例编辑 API
	mux.HandleFunc("/api/v1/providers/prefs", caseHandler.ApplyPrefs)
	mux.HandleFunc("/api/v1/providers", caseHandler.AddProvider)
	mux.HandleFunc("/api/v1/providers/merge", caseHandler.MergeProvider)
	mux.HandleFunc("/api/v1/providers/remove", caseHandler.RemoveProvider)
	mux.HandleFunc("/api/v1/normalize", caseHandler.Normalize)
	mux.HandleFunc("/api/v1/validate", caseHandler.Validate)
	mux.HandleFunc("/api/v1/constraints", handler.ConstraintLibrary)

	// 结果 API
	mux.HandleFunc("/api/v1/results", resultsHandler.List)
	mux.HandleFunc("/api/v1/results/run", resultsHandler.Get)
	mux.HandleFunc("/api/v1/results/folders", resultsHandler.Folders)
	mux.HandleFunc("/api/v1/results/next-name", resultsHandler.NextName)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      middleware.RequestLog(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Solver.SolveTimeout + time.Minute, // 求解请求可能长时间运行
		IdleTimeout:  120 * time.Second,
	}

	// 启动时探测一次本地求解端
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		result := disp.RefreshProbe(ctx)
		logger.Info().
			Bool("available", result.Available).
			Str("endpoint", cfg.Solver.LocalURL).
			Msg("本地求解端启动探测")
	}()

	// 优雅关闭
	done := make(chan struct{})
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info().Msg("收到退出信号，开始关闭")
		disp.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("服务关闭失败")
		}
		close(done)
	}()

	logger.Info().
		Int("port", cfg.App.Port).
		Str("env", cfg.App.Env).
		Msg("服务启动")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("服务启动失败")
	}
	<-done
}

// stateValue 状态机状态到指标值的映射
func stateValue(s dispatcher.State) float64 {
	switch s {
	case dispatcher.StateReady:
		return 0
	case dispatcher.StateConnecting:
		return 1
	case dispatcher.StateRunning:
		return 2
	case dispatcher.StateFinished:
		return 3
	default:
		return 4
	}
}

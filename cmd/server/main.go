package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/api"
	"github.com/wfunc/wager-engine/internal/config"
	"github.com/wfunc/wager-engine/internal/database"
	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/logger"
	"github.com/wfunc/wager-engine/internal/service"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	db       *gorm.DB
	services *service.Services
	http     *http.Server
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	setupSystem(&cfg.System)
	printStartInfo(cfg)

	// SIGINT/SIGTERM 触发优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := NewServer(ctx, cfg)
	if err != nil {
		logger.Fatal("服务器初始化失败", zap.Error(err))
	}

	if err := server.Run(ctx); err != nil {
		logger.Error("服务器异常退出", zap.Error(err))
		server.Close()
		os.Exit(1)
	}
	server.Close()
	logger.Info("服务器已安全关闭")
}

// NewServer 初始化数据库与各服务
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger.GetLogger()}

	s.logger.Info("初始化数据库...", zap.String("driver", cfg.Database.Driver))
	if err := database.Init(&cfg.Database); err != nil {
		return nil, err
	}
	s.db = database.GetDB()

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(s.db); err != nil {
			database.Close()
			return nil, errors.Wrap(err, errors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}
	if !database.IsConnected(s.db) {
		database.Close()
		return nil, errors.New(errors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	services, err := service.New(ctx, cfg, s.db, service.Options{Logger: logger.GetModuleLogger})
	if err != nil {
		database.Close()
		return nil, err
	}
	s.services = services

	router := api.NewRouter(api.Deps{
		DB:       s.db,
		Rooms:    services.Rooms,
		Presence: services.Presence,
		Ledger:   services.Ledger,
		Hub:      services.Hub,
		Tokens:   services.Tokens,
		Mode:     cfg.Server.Mode,
		Logger:   logger.GetModuleLogger("api"),
	})

	s.http = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		logger.SetLevel(newCfg.Log.Level)
		s.services.UpdateConfig(newCfg)
	})
	return s, nil
}

// Run 运行 HTTP 服务与后台任务，ctx 结束后在 shutdown_timeout 内关闭
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("HTTP服务启动", zap.String("addr", s.http.Addr), zap.String("version", Version))
		if err := s.http.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, errors.ErrUnknown, "http server")
		}
		return nil
	})

	g.Go(func() error {
		return s.services.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("正在优雅关闭服务器...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, errors.ErrTimeout, "关闭超时")
		}
		return nil
	})

	return g.Wait()
}

// Close 关闭外部连接
func (s *Server) Close() {
	if s.services != nil {
		if err := s.services.Close(); err != nil {
			s.logger.Error("关闭Redis失败", zap.Error(err))
		}
	}
	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}
}

// setupSystem 设置系统参数
func setupSystem(cfg *config.SystemConfig) {
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}
	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
}

func printVersion() {
	fmt.Printf("对局结算服务\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func printHelp() {
	fmt.Println("对局结算服务")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  wager-engine [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  WAGER_SERVER_PORT          监听端口")
	fmt.Println("  WAGER_DATABASE_DSN         数据库连接串")
	fmt.Println("  WAGER_GAME_TURN_TIMEOUT    回合超时")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  wager-engine -config=/path/to/config.yaml")
	fmt.Println("  wager-engine -version")
}

func printStartInfo(cfg *config.Config) {
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf(" wager-engine %s | 模式: %s | PID: %d\n", Version, cfg.Server.Mode, os.Getpid())
	fmt.Printf(" 配置文件: %s\n", config.ConfigFileUsed())
	fmt.Printf(" 回合超时: %s | 凑桌超时: %s\n", cfg.Game.Turn.Timeout, cfg.Game.Room.FillTimeout)
	fmt.Println("═══════════════════════════════════════════════════════════════")
}

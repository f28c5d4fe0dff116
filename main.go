package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sub-hub/sub-hub/internal/config"
	"github.com/sub-hub/sub-hub/internal/fetcher"
	"github.com/sub-hub/sub-hub/internal/logging"
	"github.com/sub-hub/sub-hub/internal/server"
	"github.com/sub-hub/sub-hub/internal/server/routes"
	"github.com/sub-hub/sub-hub/internal/subcache"
	"github.com/sub-hub/sub-hub/internal/subfetch"
	"github.com/sub-hub/sub-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["cache_enabled"] = cfg.Global.CacheEnabled()
		fields["max_retries"] = cfg.Global.MaxRetries
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// CLI 启动遵循“配置 → 持久缓存 → 抓取器 → Fiber server”顺序，
	// 保证所有请求共享同一个缓存句柄与上游客户端。
	var store *subcache.Store
	if cfg.Global.CacheEnabled() {
		store, err = subcache.Open(cfg.Global.CachePath, logger)
		if err != nil {
			fmt.Fprintf(stdErr, "初始化持久缓存失败: %v\n", err)
			return 1
		}
		defer func() { _ = store.Close() }()
	} else {
		logger.WithFields(logrus.Fields{
			"action": "startup",
		}).Warn("未配置 CachePath，持久缓存与回退均已禁用")
	}

	httpClient := fetcher.NewHTTPClient(cfg)
	service := subfetch.NewService(fetcher.New(httpClient, logger), store, logger)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["cache_enabled"] = cfg.Global.CacheEnabled()
	fields["identity_pool"] = fetcher.PoolSize()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, service, store, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("sub-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 SUB_HUB_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("SUB_HUB_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, service *subfetch.Service, store *subcache.Store, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:         logger,
		Service:        service,
		DefaultRetries: cfg.Global.MaxRetries,
		MaxBatchURLs:   cfg.Global.MaxBatchURLs,
		ListenPort:     port,
	})
	if err != nil {
		return err
	}
	routes.RegisterCacheRoutes(app, store)
	routes.RegisterIdentityRoutes(app)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}

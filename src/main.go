package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"DeliveryDashboard/src/api"
	"DeliveryDashboard/src/catalog"
	"DeliveryDashboard/src/config"
	"DeliveryDashboard/src/dataset"
	"DeliveryDashboard/src/datasource/file"
	"DeliveryDashboard/src/processor"
	"DeliveryDashboard/src/storage"

	"github.com/robfig/cron"
)

func main() {
	jsonFolder := "./config"
	jsonFile := "config.json"
	dataJsonFile := "dataconfig.json"
	cfg, dcfg, err := config.LoadConfig(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Fatal("Failed to load config:", err)
		}
		// 没有配置目录时使用默认配置
		cfg, dcfg = config.Default()
	}
	config.ApplyEnv(cfg, ".env", ".env.local")

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName, os.Stdout)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()

	loc, err := cfg.Location()
	if err != nil {
		logger.Warning(err.Error() + "，使用本地时区")
		loc = time.Local
	}

	cache := dataset.NewCache(cfg.DatasetPath(), cfg.SheetName, loc, dataset.WithLogger(logger))
	if _, err := cache.Get(); err != nil {
		// 数据集缺失不影响启动，请求时返回 404
		logger.Error("预加载数据集失败: " + err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	file.SetupSignalHandler(cancel)

	// 设置定时任务：刷新缓存并检查日志轮转
	c := cron.New()
	interval := time.Duration(cfg.RefreshInterval)
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	cronSpec := fmt.Sprintf("@every %s", interval)
	err = c.AddFunc(cronSpec, func() {
		if _, err := cache.Get(); err != nil {
			logger.Error("定时刷新数据集失败: " + err.Error())
		}
		if rotated, err := logger.CheckRotate(cfg.LogMaxSize); err != nil {
			logger.Error("日志轮转失败: " + err.Error())
		} else if rotated {
			logger.Info("日志文件已轮转")
		}
	})
	if err != nil {
		logger.Error("创建定时任务失败: " + err.Error())
		return
	}
	c.Start()
	defer c.Stop()
	logger.Info(fmt.Sprintf("定时刷新已启动(间隔: %v)", interval))

	// 数据集文件被改写时立即重新加载
	monitor, err := file.NewFileMonitor(cfg.DatasetPath())
	if err != nil {
		logger.Warning("文件监听启动失败: " + err.Error())
	} else {
		defer monitor.Close()
		go func() {
			err := monitor.Watch(ctx, func(path string) {
				logger.Info("数据集文件已更新: " + path)
				if _, err := cache.Load(true); err != nil {
					logger.Error("重新加载数据集失败: " + err.Error())
				}
			})
			if err != nil {
				logger.Error("文件监听出错: " + err.Error())
			}
		}()
	}

	svc := processor.NewService(cache, dcfg, loc)
	server := api.New(api.Options{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Service:        svc,
		Files:          catalog.New(cfg.DataDir),
		Logger:         logger,
		Status:         cache,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("API 服务异常退出: " + err.Error())
		}
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API 服务关闭失败: " + err.Error())
		}
	}
	logger.Info("服务已退出")
}

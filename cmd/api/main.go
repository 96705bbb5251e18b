package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JackYoustra/TCATestRecording/internal/app"
	"github.com/JackYoustra/TCATestRecording/internal/app/api"
	"github.com/JackYoustra/TCATestRecording/pkg/config"
)

// configEnv 与 CLI 共用的配置文件环境变量
const configEnv = "TRACEREPLAY_CONFIG_FILE"

func loadConfig() (*config.Config, error) {
	if path := os.Getenv(configEnv); path != "" {
		return config.LoadConfig(path)
	}
	cfg := config.Default()
	return cfg, cfg.Validate()
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	bootstrap, err := app.NewBootstrap(context.Background(), cfg)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	defer bootstrap.Logger.Close()

	application, err := api.NewApp(bootstrap)
	if err != nil {
		log.Fatalf("创建归档服务失败: %v", err)
	}

	go func() {
		if err := application.Run(cfg.API.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("归档服务异常退出: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		log.Printf("关闭失败: %v", err)
	}
	log.Println("归档服务已关闭")
}

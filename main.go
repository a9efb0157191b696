package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fintrack/config"
	"fintrack/database"
	"fintrack/docs"
	"fintrack/router"
)

// @title FinTrack API
// @version 1.0
// @description 个人记账后端：账户、交易、余额、标签、投资与预算，每个用户使用独立的 RSA 密钥签发 token
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const (
	version         = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	var configFile, port string
	var showVersion bool
	flag.StringVar(&configFile, "config", "", "外部配置文件路径（可选）")
	flag.StringVar(&configFile, "c", "", "同 -config")
	flag.StringVar(&port, "port", "", "监听端口，覆盖配置文件，如 8080 或 :8080")
	flag.StringVar(&port, "p", "", "同 -port")
	flag.BoolVar(&showVersion, "version", false, "打印版本后退出")
	flag.BoolVar(&showVersion, "v", false, "同 -version")
	flag.Parse()

	if showVersion {
		log.Printf("FinTrack v%s", version)
		return
	}

	if err := run(configFile, port); err != nil {
		log.Fatalf("[SERVER] %v", err)
	}
}

// run 返回前总会关闭数据库
func run(configFile, port string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Server.Port = ":" + strings.TrimPrefix(port, ":")
	}
	config.PrintConfig(cfg)

	db, err := database.Init(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	docs.SwaggerInfo.Host = "localhost" + cfg.Server.Port
	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.SetupRouter(cfg, db),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[SERVER] FinTrack v%s 监听 %s，Swagger: http://localhost%s/swagger/index.html",
			version, cfg.Server.Port, cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("[SERVER] 收到退出信号，正在关闭")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

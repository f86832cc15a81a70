package main

import (
	"log"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/aa547887/GameSpace-sub003/internal/config"
	"github.com/aa547887/GameSpace-sub003/internal/logger"
	"github.com/aa547887/GameSpace-sub003/internal/server"
)

func main() {
	cfg, err := config.Load("./config")
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	logger.Init(cfg.Mode)
	defer logger.Sync()

	app := iris.New()
	server.RegisterAdminRoutes(app, cfg)

	addr := cfg.AdminServer.Addr()
	zap.L().Info("admin server listening", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		zap.L().Fatal("failed to run admin server", zap.Error(err))
	}
}

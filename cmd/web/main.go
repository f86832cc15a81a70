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
	zap.L().Info("log init success")

	app := iris.New()
	// 注册 HTML 模板引擎，使用本项目下的 web/views 目录
	tmpl := iris.HTML("./web/views", ".html")
	tmpl.Layout("shared/layout.html")
	tmpl.Reload(cfg.Mode == "debug")
	app.RegisterView(tmpl)

	server.RegisterRoutes(app, cfg)

	addr := cfg.Server.Addr()
	zap.L().Info("web server listening", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		zap.L().Fatal("failed to run web server", zap.Error(err))
	}
}

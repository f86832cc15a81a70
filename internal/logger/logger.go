package logger

import (
	"log"

	"go.uber.org/zap"
)

// Init 初始化全局 zap Logger 并替换 zap.L()。
// mode 为 debug 时使用开发配置（彩色、可读），否则输出 JSON。
func Init(mode string) {
	var (
		l   *zap.Logger
		err error
	)
	if mode == "debug" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	zap.ReplaceGlobals(l)
}

// Sync 进程退出前刷新缓冲日志
func Sync() {
	_ = zap.L().Sync()
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gowvp/annotator/internal/conf"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// Run 启动 HTTP 服务，收到退出信号后等待请求结束
func Run(bc *conf.Bootstrap) error {
	log, clean, err := SetupLog(bc)
	if err != nil {
		return err
	}
	defer clean()
	slog.SetDefault(log)

	handler, cleanUp, err := wireApp(bc)
	if err != nil {
		return err
	}
	defer cleanUp()

	svc := http.Server{
		Addr:              fmt.Sprintf(":%d", bc.Server.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       bc.Server.HTTP.Timeout.Duration(),
	}
	go func() {
		slog.Info("http server start", "addr", svc.Addr, "version", bc.BuildVersion, "config", bc.ConfigPath)
		if err := svc.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ListenAndServe", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("http server shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return svc.Shutdown(shutdownCtx)
}

// SetupLog JSON 日志同时输出到终端与按时间切割的文件
func SetupLog(bc *conf.Bootstrap) (*slog.Logger, func(), error) {
	cfg := bc.Log
	dir := cfg.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(bc.ConfigDir, "..", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	opts := []rotatelogs.Option{
		rotatelogs.WithMaxAge(cfg.MaxAge.Duration()),
		rotatelogs.WithRotationTime(cfg.RotationTime.Duration()),
	}
	if cfg.RotationSize > 0 {
		opts = append(opts, rotatelogs.WithRotationSize(cfg.RotationSize*1024*1024))
	}
	w, err := rotatelogs.New(filepath.Join(dir, "%Y%m%d%H%M.log"), opts...)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = w
	if bc.Debug {
		out = io.MultiWriter(os.Stdout, w)
	}
	h := slog.NewJSONHandler(out, &slog.HandlerOptions{
		AddSource: bc.Debug,
		Level:     parseLevel(cfg.Level),
	})
	return slog.New(h), func() { _ = w.Close() }, nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

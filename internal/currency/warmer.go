package currency

import (
	"context"
	"fmt"
	"time"

	rcron "github.com/robfig/cron/v3"

	"house-ai/pkg/log"
)

// WarmPairs 定时预热的币对
var WarmPairs = [][2]string{{"USD", "UZS"}, {"EUR", "UZS"}}

// Warmer 按 cron 表达式定时刷新常用汇率缓存
type Warmer struct {
	svc    *Service
	spec   string
	cron   *rcron.Cron
	logger *log.Logger
}

// NewWarmer spec 为标准 5 段 cron 表达式
func NewWarmer(svc *Service, spec string, logger *log.Logger) *Warmer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Warmer{svc: svc, spec: spec, logger: logger}
}

// Start 注册任务并启动调度，启动时先刷新一次；ctx 结束时自动停止
func (w *Warmer) Start(ctx context.Context) error {
	w.cron = rcron.New()
	if _, err := w.cron.AddFunc(w.spec, func() { w.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("无效的汇率刷新表达式 %q: %w", w.spec, err)
	}
	w.cron.Start()
	w.logger.Info("汇率预热任务已启动", "spec", w.spec)

	go w.RunOnce(ctx)
	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

// RunOnce 刷新全部预热币对，返回成功数
func (w *Warmer) RunOnce(ctx context.Context) int {
	ok := 0
	for _, p := range WarmPairs {
		reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		rate, err := w.svc.Refresh(reqCtx, p[0], p[1])
		cancel()
		if err != nil {
			w.logger.Warn("汇率预热失败", "from", p[0], "to", p[1], "error", err)
			continue
		}
		ok++
		w.logger.Debug("汇率已刷新", "from", p[0], "to", p[1], "rate", rate)
	}
	return ok
}

// Stop 停止调度并等待运行中的任务结束
func (w *Warmer) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}

package utils

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// SetupSignalHandler 注册 SIGINT/SIGTERM 信号监听，返回取消标志和清理函数。
//
// 刷新循环在每个周期检查取消标志；收到信号后当前周期结束即安全退出，
// 终端状态由调用方的 defer 恢复。使用 done channel 确保 goroutine 正常结束时不泄漏。
func SetupSignalHandler() (*atomic.Bool, func()) {
	cancelled := &atomic.Bool{}
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancelled.Store(true)
		case <-done:
		}
	}()

	stop := func() {
		signal.Stop(sigCh)
		close(done)
	}
	return cancelled, stop
}

// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 5 * time.Second

// App 啟動所有 Component，並在收到 OS 信號或任一 Component 出錯時依序優雅關閉。
// 關閉後再依註冊的反序執行 OnStop 動作（例如關閉運行時、drain 非同步日誌）。
type App struct {
	comps  []Component
	onStop []func()
	log    *slog.Logger
}

func New(log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{log: log}
}

// NewWith 建立時直接註冊多個 Component。
func NewWith(log *slog.Logger, comps ...Component) *App {
	a := New(log)
	for _, c := range comps {
		a.Register(c)
	}
	return a
}

func (a *App) Register(c Component) {
	a.comps = append(a.comps, c)
}

// OnStop 註冊關閉後的清理動作。
func (a *App) OnStop(fn func()) {
	if fn != nil {
		a.onStop = append(a.onStop, fn)
	}
}

// Run 阻塞直到收到 SIGINT/SIGTERM（回傳 nil）或任一 Component 的 Run 返回（回傳其錯誤）。
// Component 的 Run 只要返回就視為停止，即使回傳 nil。
func (a *App) Run() error {
	errCh := make(chan error, len(a.comps))
	for _, c := range a.comps {
		go func(c Component) {
			errCh <- c.Run()
		}(c)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var err error
	select {
	case sig := <-quit:
		a.log.Info("shutdown signal", slog.String("signal", sig.String()))
	case err = <-errCh:
	}
	a.gracefulShutdown(shutdownTimeout)
	return err
}

func (a *App) gracefulShutdown(td time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), td)
	defer cancel()
	for _, c := range a.comps {
		if err := c.Shutdown(ctx); err != nil {
			a.log.Error("shutdown err", slog.Any("err", err))
		}
	}
	for i := len(a.onStop) - 1; i >= 0; i-- {
		a.onStop[i]()
	}
}

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

// Package netsvr 封裝 HTTP 路由與服務啟停。
package netsvr

import (
	"net/http"

	"github.com/zintix-labs/cortexlab/server/app"
)

// NetSvr 路由行為加上服務啟停，只交給最外層組裝使用；可直接交給 app.App 管理。
// 換 http 框架時只需提供新的實作（需相容 net/http handler）。
type NetSvr interface {
	NetRouter
	app.Component
}

// NetRouter 純路由行為。Group 回呼只拿得到 NetRouter，碰不到 Run/Shutdown。
type NetRouter interface {
	Use(middleware func(http.Handler) http.Handler)

	Get(path string, h http.HandlerFunc)
	Post(path string, h http.HandlerFunc)
	Put(path string, h http.HandlerFunc)
	Delete(path string, h http.HandlerFunc)

	Group(path string, fn func(NetRouter))
}

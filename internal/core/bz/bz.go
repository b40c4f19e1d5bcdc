// Package bz 业务公共定义，跨领域共享的错误分类
package bz

import "errors"

var (
	// ErrNotFound 操作不存在的片段/区域
	ErrNotFound = errors.New("not found")
	// ErrPrecondition 前置条件不满足，例如未标记起点就标记终点
	ErrPrecondition = errors.New("precondition failed")
	// ErrExternalService 分割/描述服务请求失败或返回数据不合法
	ErrExternalService = errors.New("external service failed")
	// ErrStale 被更新的请求取代，结果已丢弃
	ErrStale = errors.New("stale response")
)

/*
Copyright (C) 2025 [GrainArc]

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package Gozonal

import (
	"context"
	"runtime"
	"sync"
)

// CallPool 调用槽位池，限制同时执行的顶层调用数
type CallPool struct {
	semaphore chan struct{}
	size      int
}

var (
	callPool     *CallPool
	callPoolOnce sync.Once
)

// DefaultCallPoolSize CPU 核心数 * 2，限制在 [4,16]
func DefaultCallPoolSize() int {
	poolSize := runtime.NumCPU() * 2
	if poolSize < 4 {
		poolSize = 4
	}
	if poolSize > 16 {
		poolSize = 16
	}
	return poolSize
}

// NewCallPool 创建指定大小的池，size < 1 时使用默认大小
func NewCallPool(size int) *CallPool {
	if size < 1 {
		size = DefaultCallPoolSize()
	}
	return &CallPool{
		semaphore: make(chan struct{}, size),
		size:      size,
	}
}

// GetCallPool 获取全局调用池（单例）
func GetCallPool() *CallPool {
	callPoolOnce.Do(func() {
		callPool = NewCallPool(0)
	})
	return callPool
}

// Size 池大小
func (p *CallPool) Size() int { return p.size }

// InUse 当前占用的槽位数
func (p *CallPool) InUse() int { return len(p.semaphore) }

// Acquire 获取槽位，ctx 结束时返回其错误
func (p *CallPool) Acquire(ctx context.Context) error {
	select {
	case p.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 释放槽位
func (p *CallPool) Release() {
	<-p.semaphore
}

// Do 在槽位内执行 fn
func Do[T any](ctx context.Context, p *CallPool, fn func() (T, error)) (T, error) {
	var zero T
	if err := p.Acquire(ctx); err != nil {
		return zero, err
	}
	defer p.Release()
	return fn()
}

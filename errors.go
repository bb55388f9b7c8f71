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
	"errors"
	"fmt"
)

// ErrorKind 错误类别
type ErrorKind int

const (
	// KindInvalidArgument 调用方参数不合法
	KindInvalidArgument ErrorKind = iota + 1
	// KindDataSource 外部数据源（打开/读取/栅格化）失败
	KindDataSource
	// KindRuntime 内部不变量被破坏，例如地理变换不可逆
	KindRuntime
)

// 哨兵错误，配合 errors.Is 使用
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrDataSource      = errors.New("data source error")
	ErrRuntime         = errors.New("runtime error")
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindDataSource:
		return "data source error"
	case KindRuntime:
		return "runtime error"
	default:
		return "unknown error"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindDataSource:
		return ErrDataSource
	case KindRuntime:
		return ErrRuntime
	}
	return nil
}

// Error 带类别的错误
type Error struct {
	Kind ErrorKind
	Op   string // 出错的操作，例如 "open raster"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrInvalidArgument) 等判断成立
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf 返回错误类别，非本包错误返回 0
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsInvalidArgument 判断是否为调用方参数错误
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func invalidArgf(format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Err: fmt.Errorf(format, args...)}
}

func runtimef(format string, args ...any) error {
	return &Error{Kind: KindRuntime, Err: fmt.Errorf(format, args...)}
}

// dataSourceErr 包装外部数据源错误；已带类别的错误原样返回
func dataSourceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindDataSource, Op: op, Err: err}
}

func dataSourcef(op, format string, args ...any) error {
	return &Error{Kind: KindDataSource, Op: op, Err: fmt.Errorf(format, args...)}
}

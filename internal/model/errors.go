package model

import "errors"

var (
	// ErrInvalidArgument 调用方违反参数约定（如负数的 topAmount）
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound 存储中没有该条目的相似数据
	ErrNotFound = errors.New("item not found")
)

package service

import (
	"errors"
	"fmt"
)

// ErrorKind 同步错误分类
type ErrorKind string

const (
	KindConfiguration ErrorKind = "CONFIGURATION_ERROR"
	KindExtraction    ErrorKind = "EXTRACTION_ERROR"
)

// DispatchError 派发前校验失败，调用方可见（HTTP 400）
type DispatchError struct {
	Kind    ErrorKind
	Message string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Code 错误码
func (e *DispatchError) Code() string { return string(e.Kind) }

func configError(format string, args ...interface{}) error {
	return &DispatchError{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

func extractionError(format string, args ...interface{}) error {
	return &DispatchError{Kind: KindExtraction, Message: fmt.Sprintf(format, args...)}
}

// UpstreamError 补全服务调用失败（HTTP 500）
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return "completion call failed: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// UpstreamErrorCode 补全失败错误码
const UpstreamErrorCode = "UPSTREAM_ERROR"

// IsKind 判断 err 链中是否存在指定分类的 DispatchError
func IsKind(err error, kind ErrorKind) bool {
	var de *DispatchError
	return errors.As(err, &de) && de.Kind == kind
}

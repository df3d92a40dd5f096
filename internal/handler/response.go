// Package handler 提供 HTTP 请求处理
package handler

import (
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/model"
	"github.com/eidos-exchange/eidos/eidos-selftrade/pkg/errors"
	"github.com/eidos-exchange/eidos/eidos-selftrade/pkg/logger"
)

var registerOnce sync.Once

// RegisterValidation 在 gin 的校验引擎上注册 decimal 与 JSON 字段名
func RegisterValidation() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			model.RegisterValidation(v)
		}
	})
}

// Error 返回业务错误响应
func Error(c *gin.Context, err error) {
	bizErr := errors.FromError(err)
	status := errors.ToHTTPStatus(bizErr)
	if status >= 500 {
		logger.Error("request failed",
			"code", errors.GetCode(err),
			"path", c.Request.URL.Path,
			"trace_id", c.GetString("trace_id"),
			"error", err)
	}
	_ = c.Error(err)
	c.JSON(status, bizErr)
}

// bindError 将绑定错误转换为业务错误: 字段校验失败为 422, 其余为 400
func bindError(err error) *errors.Error {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fieldPath(fe.Namespace())] = ruleText(fe)
		}
		return errors.ErrValidationFailed.WithDetails(details)
	}

	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) && typeErr.Field != "" {
		return errors.ErrValidationFailed.WithDetail(typeErr.Field, "invalid type "+typeErr.Value)
	}

	return errors.ErrInvalidRequest.WithDetail("error", err.Error())
}

// fieldPath 去掉顶层结构体名
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func ruleText(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

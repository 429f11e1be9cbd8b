// Package validation wraps go-playground/validator with caller-supplied messages so that domain
// stores can report the first failed rule as an errcode validation error.
package validation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"recipehub/internal/errcode"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Messages 以 "Field.tag" 或 "Field" 为键提供面向用户的错误文案。
type Messages map[string]string

// Get 返回进程内共享的 validator 实例。
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Struct 校验结构体，返回第一条失败规则对应的 *errcode.Error。
func Struct(s any, messages Messages) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate %T: %w", s, err)
	}

	fe := fieldErrs[0]
	if msg, ok := messages[fe.StructField()+"."+fe.Tag()]; ok {
		return errcode.Validation(msg)
	}
	if msg, ok := messages[fe.StructField()]; ok {
		return errcode.Validation(msg)
	}
	return errcode.Validation(defaultMessage(fe))
}

func defaultMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

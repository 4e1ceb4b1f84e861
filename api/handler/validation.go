package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// bindErrorMessage 将绑定错误转换为可读的提示信息
func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request parameters"
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("field '%s' is required", fe.Field()))
		case "min":
			messages = append(messages, fmt.Sprintf("field '%s' must be at least %s", fe.Field(), fe.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("field '%s' must be at most %s", fe.Field(), fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("field '%s' is invalid", fe.Field()))
		}
	}

	return strings.Join(messages, "; ")
}

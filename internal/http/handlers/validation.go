package handlers

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Rules on top of validator's builtins, registered on gin's engine so the
// binding tags on request DTOs can use them.
//
//	maxbytes=N  string is at most N bytes (bcrypt truncates at 72 bytes, not runes)
//	trimmin=N   string has at least N characters once surrounding space is trimmed
func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	if err := RegisterRules(v); err != nil {
		panic(err)
	}
}

func RegisterRules(v *validator.Validate) error {
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		return err
	}
	return v.RegisterValidation("trimmin", trimMin)
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

func trimMin(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= limit
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FieldError is one entry of details.fields in a 400 response. Field is the
// name the client sent (json or form tag), not the Go field name.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSON decodes and validates the auth payloads. On failure it writes
// the 400 and returns false.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	return bindWith(ctx, out, ctx.ShouldBindJSON(out))
}

// BindForm binds url-encoded or multipart fields using `form` tags.
func BindForm(ctx *gin.Context, out interface{}) bool {
	return bindWith(ctx, out, ctx.ShouldBind(out))
}

func bindWith(ctx *gin.Context, out interface{}, err error) bool {
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body is too large", nil)
		return false
	}

	RespondBadRequest(ctx, "Invalid request body", bindErrorDetails(err, wireNames(out)))
	return false
}

func bindErrorDetails(err error, names map[string]string) gin.H {
	var verrs validator.ValidationErrors

	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))

		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   wireName(names, fe.StructField()),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: validationMessage(fe.Tag(), fe.Param()),
			})
		}
		return gin.H{"fields": fields}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) {
		return gin.H{"json": "invalid_json_syntax"}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := wireName(names, lastSegment(typeErr.Field))

		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
			}},
		}
	}

	// form values that do not parse, e.g. price=abc
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return gin.H{
			"form":  "invalid_number",
			"value": numErr.Num,
		}
	}

	return gin.H{"reason": err.Error()}
}

// wireNames maps Go field names of the request struct to their json (or
// form) names. Request DTOs here are flat, so one level is enough.
func wireNames(out interface{}) map[string]string {
	t := reflect.TypeOf(out)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	names := make(map[string]string, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)

		tag := sf.Tag.Get("json")
		if tag == "" {
			tag = sf.Tag.Get("form")
		}

		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			name = sf.Name
		}
		names[sf.Name] = name
	}

	return names
}

func wireName(names map[string]string, goName string) string {
	if n, ok := names[goName]; ok {
		return n
	}
	// json errors already carry the wire name
	return goName
}

func lastSegment(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param + " characters"
	case "max":
		return "must be at most " + param + " characters"
	case "trimmin":
		return "must be at least " + param + " characters, not counting surrounding spaces"
	case "maxbytes":
		return "must be at most " + param + " bytes"
	case "gte":
		return "must be greater than or equal to " + param
	case "lte":
		return "must be less than or equal to " + param
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}

// Package validation decodes JSON request bodies and checks their struct tags.
package validation

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"filevc/internal/errors"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 32 << 20

// validate caches struct metadata, so it is shared
var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Decode reads r's JSON body into a new T and validates it. Failures are
// validation errors whose details map field names to the failed rule.
func Decode[T any](w http.ResponseWriter, r *http.Request) (*T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.ValidationError("request body is required", nil)
		}
		return nil, errors.ValidationError("invalid request body", map[string]string{"error": err.Error()})
	}

	if err := Struct(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Struct validates v's tags
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.ValidationError(err.Error(), nil)
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}
	return errors.ValidationError("invalid request", details)
}

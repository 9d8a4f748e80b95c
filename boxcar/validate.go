package boxcar

import (
	"errors"
	"fmt"
	"reflect"

	"gopkg.in/go-playground/validator.v9"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("arg"); name != "" {
			return name
		}
		return field.Name
	})
}

// validateArgs turns the first violated rule of s into an InvalidArgumentError.
func validateArgs(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var violations validator.ValidationErrors
	if !errors.As(err, &violations) || len(violations) == 0 {
		return err
	}

	v := violations[0]
	reason := v.Tag()
	if v.Param() != "" {
		reason = fmt.Sprintf("%s=%s", v.Tag(), v.Param())
	}
	return &InvalidArgumentError{Field: v.Field(), Reason: "violates " + reason}
}

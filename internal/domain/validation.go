package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("register notblank validation: %v", err))
	}
	return v
}

// Validate checks the todo against its attribute constraints. It returns a
// *ValidationError describing every failed field, or nil.
func Validate(t Todo) error {
	err := validate.Struct(t)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &ValidationError{Todo: t}
	for _, fe := range fieldErrs {
		verr.Fields = append(verr.Fields, FieldError{
			Field:   attributeName(fe.Field()),
			Message: messageFor(fe),
		})
	}
	return verr
}

func attributeName(structField string) string {
	switch structField {
	case "Title":
		return "title"
	case "Status":
		return "status"
	default:
		return structField
	}
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required":
		return "can't be blank"
	case "max":
		return fmt.Sprintf("is too long (maximum is %s characters)", fe.Param())
	case "oneof":
		return "is not included in the list"
	default:
		return "is invalid"
	}
}

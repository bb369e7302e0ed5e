package impl

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	domainerrors "reviewhub/internal/domain/errors"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// inputValidator turns struct tag violations into client facing messages.
type inputValidator struct {
	validate *validator.Validate
}

func newInputValidator() *inputValidator {
	return &inputValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// problems returns one message per violated field rule, or nil.
func (v *inputValidator) problems(input any) []string {
	err := v.validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldMessage(fe))
	}

	return messages
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", fe.Field())
	case "email":
		return fmt.Sprintf("The %s field is not a valid e-mail address.", fe.Field())
	case "max":
		return fmt.Sprintf("The field %s must be a string with a maximum length of %s.", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("The %s field is not a valid fully-qualified http or https URL.", fe.Field())
	case "eqfield":
		return fmt.Sprintf("The %s and %s fields do not match.", fe.Param(), fe.Field())
	default:
		return fmt.Sprintf("The %s field is invalid.", fe.Field())
	}
}

// validationError wraps problems in ErrValidationFailed, or returns nil when there are none.
func validationError(problems ...string) error {
	if len(problems) == 0 {
		return nil
	}

	return domainerrors.ErrValidationFailed.WithErrors(problems...)
}

// parseCallbackURI accepts absolute http(s) URLs whose host is allowed.
// An empty allow-list accepts any host. A fragment is kept and stays after
// the query added to the link.
func parseCallbackURI(raw string, allowedHosts []string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, validationError("The ClientURI field is not a valid fully-qualified http or https URL.")
	}
	if u.User != nil {
		return nil, validationError("The ClientURI field must not contain credentials.")
	}

	if len(allowedHosts) > 0 && !slices.ContainsFunc(allowedHosts, func(h string) bool {
		return strings.EqualFold(h, u.Hostname()) || strings.EqualFold(h, u.Host)
	}) {
		return nil, validationError(fmt.Sprintf("The host '%s' is not an allowed callback host.", u.Host))
	}

	return u, nil
}

package service

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/pass-request-client/pkg/errors"
)

// Validation messages surfaced to users.
const (
	MsgInvalidEmail       = "enter a valid email"
	MsgPasswordMismatch   = "passwords do not match"
	MsgInvalidGroupNumber = "invalid group number"
	MsgNoAttachments      = "attach at least one photo"
	MsgDateRange          = "end date must not be before start date"
	MsgExtendNotLater     = "new end date must be after the current end date"
	MsgDeleteNotPending   = "only pending requests can be deleted"
	MsgExtendNotAccepted  = "only accepted requests can be extended"
)

var emailPattern = regexp.MustCompile(`^[A-Z0-9a-z._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,64}$`)

var fieldNames = map[string]string{
	"FullName":        "full name",
	"Email":           "email",
	"Password":        "password",
	"ConfirmPassword": "password confirmation",
	"GroupNumber":     "group number",
	"DateStart":       "start date",
	"DateEnd":         "end date",
	"Message":         "message",
	"Images":          "photos",
}

// tag precedence when several fields fail at once
var tagOrder = map[string]int{
	"required":  0,
	"passemail": 1,
	"eqfield":   2,
	"gt":        3,
	"min":       4,
}

// NewValidator returns a validator with the client's custom rules.
func NewValidator() *validator.Validate {
	v := validator.New()
	registerRules(v)
	return v
}

func registerRules(v *validator.Validate) {
	_ = v.RegisterValidation("passemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
}

// ValidEmail reports whether email has the accepted shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ParseGroupNumber converts form input into an optional group number.
func ParseGroupNumber(text string) (*int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil || n <= 0 {
		return nil, appErrors.Validation(MsgInvalidGroupNumber)
	}
	return &n, nil
}

func emptyFieldMessage(field string) string {
	return fmt.Sprintf("field '%s' must not be empty", displayName(field))
}

func displayName(field string) string {
	if name, ok := fieldNames[field]; ok {
		return name
	}
	return field
}

func translateValidation(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, 0, appErrors.ErrValidation.Message)
	}

	fe := fieldErrs[0]
	for _, candidate := range fieldErrs[1:] {
		if rank(candidate.Tag()) < rank(fe.Tag()) {
			fe = candidate
		}
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = emptyFieldMessage(fe.Field())
	case "passemail", "email":
		msg = MsgInvalidEmail
	case "eqfield":
		msg = MsgPasswordMismatch
	case "gt":
		if fe.Field() == "GroupNumber" {
			msg = MsgInvalidGroupNumber
		} else {
			msg = fmt.Sprintf("field '%s' is out of range", displayName(fe.Field()))
		}
	case "min":
		if fe.Field() == "Images" {
			msg = MsgNoAttachments
		} else {
			msg = fmt.Sprintf("field '%s' is too short", displayName(fe.Field()))
		}
	case "max":
		msg = fmt.Sprintf("field '%s' is too long", displayName(fe.Field()))
	default:
		msg = fmt.Sprintf("field '%s' is invalid", displayName(fe.Field()))
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, 0, msg)
}

func rank(tag string) int {
	if r, ok := tagOrder[tag]; ok {
		return r
	}
	return len(tagOrder)
}

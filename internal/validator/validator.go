package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"guildchat-backend/internal/models"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._+-]*[a-zA-Z0-9])?@[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names instead of Go field names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "username", func(fl validator.FieldLevel) bool { return Username(fl.Field().String()) == nil })
	mustRegister(v, "email_address", func(fl validator.FieldLevel) bool { return Email(fl.Field().String()) == nil })
	mustRegister(v, "password", func(fl validator.FieldLevel) bool { return Password(fl.Field().String()) == nil })
	mustRegister(v, "channel_type", func(fl validator.FieldLevel) bool { return ChannelType(fl.Field().String()) == nil })

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// Struct validates a request body by its `validate` tags. Field errors come back as a
// map of json field name to the failed tag, any other error is returned as is.
func Struct(s any) (map[string]string, error) {
	err := validate.Struct(s)
	if err == nil {
		return nil, nil
	}

	var validateErrs validator.ValidationErrors
	if !errors.As(err, &validateErrs) {
		return nil, err
	}

	fields := make(map[string]string, len(validateErrs))
	for _, e := range validateErrs {
		fields[e.Field()] = e.Tag()
	}
	return fields, nil
}

func Email(email string) error {
	const maxlength = 64

	if len(email) > maxlength {
		return fmt.Errorf("long_email")
	}

	if !emailRegex.MatchString(email) {
		return fmt.Errorf("bad_format")
	}

	return nil
}

func Password(password string) error {
	length := len(password)
	if length < 6 {
		return fmt.Errorf("short_password")
	} else if length > 72 { // bcrypt ignores anything after 72 bytes
		return fmt.Errorf("long_password")
	}
	return nil
}

func Username(username string) error {
	length := utf8.RuneCountInString(username)
	if length < 6 {
		return fmt.Errorf("short_username")
	} else if length > 20 {
		return fmt.Errorf("long_username")
	}

	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("bad_format")
	}
	return nil
}

// ServerName returns the trimmed name.
func ServerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	length := utf8.RuneCountInString(name)
	if length < 3 {
		return "", fmt.Errorf("Server name must be at least 3 characters long")
	} else if length > 100 {
		return "", fmt.Errorf("Server name must be less than 100 characters")
	}
	return name, nil
}

// ChannelName returns the trimmed name.
func ChannelName(name string) (string, error) {
	name = strings.TrimSpace(name)
	length := utf8.RuneCountInString(name)
	if length == 0 {
		return "", fmt.Errorf("Channel name is required")
	} else if length > 100 {
		return "", fmt.Errorf("Channel name must be less than 100 characters")
	}
	return name, nil
}

func ChannelType(channelType string) error {
	switch channelType {
	case models.ChannelTypeText, models.ChannelTypeVoice:
		return nil
	}
	return fmt.Errorf("Valid channel type is required (text or voice)")
}

func Description(description string) error {
	if utf8.RuneCountInString(description) > 1024 {
		return fmt.Errorf("Description must be at most 1024 characters")
	}
	return nil
}

func Nickname(nickname string) error {
	if utf8.RuneCountInString(nickname) > 32 {
		return fmt.Errorf("Nickname must be at most 32 characters")
	}
	return nil
}

func DisplayName(displayName string) error {
	if utf8.RuneCountInString(displayName) > 32 {
		return fmt.Errorf("Display name must be at most 32 characters")
	}
	return nil
}

package validator_test

import (
	"fmt"
	"strings"
	"testing"

	"guildchat-backend/internal/validator"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		expectedError error
	}{
		// valid cases
		{
			name:          "Valid: Standard email",
			email:         "user@gmail.com",
			expectedError: nil,
		},
		{
			name:          "Valid: Email with plus sign in local part",
			email:         "user+tag@yahoo.co.uk",
			expectedError: nil,
		},
		{
			name:          "Valid: Any domain",
			email:         "first.last_name@wasistdas.com",
			expectedError: nil,
		},
		{
			name:          "Valid: Maximum length (64 chars)",
			email:         "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa@protonmail.com",
			expectedError: nil,
		},

		// too long
		{
			name:          "Error: Too long (67 characters)",
			email:         "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa@web.de",
			expectedError: fmt.Errorf("long_email"),
		},

		// bad format
		{
			name:          "Error: Missing @ sign",
			email:         "userexample.com",
			expectedError: fmt.Errorf("bad_format"),
		},
		{
			name:          "Error: Missing TLD",
			email:         "user@domain",
			expectedError: fmt.Errorf("bad_format"),
		},
		{
			name:          "Error: Local part starting with dot",
			email:         ".user@example.com",
			expectedError: fmt.Errorf("bad_format"),
		},
		{
			name:          "Error: Domain part ending with hyphen",
			email:         "user@example-.com",
			expectedError: fmt.Errorf("bad_format"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checkError(t, "Email", tc.email, validator.Email(tc.email), tc.expectedError)
		})
	}
}

func TestPassword(t *testing.T) {
	tests := []struct {
		name          string
		password      string
		expectedError error
	}{
		{
			name:          "Valid Password: Minimum Length",
			password:      "abcdef",
			expectedError: nil,
		},
		{
			name:          "Valid Password: Maximum Length",
			password:      strings.Repeat("a", 72),
			expectedError: nil,
		},
		{
			name:          "Error: Password Too Short",
			password:      "abc",
			expectedError: fmt.Errorf("short_password"),
		},
		{
			name:          "Error: Password Too Long",
			password:      strings.Repeat("a", 73),
			expectedError: fmt.Errorf("long_password"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checkError(t, "Password", tc.password, validator.Password(tc.password), tc.expectedError)
		})
	}
}

func TestUsername(t *testing.T) {
	tests := []struct {
		name          string
		username      string
		expectedError error
	}{
		{"Valid: 6 characters", "abcdef", nil},
		{"Valid: 20 characters", strings.Repeat("u", 20), nil},
		{"Valid: dots and underscores", "john.doe_99", nil},
		{"Error: 5 characters", "abcde", fmt.Errorf("short_username")},
		{"Error: 21 characters", strings.Repeat("u", 21), fmt.Errorf("long_username")},
		{"Error: whitespace", "john doe", fmt.Errorf("bad_format")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checkError(t, "Username", tc.username, validator.Username(tc.username), tc.expectedError)
		})
	}
}

func TestServerName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"Error: 2 characters", "ab", "", true},
		{"Valid: 3 characters", "abc", "abc", false},
		{"Valid: trimmed", "  my server  ", "my server", false},
		{"Error: whitespace padding doesn't count", "  ab  ", "", true},
		{"Valid: 100 characters", strings.Repeat("s", 100), strings.Repeat("s", 100), false},
		{"Error: 101 characters", strings.Repeat("s", 101), "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := validator.ServerName(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ServerName(%q) passed unexpectedly: got %q", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Errorf("ServerName(%q) failed unexpectedly: %v", tc.input, err)
				return
			}
			if got != tc.expected {
				t.Errorf("ServerName(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestChannelType(t *testing.T) {
	for _, valid := range []string{"text", "voice"} {
		if err := validator.ChannelType(valid); err != nil {
			t.Errorf("ChannelType(%q) failed unexpectedly: %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "video", "TEXT"} {
		if err := validator.ChannelType(invalid); err == nil {
			t.Errorf("ChannelType(%q) passed unexpectedly", invalid)
		}
	}
}

func TestStruct(t *testing.T) {
	type registration struct {
		Username string `json:"username" validate:"required,username"`
		Email    string `json:"email" validate:"required,email_address"`
		Password string `json:"password" validate:"required,password"`
	}

	fields, err := validator.Struct(registration{Username: "validuser", Email: "user@example.com", Password: "secret1"})
	if err != nil || fields != nil {
		t.Fatalf("Struct(valid) = %v, %v, want nil, nil", fields, err)
	}

	fields, err = validator.Struct(registration{Username: "abc", Email: "nope", Password: ""})
	if err != nil {
		t.Fatalf("Struct(invalid) returned error %v", err)
	}

	expected := map[string]string{
		"username": "username",
		"email":    "email_address",
		"password": "required",
	}
	for field, tag := range expected {
		if fields[field] != tag {
			t.Errorf("fields[%q] = %q, want %q", field, fields[field], tag)
		}
	}
}

func checkError(t *testing.T, fn string, input string, err error, expectedError error) {
	t.Helper()

	if expectedError == nil {
		if err != nil {
			t.Errorf("%s(%q) failed unexpectedly: got error %v, want nil", fn, input, err)
		}
		return
	}

	if err == nil {
		t.Errorf("%s(%q) passed unexpectedly: got nil, want error %v", fn, input, expectedError)
		return
	}

	if err.Error() != expectedError.Error() {
		t.Errorf("%s(%q) got error %q, want error %q", fn, input, err.Error(), expectedError.Error())
	}
}

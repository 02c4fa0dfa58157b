package credentials

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/alexjbarnes/nextcloud-links/internal/errors"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// fieldLabels are the user-facing names of the credential fields, in the
// order they are reported.
var fieldLabels = map[string]string{
	"BaseURL":  "url",
	"Username": "username",
	"Password": "password",
}

// Credentials is the account used to talk to the share server.
type Credentials struct {
	BaseURL  string `validate:"required,http_url"`
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// Normalized trims surrounding whitespace from the URL and username and
// drops trailing slashes from the URL. The password is kept verbatim.
func (c Credentials) Normalized() Credentials {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.Username = strings.TrimSpace(c.Username)

	return c
}

// MissingCredentialsError lists which credential fields are unset.
type MissingCredentialsError struct {
	Fields []string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("%s: missing %s", apperrors.ErrMissingCredentials, strings.Join(e.Fields, ", "))
}

func (e *MissingCredentialsError) Unwrap() error { return apperrors.ErrMissingCredentials }

// Validate checks that every field is set and the URL is http(s).
// Missing fields are reported together as a *MissingCredentialsError.
func Validate(c Credentials) error {
	c = c.Normalized()

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating credentials: %w", err)
	}

	var missing []string

	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fieldLabels[fe.StructField()])
		}
	}

	if len(missing) > 0 {
		return &MissingCredentialsError{Fields: missing}
	}

	return fmt.Errorf("%w: url %q is not an http(s) URL", apperrors.ErrInvalidCredentials, c.BaseURL)
}

package auth

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	usernameRe     = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	nameRe         = regexp.MustCompile(`^[a-zA-Z]+$`)
	passwordLower  = regexp.MustCompile(`[a-z]`)
	passwordUpper  = regexp.MustCompile(`[A-Z]`)
	passwordDigit  = regexp.MustCompile(`\d`)
	passwordSymbol = regexp.MustCompile(`[]["!@$%^&*(){}:;<>,.?/+_=|'~\\-]`)
)

const minPasswordLength = 6

// validateRegisterRequest checks the request field by field and returns a
// single error wrapping ErrValidationFailed that lists every violation.
func validateRegisterRequest(req RegisterRequest) error {
	var problems []string

	switch {
	case req.Username == "":
		problems = append(problems, "username must not be empty")
	case !usernameRe.MatchString(req.Username):
		problems = append(problems, "username must contain only digits and letters")
	}

	switch {
	case req.Password == "":
		problems = append(problems, "password must not be empty")
	case len(req.Password) < minPasswordLength:
		problems = append(problems, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	default:
		if !passwordLower.MatchString(req.Password) {
			problems = append(problems, "password must contain one or more lowercase letters")
		}
		if !passwordUpper.MatchString(req.Password) {
			problems = append(problems, "password must contain one or more capital letters")
		}
		if !passwordDigit.MatchString(req.Password) {
			problems = append(problems, "password must contain one or more digits")
		}
		if !passwordSymbol.MatchString(req.Password) {
			problems = append(problems, "password must contain one or more special characters")
		}
	}

	switch {
	case req.FirstName == "":
		problems = append(problems, "first name must not be empty")
	case !nameRe.MatchString(req.FirstName):
		problems = append(problems, "first name must contain only letters")
	}

	switch {
	case req.LastName == "":
		problems = append(problems, "last name must not be empty")
	case !nameRe.MatchString(req.LastName):
		problems = append(problems, "last name must contain only letters")
	}

	if req.PrimaryLocationID == "" {
		problems = append(problems, "primary location id must not be empty")
	} else if _, err := uuid.Parse(req.PrimaryLocationID); err != nil {
		problems = append(problems, "primary location id must be a valid uuid")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(problems, "; "))
	}
	return nil
}

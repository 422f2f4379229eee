package http

import (
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"cipe-auth/internal/domain"
)

const (
	passwordSpecials = "@#$%^&+=!"
	// bcrypt no admite más de 72 bytes.
	passwordMaxBytes = 72
)

var (
	namePattern     = regexp.MustCompile(`^[a-zA-Z0-9\s'-]{2,50}$`)
	registerOnce    sync.Once
	registerOnceErr error
)

// RegisterValidators agrega las reglas password, name y role al validador de gin.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		rules := map[string]validator.Func{
			"password": func(fl validator.FieldLevel) bool { return validPassword(fl.Field().String()) },
			"name":     func(fl validator.FieldLevel) bool { return namePattern.MatchString(fl.Field().String()) },
			"role": func(fl validator.FieldLevel) bool {
				r, ok := domain.ParseRole(fl.Field().String())
				return ok && r.SelfAssignable()
			},
		}
		for tag, fn := range rules {
			if err := v.RegisterValidation(tag, fn); err != nil {
				registerOnceErr = err
				return
			}
		}
	})
	return registerOnceErr
}

// validPassword exige 8 a 50 caracteres (y no más de passwordMaxBytes bytes)
// con mayúscula, minúscula, dígito y un símbolo de passwordSpecials.
func validPassword(p string) bool {
	if n := len([]rune(p)); n < 8 || n > 50 || len(p) > passwordMaxBytes {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range p {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return upper && lower && digit && special
}

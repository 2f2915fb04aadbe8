package validator

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits")

	// ErrInvalidLength indicates phone number length is not 10 digits
	ErrInvalidLength = errors.New("phone number must be exactly 10 digits")

	// ErrInvalidPrefix indicates phone number doesn't start with a mobile prefix
	ErrInvalidPrefix = errors.New("phone number must start with a Sri Lankan mobile prefix (070-079)")
)

var (
	digitsOnly = regexp.MustCompile(`^\d+$`)
	separators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "", ".", "")
)

// mobilePrefixes are the operator prefixes guides and travelers can be reached on
var mobilePrefixes = map[string]struct{}{
	"070": {}, "071": {}, "072": {}, "074": {}, "075": {},
	"076": {}, "077": {}, "078": {}, "079": {},
}

// NormalizePhone validates a Sri Lankan mobile number and returns it as 07XXXXXXXX.
// Accepts 0771234567, 077 123 4567, 077-123-4567, +94771234567.
func NormalizePhone(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := separators.Replace(phone)
	if strings.HasPrefix(sanitized, "94") && len(sanitized) == 11 {
		sanitized = "0" + sanitized[2:]
	}

	if !digitsOnly.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}
	if len(sanitized) != 10 {
		return "", ErrInvalidLength
	}
	if _, ok := mobilePrefixes[sanitized[:3]]; !ok {
		return "", ErrInvalidPrefix
	}
	return sanitized, nil
}

// RegisterPhoneTag adds the "lkphone" tag to a validator so request structs
// can declare `binding:"omitempty,lkphone"`.
func RegisterPhoneTag(v *validator.Validate) error {
	return v.RegisterValidation("lkphone", func(fl validator.FieldLevel) bool {
		_, err := NormalizePhone(fl.Field().String())
		return err == nil
	})
}

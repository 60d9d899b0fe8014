package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var roomKeyRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

func init() {
	MustRegisterGin("roomkey", ValidateRoomKey)
}

// ValidateRoomKey validates room key format: 3-64 characters, alphanumeric with hyphens and underscores
func ValidateRoomKey(fl validator.FieldLevel) bool {
	return roomKeyRegex.MatchString(fl.Field().String())
}

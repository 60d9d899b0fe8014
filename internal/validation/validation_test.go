package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// ValidationTestSuite is the test suite for validation package
type ValidationTestSuite struct {
	suite.Suite
	validator *validator.Validate
}

// SetupTest runs before each test
func (s *ValidationTestSuite) SetupTest() {
	s.validator = validator.New()
}

// TestValidationTestSuite runs the test suite
func TestValidationTestSuite(t *testing.T) {
	suite.Run(t, new(ValidationTestSuite))
}

// TestValidateRoomKey tests the custom roomkey validation tag
func (s *ValidationTestSuite) TestValidateRoomKey() {
	// Register the custom validation
	err := Register(s.validator, "roomkey", ValidateRoomKey)
	s.Require().NoError(err)

	tests := []struct {
		name    string
		roomKey string
		wantErr bool
	}{
		{
			name:    "valid alphanumeric",
			roomKey: "room123",
			wantErr: false,
		},
		{
			name:    "valid with hyphens",
			roomKey: "room-123",
			wantErr: false,
		},
		{
			name:    "valid with underscores",
			roomKey: "room_123",
			wantErr: false,
		},
		{
			name:    "valid mixed",
			roomKey: "My-Room_123",
			wantErr: false,
		},
		{
			name:    "valid minimum length",
			roomKey: "abc",
			wantErr: false,
		},
		{
			name:    "invalid - too short (2 chars)",
			roomKey: "ab",
			wantErr: true,
		},
		{
			name:    "invalid - special characters (@)",
			roomKey: "room@123",
			wantErr: true,
		},
		{
			name:    "invalid - spaces",
			roomKey: "room 123",
			wantErr: true,
		},
		{
			name:    "invalid - empty string",
			roomKey: "",
			wantErr: true,
		},
		{
			name:    "invalid - dots",
			roomKey: "room.123",
			wantErr: true,
		},
		{
			name:    "invalid - slash",
			roomKey: "room/123",
			wantErr: true,
		},
		{
			name:    "valid - all uppercase",
			roomKey: "ROOM123",
			wantErr: false,
		},
		{
			name:    "valid - numbers only",
			roomKey: "12345",
			wantErr: false,
		},
		{
			name:    "valid - hyphens only with alphanumeric",
			roomKey: "a-b-c-d",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			type TestStruct struct {
				RoomKey string `validate:"roomkey"`
			}

			testData := TestStruct{RoomKey: tt.roomKey}
			err := s.validator.Struct(testData)

			if tt.wantErr {
				s.Require().Error(err, "Expected validation error for roomKey: %s", tt.roomKey)
			} else {
				s.Require().NoError(err, "Expected no validation error for roomKey: %s", tt.roomKey)
			}
		})
	}
}

// TestValidateRoomKeyRegex tests the regex pattern directly
func (s *ValidationTestSuite) TestValidateRoomKeyRegex() {
	s.True(roomKeyRegex.MatchString("abc"))
	s.True(roomKeyRegex.MatchString("Room-123_test"))
	s.True(roomKeyRegex.MatchString("1234567890123456789012345678901234567890123456789012345678901234"))

	s.False(roomKeyRegex.MatchString("ab"))
	s.False(roomKeyRegex.MatchString("12345678901234567890123456789012345678901234567890123456789012345"))
	s.False(roomKeyRegex.MatchString("room@123"))
	s.False(roomKeyRegex.MatchString(""))
}

// TestRegister tests the Register function
func (s *ValidationTestSuite) TestRegister() {
	customValidator := func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "test"
	}

	err := Register(s.validator, "custom", customValidator)
	s.Require().NoError(err)

	type TestStruct struct {
		Field string `validate:"custom"`
	}

	// Test valid case
	err = s.validator.Struct(TestStruct{Field: "test"})
	s.Require().NoError(err)

	// Test invalid case
	err = s.validator.Struct(TestStruct{Field: "invalid"})
	s.Require().Error(err)
}

// TestRegisterAlias tests the RegisterAlias function
func (s *ValidationTestSuite) TestRegisterAlias() {
	RegisterAlias(s.validator, "testalias", "required,min=5")

	type TestStruct struct {
		Field string `validate:"testalias"`
	}

	// Test valid case
	err := s.validator.Struct(TestStruct{Field: "hello"})
	s.Require().NoError(err)

	// Test invalid case - too short
	err = s.validator.Struct(TestStruct{Field: "hi"})
	s.Require().Error(err)

	// Test invalid case - empty
	err = s.validator.Struct(TestStruct{Field: ""})
	s.Require().Error(err)
}

// TestFormatValidationError tests the FormatValidationError utility
func (s *ValidationTestSuite) TestFormatValidationError() {
	type TestStruct struct {
		Email string `validate:"required,email"`
		Age   int    `validate:"required,min=18,max=120"`
		Name  string `validate:"required,min=2"`
	}

	// Test with validation errors
	testData := TestStruct{
		Email: "invalid-email",
		Age:   10,
		Name:  "A",
	}

	err := s.validator.Struct(testData)
	s.Require().Error(err)

	formatted := FormatValidationError(err)
	s.NotEmpty(formatted)
	s.Len(formatted, 3, "Expected 3 validation errors")

	// Check that all fields are present
	fields := make(map[string]bool)
	for _, e := range formatted {
		fields[e.Field] = true
		s.NotEmpty(e.Message)
	}

	s.True(fields["Email"])
	s.True(fields["Age"])
	s.True(fields["Name"])
}

// TestFormatValidationErrorNoError tests FormatValidationError with no errors
func (s *ValidationTestSuite) TestFormatValidationErrorNoError() {
	type TestStruct struct {
		Email string `validate:"required,email"`
	}

	testData := TestStruct{Email: "valid@example.com"}
	err := s.validator.Struct(testData)
	s.Require().NoError(err)

	formatted := FormatValidationError(err)
	s.Empty(formatted)
}

// TestFormatValidationErrorNonValidationError tests FormatValidationError with non-validation errors
func (s *ValidationTestSuite) TestFormatValidationErrorNonValidationError() {
	// Pass a non-validation error
	formatted := FormatValidationError(assert.AnError)
	s.Empty(formatted)
}

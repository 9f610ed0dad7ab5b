package domain

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	appErrors "aperture-backend/pkg/errors"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// ProfilePatch is the caller-supplied update for a profile.
// Nil fields are left untouched.
type ProfilePatch struct {
	Username            *string `json:"username,omitempty" validate:"omitempty,handle"`
	FullName            *string `json:"full_name,omitempty" validate:"omitempty,max=100"`
	Bio                 *string `json:"bio,omitempty" validate:"omitempty,max=150"`
	AvatarURL           *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Website             *string `json:"website,omitempty" validate:"omitempty,url"`
	OnboardingCompleted *bool   `json:"onboarding_completed,omitempty"`
}

// NewPost is the caller-supplied input for creating a post
type NewPost struct {
	ImageExt string  `validate:"required,alphanum,max=8"`
	Caption  *string `validate:"omitempty,max=2200"`
	Location *string `validate:"omitempty,max=100"`
}

// NewComment is the caller-supplied input for creating a comment
type NewComment struct {
	Content string `validate:"required,max=2200"`
}

// NewValidator builds the validator with the handle rule registered
func NewValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for an empty tag name.
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateInput runs struct validation and converts failures to typed errors
func ValidateInput(v *validator.Validate, input any) error {
	if err := v.Struct(input); err != nil {
		return appErrors.NewValidation(err.Error())
	}
	return nil
}

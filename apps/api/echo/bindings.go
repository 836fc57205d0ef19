package echoapi

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ecolemoderne/campus/core/user"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	AdminLoginResponse struct {
		Token     string    `json:"token"`
		User      user.User `json:"user"`
		SessionID string    `json:"sessionId"`
		ExpiresAt time.Time `json:"expiresAt"`
	}

	BootstrapCreatedResponse struct {
		Success           bool      `json:"success"`
		Message           string    `json:"message"`
		Admin             user.User `json:"admin"`
		BootstrapDisabled bool      `json:"bootstrap_disabled"`
	}

	LogoutResponse struct {
		Message       string `json:"message"`
		SessionClosed bool   `json:"session_closed"`
	}
)

func (r *LoginRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

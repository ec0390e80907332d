package handler

import (
	"wishguard/internal/antibot/models"
	"wishguard/internal/jwttoken"
	"wishguard/internal/users"
)

type SendOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
	CaptchaID   string `json:"captcha_id,omitempty"`
}

type SendOTPResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ExpiresIn      int    `json:"expires_in,omitempty"`
	RequireCaptcha bool   `json:"require_captcha,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
}

type RegisterRequest struct {
	PhoneNumber string            `json:"phone_number"`
	OTPCode     string            `json:"otp_code"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	Email       string            `json:"email"`
	Behavior    *models.Telemetry `json:"behavior,omitempty"`
}

type UserView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
}

type TokensView struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type RegisterResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	User    UserView   `json:"user"`
	Tokens  TokensView `json:"tokens"`
}

func newUserView(u *users.User) UserView {
	return UserView{
		ID:          u.ID,
		Username:    u.PhoneNumber,
		PhoneNumber: u.PhoneNumber,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
	}
}

func newTokensView(p *jwttoken.Pair) TokensView {
	return TokensView{Access: p.Access, Refresh: p.Refresh}
}

type SendEmailRequest struct {
	Email            string `json:"email"`
	VerificationType string `json:"verification_type"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

type EmailResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Email     string `json:"email,omitempty"`
	ExpiresIn int    `json:"expires_in,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

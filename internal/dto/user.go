package dto

import "github.com/yukikurage/busybee/internal/safety"

type RegisterRequest struct {
	Username *safety.Username `json:"username"`
	Password *safety.Password `json:"password"`
}

type RegisterResponse struct {
	RedirectTo string `json:"redirectTo"`
}

package auth

type LoginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutDTO optionally names the refresh token to revoke with the access token.
type LogoutDTO struct {
	RefreshToken string `json:"refresh_token"`
}

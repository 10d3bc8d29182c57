package models

import "github.com/golang-jwt/jwt/v5"

// Claims is the payload of bearer tokens issued by the stub server.
type Claims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

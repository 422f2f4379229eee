package domain

import "time"

// AccessClaims es lo que el transporte obtiene de un access token verificado.
type AccessClaims struct {
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

package domain

import "strings"

// Role es el conjunto cerrado de roles de la plataforma.
type Role string

const (
	RoleChild  Role = "ENFANT"
	RoleAuthor Role = "AUTEUR"
	RoleEditor Role = "EDITEUR"
	RoleAdmin  Role = "ADMIN"
)

// LowestRole es el rol de menor privilegio; se verifica al registrarse.
const LowestRole = RoleChild

// HighestRole nunca puede autoasignarse.
const HighestRole = RoleAdmin

// ParseRole valida un rol recibido desde fuera.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleChild, RoleAuthor, RoleEditor, RoleAdmin:
		return r, true
	}
	return "", false
}

// SelfAssignable indica si el rol puede elegirse al registrarse.
func (r Role) SelfAssignable() bool {
	switch r {
	case RoleChild, RoleAuthor, RoleEditor:
		return true
	}
	return false
}

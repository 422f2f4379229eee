package http

import (
	"net/http"
	"strings"
	"time"
)

const refreshCookieName = "refresh_token"

// CookieConfig define los atributos de la cookie de refresco.
type CookieConfig struct {
	Secure             bool
	SameSite           http.SameSite
	Path               string
	StaySignedInMaxAge time.Duration
}

// ParseSameSite acepta Strict, Lax o None; cualquier otro valor es Strict.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

// refreshCookie sin staySignedIn es de sesión: se borra al cerrar el navegador.
func (cfg CookieConfig) refreshCookie(value string, staySignedIn bool) *http.Cookie {
	cookie := &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     cfg.path(),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}
	if staySignedIn {
		cookie.MaxAge = int(cfg.StaySignedInMaxAge.Seconds())
	}
	return cookie
}

func (cfg CookieConfig) expiredRefreshCookie() *http.Cookie {
	return &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     cfg.path(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}
}

func (cfg CookieConfig) path() string {
	if cfg.Path == "" {
		return "/refresh"
	}
	return cfg.Path
}

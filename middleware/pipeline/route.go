package pipeline

import (
	"path"
	"strings"
)

const (
	protectedPrefix = "/dashboard"
	apiPrefix       = "/api"
	authAPIPrefix   = "/api/auth"
	signInPath      = "/sign-in"
	signUpPath      = "/sign-up"
)

// Route é derivada do path; não é guardada em lugar nenhum.
type Route struct {
	API       bool
	Auth      bool
	Protected bool
}

// Classify espera um path já passado por CleanPath.
func Classify(p string) Route {
	return Route{
		API:       strings.HasPrefix(p, apiPrefix),
		Auth:      strings.HasPrefix(p, authAPIPrefix) || p == signInPath || p == signUpPath,
		Protected: strings.HasPrefix(p, protectedPrefix),
	}
}

// CleanPath resolve "..", "." e barras repetidas, para que "//dashboard" e
// "/x/../dashboard" caiam na mesma regra que "/dashboard". A barra final é
// mantida.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}

// Label é um rótulo de baixa cardinalidade para métricas.
func (r Route) Label() string {
	switch {
	case r.API && r.Auth:
		return "auth_api"
	case r.API:
		return "api"
	case r.Auth:
		return "auth_page"
	case r.Protected:
		return "protected"
	default:
		return "page"
	}
}

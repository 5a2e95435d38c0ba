package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/authz"
)

// AuthHandler validates the bearer tokens issued by the identity provider.
type AuthHandler struct {
	jwtSecret string
	logger    zerolog.Logger
}

func NewAuthHandler(jwtSecret string, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("handler", "auth").Logger(),
	}
}

// SignToken issues an HS256 token carrying id. It backs local tooling and tests;
// production tokens come from the identity provider.
func SignToken(secret string, id authz.Identity, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        id.Username,
		"org_id":     id.OrgID,
		"account_id": id.AccountID,
		"username":   id.Username,
		"roles":      id.Roles,
		"exp":        time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func (h *AuthHandler) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
			return
		}
		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			h.logger.Debug().Err(err).Msg("rejected bearer token")
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !claims.VerifyExpiresAt(time.Now().Unix(), true) {
			http.Error(w, "Token expired", http.StatusUnauthorized)
			return
		}
		roles, ok := extractRolesFromClaims(claims)
		if !ok {
			http.Error(w, "Invalid role claim", http.StatusUnauthorized)
			return
		}

		id := authz.Identity{
			OrgID:     stringClaim(claims, "org_id"),
			AccountID: stringClaim(claims, "account_id"),
			Username:  stringClaim(claims, "username"),
			Roles:     roles,
		}
		if id.Username == "" {
			id.Username = stringClaim(claims, "sub")
		}
		if id.OrgID == "" && !id.HasRole(authz.RolePlatformAdmin) {
			http.Error(w, "Missing org claim", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(authz.WithIdentity(r.Context(), id)))
	})
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return strings.TrimSpace(v)
}

// extractRolesFromClaims accepts a roles array or a single role string. A
// missing claim means no roles.
func extractRolesFromClaims(claims jwt.MapClaims) ([]string, bool) {
	rawRoles, ok := claims["roles"]
	if !ok || rawRoles == nil {
		return nil, true
	}

	var roles []string
	switch v := rawRoles.(type) {
	case []interface{}:
		for _, val := range v {
			str, ok := val.(string)
			if !ok {
				return nil, false
			}
			roles = append(roles, str)
		}
	case []string:
		roles = append(roles, v...)
	case string:
		roles = []string{v}
	default:
		return nil, false
	}
	return roles, true
}

package backendstub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lestrrat-go/jwx/jwk"
)

type contextKey string

// userClaimsKey is the key used to store the access token claims in the request context.
const userClaimsKey contextKey = "user_claims"

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var errWrongTokenType = errors.New("token has wrong type")

// Verifier checks tokens against the public half of the signing set.
type Verifier struct {
	keys   jwk.Set
	logger *slog.Logger
}

func NewVerifier(publicKeys jwk.Set, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{keys: publicKeys, logger: logger}
}

// Parse validates signature and expiry and checks the token_type claim.
func (v *Verifier) Parse(tokenString, tokenType string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, v.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodES256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	if claims["token_type"] != tokenType {
		return nil, fmt.Errorf("%w: want %s", errWrongTokenType, tokenType)
	}
	return claims, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	keyID, ok := token.Header["kid"].(string)
	if !ok {
		return nil, fmt.Errorf("expecting JWT header to have 'kid'")
	}

	verificationKeyID := keyID
	if strings.HasPrefix(keyID, privateKeyPrefix) {
		verificationKeyID = publicKeyPrefix + strings.TrimPrefix(keyID, privateKeyPrefix)
	}

	key, found := v.keys.LookupKeyID(verificationKeyID)
	if !found {
		return nil, fmt.Errorf("unable to find key with ID '%s'", verificationKeyID)
	}

	var pubKey interface{}
	if err := key.Raw(&pubKey); err != nil {
		return nil, fmt.Errorf("failed to get raw public key: %w", err)
	}
	return pubKey, nil
}

// expiredOnly reports whether err says nothing worse than "expired".
func expiredOnly(err error) bool {
	var validationErr *jwt.ValidationError
	if !errors.As(err, &validationErr) {
		return false
	}
	return validationErr.Errors&jwt.ValidationErrorExpired != 0 &&
		(validationErr.Errors&^jwt.ValidationErrorExpired) == 0
}

// jwtMiddleware accepts a bearer access token minted in the current epoch
// and stores its claims in the request context.
func (s *Server) jwtMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSON(w, http.StatusUnauthorized, detailResponse{
				Detail: "Authentication credentials were not provided.",
			})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			writeJSON(w, http.StatusUnauthorized, detailResponse{
				Detail: "Authorization header must contain two space-delimited values",
				Code:   "bad_authorization_header",
			})
			return
		}

		claims, err := s.verifier.Parse(tokenString, tokenTypeAccess)
		if err != nil {
			if expiredOnly(err) {
				s.logger.Debug("access token expired")
			} else {
				s.logger.Debug("access token rejected", "error", err)
			}
			writeTokenNotValid(w)
			return
		}

		if !s.currentEpoch(claims) {
			s.logger.Debug("access token from a previous epoch")
			writeTokenNotValid(w)
			return
		}

		ctx := context.WithValue(r.Context(), userClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// claimsFromContext returns the claims stored by jwtMiddleware.
func claimsFromContext(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(userClaimsKey).(jwt.MapClaims)
	return claims, ok
}

func userIDOf(claims jwt.MapClaims) (int, bool) {
	id, ok := claims["user_id"].(float64)
	return int(id), ok
}

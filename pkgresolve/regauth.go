package pkgresolve

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/coreruntime/kernel/kerrors"
)

// RegistryToken is a decoded bearer credential for a private registry: an
// HMAC-signed claims set, narrowed to the two fields a registry client
// actually needs to decide whether to attach or refresh a token.
type RegistryToken struct {
	Subject string
	Expires time.Time
	raw     string
}

// ParseRegistryToken verifies tokenStr against secret and extracts its
// subject/expiry claims. Only HMAC signing methods are accepted; any
// other alg in the token header is rejected before the claims are read.
// Time-based claims are not enforced here: an expired but correctly signed
// token parses, and Expired reports whether its exp has passed.
func ParseRegistryToken(tokenStr, secret string) (*RegistryToken, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, err := parser.Parse(tokenStr, func(tk *jwt.Token) (interface{}, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tk.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindResolution, err, "parse registry token")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, kerrors.New(kerrors.KindResolution, "invalid registry token")
	}

	rt := &RegistryToken{raw: tokenStr}
	if sub, ok := claims["sub"].(string); ok {
		rt.Subject = sub
	}
	if exp, ok := claims["exp"].(float64); ok {
		rt.Expires = time.Unix(int64(exp), 0)
	}
	return rt, nil
}

// Expired reports whether the token's exp claim has already passed, the
// check a RegistryClient makes before attaching Authorization to a request
// rather than after the registry rejects it.
func (t *RegistryToken) Expired() bool {
	return !t.Expires.IsZero() && t.Expires.Before(time.Now())
}

// Bearer formats the token for an Authorization header.
func (t *RegistryToken) Bearer() string { return "Bearer " + t.raw }

package cluster

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// joinClaims binds a join token to the address of the node it was minted
// for (the one being connected to), so a captured token cannot be replayed
// against a different receiving node.
type joinClaims struct {
	Addr string `json:"addr"`
	jwt.RegisteredClaims
}

func (r *Runtime) mintToken(remoteAddr string) (string, error) {
	if r.JoinSecret == "" {
		return "", nil
	}
	claims := joinClaims{
		Addr: remoteAddr,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   r.SelfAddr,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * time.Second)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(r.JoinSecret))
}

func (r *Runtime) verifyToken(token string) error {
	if r.JoinSecret == "" {
		return nil
	}
	if token == "" {
		return fmt.Errorf("cluster: join token required")
	}
	claims := &joinClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(r.JoinSecret), nil
	})
	if err != nil || !parsed.Valid {
		return fmt.Errorf("cluster: invalid join token: %w", err)
	}
	if claims.Addr != r.SelfAddr {
		return fmt.Errorf("cluster: join token minted for a different node")
	}
	return nil
}

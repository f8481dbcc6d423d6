package ghost

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	adminAudience  = "/admin/"
	adminTokenTTL  = 5 * time.Minute
	authScheme     = "Ghost"
	adminKeyFormat = "<id>:<hex secret>"
)

// AdminKey is a parsed Admin API key.
type AdminKey struct {
	ID     string
	Secret []byte
}

// ParseAdminKey splits an Admin API key of the form "<id>:<hex secret>".
func ParseAdminKey(raw string) (AdminKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AdminKey{}, errors.New("ghost: admin API key is empty")
	}
	id, secretHex, ok := strings.Cut(raw, ":")
	id = strings.TrimSpace(id)
	secretHex = strings.TrimSpace(secretHex)
	if !ok || id == "" || secretHex == "" {
		return AdminKey{}, fmt.Errorf("ghost: admin API key must have the form %s", adminKeyFormat)
	}
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return AdminKey{}, fmt.Errorf("ghost: admin API key secret is not hex: %w", err)
	}
	return AdminKey{ID: id, Secret: secret}, nil
}

// Token signs a short-lived Admin API token issued at now.
func (k AdminKey) Token(now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(adminTokenTTL).Unix(),
		"aud": adminAudience,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = k.ID

	signed, err := token.SignedString(k.Secret)
	if err != nil {
		return "", fmt.Errorf("ghost: sign admin token: %w", err)
	}
	return signed, nil
}

// AuthorizationHeader returns the Authorization header value for the Admin API.
func (k AdminKey) AuthorizationHeader(now time.Time) (string, error) {
	token, err := k.Token(now)
	if err != nil {
		return "", err
	}
	return authScheme + " " + token, nil
}

package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret = errors.New("jwt: secret vacío")
	ErrInvalidToken  = errors.New("jwt: token inválido")
	ErrExpiredToken  = errors.New("jwt: token expirado")
)

// Identity es quien firma los movimientos del libro: el usuario, su empresa y su rol.
type Identity struct {
	UserID    string
	CompanyID string
	Role      string
}

// Claims el usuario viaja en Subject; empresa y rol como claims propios.
type Claims struct {
	jwt.RegisteredClaims
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
}

// Signer emite y verifica tokens HS256 de un único issuer.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner falla si el secret está vacío. Un ttl <= 0 emite tokens ya vencidos.
func NewSigner(secret, issuer string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Signer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Sign emite un token para id.
func (s *Signer) Sign(id Identity) (string, error) {
	if id.UserID == "" {
		return "", fmt.Errorf("%w: user_id requerido", ErrInvalidToken)
	}
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		CompanyID: id.CompanyID,
		Role:      id.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify valida firma, issuer y vencimiento. Los errores envuelven ErrExpiredToken o ErrInvalidToken.
func (s *Signer) Verify(tokenString string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Identity{}, fmt.Errorf("%w: %v", ErrExpiredToken, err)
	case err != nil:
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case !token.Valid || claims.Subject == "":
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.Subject, CompanyID: claims.CompanyID, Role: claims.Role}, nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetk3436/routerwatch/internal/crypto"
	"github.com/ahmetk3436/routerwatch/internal/routeros"
	"github.com/golang-jwt/jwt/v5"
)

const (
	SessionTTL      = 24 * time.Hour
	MinSecretLength = 32
)

var (
	ErrSecretTooShort = fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	ErrInvalidSession = errors.New("invalid or expired session")
)

// Error wraps every login or verification failure. The cause stays
// reachable through errors.Is.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

type Claims struct {
	Host              string `json:"host"`
	User              string `json:"user"`
	EncryptedPassword string `json:"encrypted_password"`
	Port              int    `json:"port"`
	jwt.RegisteredClaims
}

type Acquirer interface {
	Acquire(ctx context.Context, cred routeros.Credential) (*routeros.Conn, error)
}

// Authenticator proves device credentials and mints stateless session
// tokens that carry the encrypted device password.
type Authenticator struct {
	acquirer  Acquirer
	encryptor *crypto.Encryptor
	secret    []byte
	ttl       time.Duration
	now       func() time.Time
}

func New(acquirer Acquirer, signingSecret, encryptionKey string) (*Authenticator, error) {
	if len(signingSecret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	enc, err := crypto.NewEncryptor(encryptionKey)
	if err != nil {
		return nil, err
	}
	return &Authenticator{
		acquirer:  acquirer,
		encryptor: enc,
		secret:    []byte(signingSecret),
		ttl:       SessionTTL,
		now:       time.Now,
	}, nil
}

// Login forces a real connection attempt and returns a signed token.
func (a *Authenticator) Login(ctx context.Context, cred routeros.Credential) (string, error) {
	if cred.Port <= 0 {
		cred.Port = routeros.DefaultPort
	}
	if _, err := a.acquirer.Acquire(ctx, cred); err != nil {
		return "", &Error{Op: "login", Err: err}
	}
	token, err := a.Sign(cred)
	if err != nil {
		return "", &Error{Op: "login", Err: err}
	}
	return token, nil
}

func (a *Authenticator) Sign(cred routeros.Credential) (string, error) {
	encrypted, err := a.encryptor.Encrypt(cred.Password)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt password: %w", err)
	}

	now := a.now()
	claims := &Claims{
		Host:              cred.Host,
		User:              cred.User,
		EncryptedPassword: encrypted,
		Port:              cred.Port,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.Identity(),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify checks signature and expiry and reconstructs the credential.
func (a *Authenticator) Verify(token string) (routeros.Credential, error) {
	if token == "" {
		return routeros.Credential{}, &Error{Op: "verify", Err: ErrInvalidSession}
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid {
		return routeros.Credential{}, &Error{Op: "verify", Err: ErrInvalidSession}
	}

	password, err := a.encryptor.Decrypt(claims.EncryptedPassword)
	if err != nil {
		return routeros.Credential{}, &Error{Op: "verify", Err: ErrInvalidSession}
	}

	cred := routeros.Credential{
		Host:     claims.Host,
		User:     claims.User,
		Password: password,
		Port:     claims.Port,
	}
	if err := cred.Validate(); err != nil {
		return routeros.Credential{}, &Error{Op: "verify", Err: err}
	}
	return cred, nil
}

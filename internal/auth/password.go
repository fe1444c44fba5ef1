package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the minimum length accepted when hashing a new password.
const MinPasswordLength = 8

var (
	ErrInvalidPassword  = errors.New("invalid password")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password exceeds maximum length of 72 bytes")
	ErrUnsupportedHash  = errors.New("unsupported password hash format")
)

// PasswordVerifier checks a plaintext password against a stored hash.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, plain, hash string) (bool, error)
}

// HashVerifier accepts bcrypt hashes and legacy hex-encoded SHA-256 digests.
type HashVerifier struct{}

func (HashVerifier) VerifyPassword(_ context.Context, plain, hash string) (bool, error) {
	switch {
	case hash == "":
		return false, nil
	case strings.HasPrefix(hash, "$2"):
		err := CheckPassword(plain, hash)
		if errors.Is(err, ErrInvalidPassword) {
			return false, nil
		}
		return err == nil, err
	case isSHA256Hex(hash):
		sum := sha256.Sum256([]byte(plain))
		expected := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(hash))) == 1, nil
	default:
		return false, ErrUnsupportedHash
	}
}

func isSHA256Hex(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// HashPassword creates a bcrypt hash of the password.
func HashPassword(password string, cost int) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	// bcrypt has a 72-byte limit
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a password with its bcrypt hash.
func CheckPassword(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return err
	}
	return nil
}

// GenerateSessionSecret creates a random 32-byte secret for cookie signing.
func GenerateSessionSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

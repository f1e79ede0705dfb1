package auth

import (
	"crypto/rand"
	"errors"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const passwordCharPool = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789@#$%&*()_-+=!"

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with a stored bcrypt hash.
// The comparison is constant-time with respect to the hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// GeneratePassword returns a random password of the requested length,
// minimum 8. Used when an administrator creates an account without an
// initial password; the result is mailed to the user.
func GeneratePassword(length int) (string, error) {
	if length < 8 {
		length = 8
	}
	pool := big.NewInt(int64(len(passwordCharPool)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, pool)
		if err != nil {
			return "", err
		}
		buf[i] = passwordCharPool[n.Int64()]
	}
	return string(buf), nil
}

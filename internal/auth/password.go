package auth

import (
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 200

	// Cost matches the hashes already in the users table.
	Cost = bcrypt.DefaultCost

	// bcrypt only reads the first 72 bytes of its input.
	maxBcryptBytes = 72
)

// bcryptInput truncates plain to the bytes bcrypt actually hashes, so
// passwords up to MaxPasswordLength are accepted instead of failing
// with bcrypt.ErrPasswordTooLong.
func bcryptInput(plain string) []byte {
	b := []byte(plain)
	if len(b) > maxBcryptBytes {
		b = b[:maxBcryptBytes]
	}
	return b
}

func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(bcryptInput(plain), Cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(plain)) == nil
}

// LongEnough reports whether plain meets the minimum length in characters.
func LongEnough(plain string) bool {
	return utf8.RuneCountInString(plain) >= MinPasswordLength
}

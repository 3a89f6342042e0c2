package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost is deliberately above the library default. Hashing has to be
// expensive enough to resist offline brute force while staying within an
// acceptable request budget.
const bcryptCost = 12

// HashPassword produces a salted one-way digest of the given password.
// bcrypt salts internally, so two calls with the same input yield
// different digests.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPassword reports whether password matches the stored digest.
// Any mismatch, including a digest bcrypt does not recognize, yields
// false rather than an error.
func VerifyPassword(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

package utils

import "golang.org/x/crypto/bcrypt"

// BcryptHasher hashes credentials with bcrypt. Cost zero means bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

// Hash returns the salted bcrypt digest of the password.
func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify compares the bcrypt hashed password with its possible plaintext equivalent.
func (h BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

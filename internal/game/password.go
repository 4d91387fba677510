package game

import (
	"fmt"

	"github.com/alexedwards/argon2id"
)

// Room passwords are short-lived shared secrets, so the parameters are
// lighter than the library defaults used for account passwords.
var passwordParams = &argon2id.Params{
	Memory:      16 * 1024,
	Iterations:  1,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

func hashPassword(password string) (string, error) {
	hash, err := argon2id.CreateHash(password, passwordParams)
	if err != nil {
		return "", fmt.Errorf("failed to hash room password: %w", err)
	}
	return hash, nil
}

func checkPassword(password, hash string) bool {
	if hash == "" {
		return true
	}
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	return err == nil && match
}

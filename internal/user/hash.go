package user

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/argon2"
)

var errHashMismatch = errors.New("hash doesn't match")

type (
	argonHasher struct {
		time    uint32
		memory  uint32
		threads uint8
		keyLen  uint32
		saltLen uint32
	}

	hashAndSalt struct {
		hash []byte
		salt []byte
	}
)

func newArgon2IdHasher(time, saltLen uint32, memory uint32, threads uint8, keyLen uint32) *argonHasher {
	return &argonHasher{time: time, saltLen: saltLen, memory: memory, threads: threads, keyLen: keyLen}
}

// GenerateHash derives an argon2id key from the password. If no salt
// is provided then a random salt of the configured length is generated.
func (a *argonHasher) GenerateHash(password, salt []byte) (*hashAndSalt, error) {
	if len(password) == 0 {
		return nil, errors.New("password must not be empty")
	}

	if len(salt) == 0 {
		var err error
		if salt, err = randomSecret(a.saltLen); err != nil {
			return nil, err
		}
	}

	hash := argon2.IDKey(password, salt, a.time, a.memory, a.threads, a.keyLen)
	return &hashAndSalt{hash, salt}, nil
}

// Compare re-derives the hash of the password using the stored salt and
// checks it against the stored hash in constant time.
func (a *argonHasher) Compare(hash, salt, password []byte) error {
	hashSalt, err := a.GenerateHash(password, salt)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare(hash, hashSalt.hash) != 1 {
		return errHashMismatch
	}

	return nil
}

func randomSecret(length uint32) ([]byte, error) {
	secret := make([]byte, length)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	return secret, nil
}

package backend

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"hash"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Password scheme prefixes (RFC 3112 style).
const (
	SchemeSHA256    = "{SHA256}"
	SchemeSSHA256   = "{SSHA256}"
	SchemeSHA512    = "{SHA512}"
	SchemeSSHA512   = "{SSHA512}"
	SchemeBcrypt    = "{BCRYPT}"
	SchemeCleartext = "{CLEARTEXT}"
)

// PasswordAttribute holds the credentials checked by simple binds.
const PasswordAttribute = "userPassword"

const saltLength = 16

// Password errors.
var (
	// ErrInvalidPasswordFormat is returned when a stored password cannot be decoded.
	ErrInvalidPasswordFormat = errors.New("backend: invalid password format")
	// ErrUnsupportedScheme is returned for unknown password schemes.
	ErrUnsupportedScheme = errors.New("backend: unsupported password scheme")
	// ErrPasswordMismatch is returned when the password does not match.
	ErrPasswordMismatch = errors.New("backend: password mismatch")
)

// VerifyPassword checks plaintext against a stored {SCHEME}value. A value
// without a scheme is compared as cleartext.
func VerifyPassword(plaintext, stored string) error {
	if stored == "" {
		return ErrInvalidPasswordFormat
	}

	end := strings.Index(stored, "}")
	if !strings.HasPrefix(stored, "{") || end == -1 {
		return compareCleartext(plaintext, stored)
	}

	encoded := stored[end+1:]
	switch strings.ToUpper(stored[:end+1]) {
	case SchemeCleartext:
		return compareCleartext(plaintext, encoded)
	case SchemeSHA256:
		return verifyDigest(sha256.New, plaintext, encoded, false)
	case SchemeSSHA256:
		return verifyDigest(sha256.New, plaintext, encoded, true)
	case SchemeSHA512:
		return verifyDigest(sha512.New, plaintext, encoded, false)
	case SchemeSSHA512:
		return verifyDigest(sha512.New, plaintext, encoded, true)
	case SchemeBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext))
		switch {
		case err == nil:
			return nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return ErrPasswordMismatch
		default:
			return ErrInvalidPasswordFormat
		}
	default:
		return ErrUnsupportedScheme
	}
}

// HashPassword encodes plaintext with scheme. Salted schemes use a random
// salt.
func HashPassword(plaintext, scheme string) (string, error) {
	switch scheme = strings.ToUpper(scheme); scheme {
	case SchemeCleartext:
		return SchemeCleartext + plaintext, nil
	case SchemeSHA256:
		return SchemeSHA256 + digest(sha256.New, plaintext, nil), nil
	case SchemeSHA512:
		return SchemeSHA512 + digest(sha512.New, plaintext, nil), nil
	case SchemeSSHA256, SchemeSSHA512:
		salt := make([]byte, saltLength)
		if _, err := rand.Read(salt); err != nil {
			return "", err
		}
		if scheme == SchemeSSHA256 {
			return SchemeSSHA256 + digest(sha256.New, plaintext, salt), nil
		}
		return SchemeSSHA512 + digest(sha512.New, plaintext, salt), nil
	case SchemeBcrypt:
		h, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		return SchemeBcrypt + string(h), nil
	default:
		return "", ErrUnsupportedScheme
	}
}

func compareCleartext(plaintext, stored string) error {
	if subtle.ConstantTimeCompare([]byte(plaintext), []byte(stored)) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}

// digest returns base64(H(plaintext+salt) + salt).
func digest(newHash func() hash.Hash, plaintext string, salt []byte) string {
	h := newHash()
	h.Write([]byte(plaintext))
	h.Write(salt)
	return base64.StdEncoding.EncodeToString(append(h.Sum(nil), salt...))
}

func verifyDigest(newHash func() hash.Hash, plaintext, encoded string, salted bool) error {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ErrInvalidPasswordFormat
	}

	size := newHash().Size()
	if len(data) < size || (salted && len(data) == size) || (!salted && len(data) != size) {
		return ErrInvalidPasswordFormat
	}

	h := newHash()
	h.Write([]byte(plaintext))
	h.Write(data[size:])
	if subtle.ConstantTimeCompare(h.Sum(nil), data[:size]) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}

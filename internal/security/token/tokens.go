package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// PasswordBytes es la entropía de los passwords de keystores.
const PasswordBytes = 32

// GeneratePassword genera un password aleatorio (base64url sin padding).
func GeneratePassword() (string, error) {
	b := make([]byte, PasswordBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Fingerprint devuelve sha256(der) en hexadecimal (identidad de un certificado).
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return fmt.Sprintf("%x", sum)
}

package tokens

import (
	"encoding/base64"
	"testing"
)

func TestGeneratePassword(t *testing.T) {
	a, err := GeneratePassword()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GeneratePassword()
	if a == b {
		t.Fatal("passwords must differ")
	}
	raw, err := base64.RawURLEncoding.DecodeString(a)
	if err != nil {
		t.Fatalf("not base64url: %v", err)
	}
	if len(raw) != PasswordBytes {
		t.Fatalf("entropy = %d bytes", len(raw))
	}
}

func TestFingerprint(t *testing.T) {
	// sha256("")
	if got := Fingerprint(nil); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Fatalf("unexpected fingerprint %s", got)
	}
}

package crypto

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesKeyWithRestrictivePerms(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "sub", "master.key")

	if _, err := Open(keyPath); err != nil {
		t.Fatalf("Open: %v", err)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key file perm: got %o, want 600", perm)
	}

	dirInfo, err := os.Stat(filepath.Dir(keyPath))
	if err != nil {
		t.Fatalf("stat key dir: %v", err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0o700 {
		t.Errorf("key dir perm: got %o, want 700", perm)
	}
}

func TestOpen_ReusesExistingKey(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "master.key")

	c1, err := Open(keyPath)
	if err != nil {
		t.Fatalf("Open #1: %v", err)
	}
	sealed, err := c1.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	c2, err := Open(keyPath)
	if err != nil {
		t.Fatalf("Open #2: %v", err)
	}
	plain, err := c2.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt with reopened key: %v", err)
	}
	if string(plain) != "hello" {
		t.Errorf("got %q, want hello", plain)
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "master.key"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, value := range []string{"", "alice@example.com", "a very long value with spaces and 123 digits!!"} {
		sealed, err := c.Encrypt([]byte(value))
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", value, err)
		}
		plain, err := c.Decrypt(sealed)
		if err != nil {
			t.Fatalf("Decrypt(%q): %v", value, err)
		}
		if string(plain) != value {
			t.Errorf("round trip mismatch: got %q, want %q", plain, value)
		}
	}
}

func TestEncrypt_NonceVariesPerCall(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "master.key"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	a, err := c.Encrypt([]byte("same plaintext"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := c.Encrypt([]byte("same plaintext"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext produced identical ciphertext (nonce reuse)")
	}
}

func TestDecrypt_TamperedCiphertextFails(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "master.key"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sealed, err := c.Encrypt([]byte("sensitive"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xFF

	if _, err := c.Decrypt(tampered); err != ErrDecryptFailed {
		t.Errorf("Decrypt(tampered): got err %v, want ErrDecryptFailed", err)
	}
}

func TestDecrypt_TooShortFails(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "master.key"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := c.Decrypt([]byte("short")); err != ErrDecryptFailed {
		t.Errorf("Decrypt(short): got err %v, want ErrDecryptFailed", err)
	}
}

func TestOpen_RejectsWrongLengthKeyFile(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "master.key")
	if err := os.WriteFile(keyPath, []byte("too-short"), 0o600); err != nil {
		t.Fatalf("write bad key: %v", err)
	}
	if _, err := Open(keyPath); err == nil {
		t.Error("Open with wrong-length key file should fail")
	}
}

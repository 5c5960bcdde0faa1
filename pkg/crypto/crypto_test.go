package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestDerive(t *testing.T) {
	password := []byte("test-password-123")
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		t.Fatalf("failed to generate salt: %v", err)
	}

	key := Derive(password, salt)
	if len(key) != KeyLength {
		t.Errorf("Derive() returned key of length %d, want %d", len(key), KeyLength)
	}

	key2 := Derive(password, salt)
	if !bytes.Equal(key, key2) {
		t.Error("Derive() with same inputs should produce identical keys")
	}

	differentKey := Derive([]byte("different-password"), salt)
	if bytes.Equal(key, differentKey) {
		t.Error("Derive() with different password should produce different key")
	}

	differentSalt := make([]byte, SaltLength)
	if _, err := rand.Read(differentSalt); err != nil {
		t.Fatalf("failed to generate salt: %v", err)
	}
	differentKey = Derive(password, differentSalt)
	if bytes.Equal(key, differentKey) {
		t.Error("Derive() with different salt should produce different key")
	}
}

func TestDeriveParameters(t *testing.T) {
	if Iterations < 100_000 {
		t.Errorf("Iterations = %d, must be >= 100000", Iterations)
	}
	if KeyLength != 32 {
		t.Errorf("KeyLength = %d, want 32 (256-bit)", KeyLength)
	}
	if SaltLength != 16 {
		t.Errorf("SaltLength = %d, want 16", SaltLength)
	}
}

func TestDeriveNHonorsStoredIterationCount(t *testing.T) {
	password := []byte("hunter2")
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		t.Fatalf("failed to generate salt: %v", err)
	}

	low := DeriveN(password, salt, 1000)
	high := DeriveN(password, salt, Iterations)
	if bytes.Equal(low, high) {
		t.Error("DeriveN() with different iteration counts should produce different keys")
	}
	if !bytes.Equal(low, DeriveN(password, salt, 1000)) {
		t.Error("DeriveN() must be deterministic for a fixed iteration count")
	}
}

func TestEncrypt(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	plaintext := []byte("secret data to encrypt")

	ciphertext, nonce, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if len(nonce) != NonceLength {
		t.Errorf("Encrypt() nonce length = %d, want %d", len(nonce), NonceLength)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Error("Encrypt() ciphertext should not equal plaintext")
	}
	if len(ciphertext) < len(plaintext)+TagLength {
		t.Errorf("Encrypt() ciphertext length = %d, want >= %d", len(ciphertext), len(plaintext)+TagLength)
	}
}

func TestEncryptInvalidKeyLength(t *testing.T) {
	tests := []int{0, 16, 24, 48}
	for _, keyLen := range tests {
		key := make([]byte, keyLen)
		if _, _, err := Encrypt(key, []byte("x")); err != ErrInvalidKeyLength {
			t.Errorf("Encrypt() with key length %d: error = %v, want %v", keyLen, err, ErrInvalidKeyLength)
		}
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	cases := [][]byte{
		{},
		[]byte("x"),
		[]byte("This is a medium-length test string for encryption."),
		make([]byte, 10000),
	}
	if _, err := rand.Read(cases[3]); err != nil {
		t.Fatalf("failed to generate random data: %v", err)
	}

	for _, pt := range cases {
		ciphertext, nonce, err := Encrypt(key, pt)
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		decrypted, err := Decrypt(key, ciphertext, nonce)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if !bytes.Equal(decrypted, pt) {
			t.Errorf("round trip failed: got length %d, want length %d", len(decrypted), len(pt))
		}
	}
}

func TestEncryptADBindsAssociatedData(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	plaintext := []byte("bound to a context label")

	ciphertext, nonce, err := EncryptAD(key, plaintext, []byte("backup:v1"))
	if err != nil {
		t.Fatalf("EncryptAD() error = %v", err)
	}

	if _, err := DecryptAD(key, ciphertext, nonce, []byte("backup:v2")); err != ErrDecryptionFailed {
		t.Errorf("DecryptAD() with mismatched AD error = %v, want %v", err, ErrDecryptionFailed)
	}

	got, err := DecryptAD(key, ciphertext, nonce, []byte("backup:v1"))
	if err != nil {
		t.Fatalf("DecryptAD() error = %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("DecryptAD() = %q, want %q", got, plaintext)
	}
}

func TestDecryptWrongKeyOrNonce(t *testing.T) {
	key := make([]byte, KeyLength)
	wrongKey := make([]byte, KeyLength)
	rand.Read(key)
	rand.Read(wrongKey)

	ciphertext, nonce, err := Encrypt(key, []byte("secret data"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := Decrypt(wrongKey, ciphertext, nonce); err != ErrDecryptionFailed {
		t.Errorf("Decrypt() with wrong key error = %v, want %v", err, ErrDecryptionFailed)
	}

	wrongNonce := make([]byte, NonceLength)
	rand.Read(wrongNonce)
	if _, err := Decrypt(key, ciphertext, wrongNonce); err != ErrDecryptionFailed {
		t.Errorf("Decrypt() with wrong nonce error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestDecryptTamperedCiphertextDetected(t *testing.T) {
	key := make([]byte, KeyLength)
	rand.Read(key)

	ciphertext, nonce, err := Encrypt(key, []byte("secret data that should be protected"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	tampered := make([]byte, len(ciphertext))
	copy(tampered, ciphertext)
	tampered[0] ^= 0x01

	if _, err := Decrypt(key, tampered, nonce); err != ErrDecryptionFailed {
		t.Errorf("Decrypt() with tampered ciphertext error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestDecryptCiphertextTooShort(t *testing.T) {
	key := make([]byte, KeyLength)
	nonce := make([]byte, NonceLength)
	if _, err := Decrypt(key, make([]byte, 10), nonce); err != ErrCiphertextTooShort {
		t.Errorf("Decrypt() error = %v, want %v", err, ErrCiphertextTooShort)
	}
}

func TestEncryptProducesUniqueNonces(t *testing.T) {
	key := make([]byte, KeyLength)
	rand.Read(key)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		_, nonce, err := Encrypt(key, []byte("test data"))
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if seen[string(nonce)] {
			t.Fatalf("Encrypt() produced duplicate nonce on iteration %d", i)
		}
		seen[string(nonce)] = true
	}
}

func TestConstantTimeEqual(t *testing.T) {
	a := []byte("same-length-tag-a")
	b := []byte("same-length-tag-a")
	c := []byte("same-length-tag-b")
	d := []byte("different-length")

	if !ConstantTimeEqual(a, b) {
		t.Error("ConstantTimeEqual() should be true for identical slices")
	}
	if ConstantTimeEqual(a, c) {
		t.Error("ConstantTimeEqual() should be false for differing slices")
	}
	if ConstantTimeEqual(a, d) {
		t.Error("ConstantTimeEqual() should be false for differing lengths")
	}
}

func TestSecureWipe(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	SecureWipe(data)
	for i, b := range data {
		if b != 0 {
			t.Errorf("SecureWipe() byte[%d] = %d, want 0", i, b)
		}
	}

	// must not panic on nil/empty
	SecureWipe(nil)
	SecureWipe([]byte{})
}

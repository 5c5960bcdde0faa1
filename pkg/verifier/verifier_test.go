package verifier

import "testing"

func TestInstallVerifyRoundTrip(t *testing.T) {
	password := []byte("correct-horse-battery-staple")

	stored, err := Install(password)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if len(stored) != recordLen {
		t.Fatalf("Install() record length = %d, want %d", len(stored), recordLen)
	}

	if err := Verify(stored, password); err != nil {
		t.Errorf("Verify() with correct password error = %v, want nil", err)
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	stored, err := Install([]byte("right-password"))
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	if err := Verify(stored, []byte("wrong-password")); err != ErrWrongPassword {
		t.Errorf("Verify() error = %v, want %v", err, ErrWrongPassword)
	}
}

func TestVerifyMalformedRecord(t *testing.T) {
	if err := Verify([]byte("too-short"), []byte("anything")); err != ErrMalformed {
		t.Errorf("Verify() error = %v, want %v", err, ErrMalformed)
	}
}

func TestInstallIsNonDeterministicAcrossCalls(t *testing.T) {
	password := []byte("same-password")
	a, err := Install(password)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	b, err := Install(password)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Install() called twice with the same password produced identical records; salts should differ")
	}

	// Both records still verify the same password.
	if err := Verify(a, password); err != nil {
		t.Errorf("Verify(a) error = %v", err)
	}
	if err := Verify(b, password); err != nil {
		t.Errorf("Verify(b) error = %v", err)
	}
}

func TestVerifyHonorsStoredIterationCount(t *testing.T) {
	password := []byte("legacy-vault-password")
	salt := make([]byte, 16)
	for i := range salt {
		salt[i] = byte(i)
	}

	stored, err := installWithSalt(password, salt, 50_000)
	if err != nil {
		t.Fatalf("installWithSalt() error = %v", err)
	}

	if err := Verify(stored, password); err != nil {
		t.Errorf("Verify() of a record created under a lower iteration count error = %v, want nil", err)
	}
}

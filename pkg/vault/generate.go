package vault

import (
	"crypto/rand"
	"math/big"
)

// generateAlphabet is the 64-character alphanumeric-plus-"-_" set
// generate_secret samples from (spec.md §6).
const generateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// GenerateSecret returns a cryptographically secure random string of the
// given length, drawn uniformly from generateAlphabet via rejection
// sampling against math/big so no byte value is over-represented.
func GenerateSecret(length int) (string, error) {
	if length <= 0 {
		return "", validationErr("length", "must be positive")
	}

	alphabetLen := big.NewInt(int64(len(generateAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		out[i] = generateAlphabet[n.Int64()]
	}
	return string(out), nil
}

func randomIndex(n int) (int, error) {
	if n <= 0 {
		return 0, errKdfOverflow
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

package curve

import "fmt"

var (
	// ErrVerificationFailed is returned when a partial decryption's
	// Chaum-Pedersen proof does not verify against the claimed
	// verification key.
	ErrVerificationFailed = fmt.Errorf("curve: share verification failed")

	// ErrInsufficientShares is returned when fewer than the threshold
	// number of verified shares are available to combine.
	ErrInsufficientShares = fmt.Errorf("curve: insufficient verified shares")

	// ErrDecryptionOutOfRange is returned when a combined decryption does
	// not correspond to 0 or 1.
	ErrDecryptionOutOfRange = fmt.Errorf("curve: decryption out of range")
)

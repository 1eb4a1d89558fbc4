package crypto

import (
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

var ErrHashMismatch = errors.New("credential does not match stored hash")

// Hasher wraps bcrypt for PIN and password credentials. Comparison is
// constant-time inside bcrypt itself.
type Hasher struct {
	cost   int
	logger *slog.Logger
}

func NewHasher(cost int, logger *slog.Logger) *Hasher {
	if logger == nil {
		logger = slog.Default()
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost, logger: logger}
}

func (h *Hasher) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h *Hasher) Compare(hashed, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrHashMismatch
		}
		h.logger.Warn("Hash comparison failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}

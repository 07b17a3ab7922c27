package order

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNumberExhausted = errors.New("could not allocate a unique order number")

// NumberGenerator allocates human-readable order numbers of the form
// ORD-YYYYMMDD-XXXXXXXX and checks them against existing orders.
type NumberGenerator struct {
	repo     Repository
	now      func() time.Time
	random   func() [16]byte
	attempts int
}

func NewNumberGenerator(repo Repository) *NumberGenerator {
	return &NumberGenerator{
		repo:     repo,
		now:      time.Now,
		random:   func() [16]byte { return uuid.New() },
		attempts: 5,
	}
}

func (g *NumberGenerator) Next(ctx context.Context) (string, error) {
	for i := 0; i < g.attempts; i++ {
		b := g.random()
		number := fmt.Sprintf("ORD-%s-%s", g.now().UTC().Format("20060102"), base32.StdEncoding.EncodeToString(b[:5]))
		taken, err := g.repo.NumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
	}
	return "", ErrNumberExhausted
}

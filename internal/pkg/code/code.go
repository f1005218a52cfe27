package code

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// Length is the number of digits in a verification code.
const Length = 6

var upper = big.NewInt(1_000_000)

// Generator produces one-time numeric verification codes.
type Generator interface {
	Generate() (string, error)
}

// RandomGenerator draws codes uniformly from 000000-999999.
type RandomGenerator struct {
	src io.Reader
}

func NewGenerator() *RandomGenerator { return &RandomGenerator{src: rand.Reader} }

func (g *RandomGenerator) Generate() (string, error) {
	n, err := rand.Int(g.src, upper)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

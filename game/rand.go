package game

import (
	"crypto/rand"
	"math/big"
)

// RandSource picks the secret and the first player. Tests inject a fixed
// sequence.
type RandSource interface {
	Intn(n int) int
}

// CryptoRand draws from crypto/rand so neither player can predict or steer
// the secret.
type CryptoRand struct{}

func (CryptoRand) Intn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return int(v.Int64())
}

package platform

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
const suffixLength = 8

func NewID() string {
	return uuid.New().String()
}

// NewSuffix returns a short random lowercase suffix, used to
// disambiguate concurrently created resource names.
func NewSuffix() string {
	b := make([]byte, suffixLength)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	for i := range b {
		b[i] = suffixAlphabet[b[i]%byte(len(suffixAlphabet))]
	}
	return string(b)
}

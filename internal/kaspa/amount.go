package kaspa

import (
	"math"
	"math/rand"
)

// SompiPerKas is the number of sompi (the smallest KAS unit) in one KAS.
const SompiPerKas = 100_000_000

// TagMaxSompi bounds the random tag added to a session's base price. The tag
// only disambiguates concurrent sessions paying the same receiver address; it
// is not a security mechanism. At most 99999 sompi (< 0.001 KAS) of overpay.
const TagMaxSompi = 99_999

func KasToSompi(kas float64) int64 {
	return int64(math.Round(kas * SompiPerKas))
}

func SompiToKas(sompi int64) float64 {
	return float64(sompi) / SompiPerKas
}

// PriceSompiForCheckpoint computes the base price in sompi for one checkpoint
// at the given KAS/minute rate. Clamped to at least 1 sompi so an expected
// amount can never be zero and spuriously match a zero-value output.
func PriceSompiForCheckpoint(rateKasPerMinute float64, checkpointSeconds int) int64 {
	kas := rateKasPerMinute * float64(checkpointSeconds) / 60
	sompi := KasToSompi(kas)
	if sompi < 1 {
		return 1
	}
	return sompi
}

// MakeUniqueAmountSompi adds a random tag in [1, TagMaxSompi] to the base
// price so concurrently pending sessions produce distinguishable amounts.
func MakeUniqueAmountSompi(baseSompi int64) int64 {
	return baseSompi + 1 + rand.Int63n(TagMaxSompi)
}

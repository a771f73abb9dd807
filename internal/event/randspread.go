package event

import "math/rand"

// rejectionSample draws a uniform value in [0, ceiling) from src using
// rejection sampling over the largest multiple of ceiling that fits in
// [0, bound), avoiding the modulo-bias a plain `src.Uint32() % ceiling`
// would introduce. ceiling == 0 always returns 0.
func rejectionSample(src *rand.Rand, bound, ceiling uint32) uint32 {
	if ceiling == 0 {
		return 0
	}
	limit := (bound / ceiling) * ceiling
	for {
		v := src.Uint32() % bound
		if v < limit {
			return v % ceiling
		}
	}
}

// randomSpread returns a uniform offset in [0, ev.RandomSpread] seconds
// (spec §4.3: "adds a uniformly distributed U[0, random_spread] second
// offset"), bounded by the configured RAND ceiling.
func randomSpread(src *rand.Rand, spread, randCeiling uint32) uint32 {
	if spread == 0 {
		return 0
	}
	// the sampled range is inclusive of spread, so draw over spread+1
	// distinct outcomes; randCeiling bounds the platform RAND_MAX analogue.
	return rejectionSample(src, randCeiling, spread+1)
}

package scraper

import (
	"math/rand"
	"time"
)

// Strategy supplies the request-pattern randomization applied before every
// page fetch. It is an interface so tests can inject deterministic fakes and
// assert call counts instead of timing.
type Strategy interface {
	// NextUserAgent returns the identifying header for the next request.
	NextUserAgent() string
	// NextDelay returns how long to pause before the next request.
	NextDelay() time.Duration
}

type randomStrategy struct {
	userAgents []string
	delayMin   time.Duration
	delayMax   time.Duration
	rng        *rand.Rand
}

// NewRandomStrategy rotates user agents uniformly and draws delays from
// [delayMin, delayMax].
func NewRandomStrategy(userAgents []string, delayMin, delayMax time.Duration) Strategy {
	return &randomStrategy{
		userAgents: userAgents,
		delayMin:   delayMin,
		delayMax:   delayMax,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *randomStrategy) NextUserAgent() string {
	if len(r.userAgents) == 0 {
		return ""
	}
	return r.userAgents[r.rng.Intn(len(r.userAgents))]
}

func (r *randomStrategy) NextDelay() time.Duration {
	if r.delayMax <= r.delayMin {
		return r.delayMin
	}
	return r.delayMin + time.Duration(r.rng.Int63n(int64(r.delayMax-r.delayMin)))
}

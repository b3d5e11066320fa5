// Package pacing spaces out requests to the listing site.
//
// Every wait draws a delay from a normal distribution clipped at zero and, with
// probability 1/Bias, adds Bias on top, so most requests arrive a few seconds
// apart and the occasional one lingers noticeably longer. A token bucket with a
// fixed minimum interval sits underneath the random delay.
package pacing

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Options configures a Pacer
type Options struct {
	Mean        time.Duration
	StdDev      time.Duration
	Bias        time.Duration
	MinInterval time.Duration
	// Seed makes delays reproducible; zero seeds from the clock
	Seed int64
}

// Pacer waits a randomized delay before each request
type Pacer struct {
	mean, stdDev, bias time.Duration
	limiter            *rate.Limiter

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Pacer
func New(opts Options) *Pacer {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	return &Pacer{
		mean:    opts.Mean,
		stdDev:  opts.StdDev,
		bias:    opts.Bias,
		limiter: rate.NewLimiter(limit, 1),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Delay draws the next random delay
func (p *Pacer) Delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	d := time.Duration(p.rng.NormFloat64()*float64(p.stdDev)) + p.mean
	if d < 0 {
		d = 0
	}

	if p.bias > 0 {
		bias := p.bias.Seconds()
		if p.rng.Float64()*bias > bias-1 {
			d += p.bias
		}
	}
	return d
}

// Wait sleeps for the next random delay, then for the rate floor
func (p *Pacer) Wait(ctx context.Context) error {
	if d := p.Delay(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return p.limiter.Wait(ctx)
}

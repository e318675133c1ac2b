// Package useragent supplies browser User-Agent strings for outbound requests.
package useragent

import (
	"crypto/rand"
	"math/big"
	"sync/atomic"
)

// Desktop is a set of current desktop browser User-Agents. suno.com serves
// its full workspace markup only to browsers it recognises.
var Desktop = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

// Rotation selects how a Pool hands out entries.
type Rotation string

const (
	RotateSequential Rotation = "sequential"
	RotateRandom     Rotation = "random"
)

// Pool hands out User-Agents. It is safe for concurrent use.
type Pool struct {
	uas      []string
	rotation Rotation
	counter  atomic.Uint64
}

// NewPool creates a pool over uas, falling back to Desktop when uas is empty.
// An unknown rotation behaves as RotateSequential.
func NewPool(uas []string, rotation Rotation) *Pool {
	if len(uas) == 0 {
		uas = Desktop
	}
	return &Pool{uas: append([]string(nil), uas...), rotation: rotation}
}

// Next returns the next User-Agent according to the pool's rotation.
func (p *Pool) Next() string {
	if p.rotation == RotateRandom {
		return p.random()
	}
	return p.sequential()
}

func (p *Pool) sequential() string {
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

func (p *Pool) random() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.uas))))
	if err != nil {
		return p.sequential()
	}
	return p.uas[n.Int64()]
}

// Len reports the number of entries.
func (p *Pool) Len() int { return len(p.uas) }

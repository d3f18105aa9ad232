// Package randgen implements SiMBA's deterministic randomness factory
// (spec.md §4.1): a single master seed fans out into named, independent
// streams, each supporting the enumerated distribution family. Samples
// never depend on wall clock or goroutine scheduling order — every
// stream's underlying generator is seeded purely from a hash of
// (master seed, stream name).
package randgen

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	mrand "math/rand"
	"sync"

	"github.com/mescourrou/simba/internal/simerrors"
)

// Kind enumerates the supported distribution families.
type Kind int

const (
	Fixed Kind = iota
	Uniform
	Normal
	Poisson
	Exponential
	Bernoulli
)

func (k Kind) String() string {
	switch k {
	case Fixed:
		return "fixed"
	case Uniform:
		return "uniform"
	case Normal:
		return "normal"
	case Poisson:
		return "poisson"
	case Exponential:
		return "exponential"
	case Bernoulli:
		return "bernoulli"
	default:
		return "unknown"
	}
}

// Factory issues independent, named random streams derived from a single
// master seed. The zero value is not usable; construct with NewFactory.
type Factory struct {
	mu        sync.Mutex
	masterSeed int64
	seeded     bool
	streams    map[string]*Stream
}

// NewFactory creates a Factory from an optional seed. A nil seed requests
// non-deterministic behaviour (spec.md §6 "random_seed ... or null"): a
// cryptographically random 64-bit value is drawn once to stand in for the
// master seed so that streams are still internally consistent for the
// lifetime of the run, even though repeat runs will differ.
func NewFactory(seed *int64) *Factory {
	f := &Factory{streams: make(map[string]*Stream)}
	if seed != nil {
		f.masterSeed = *seed
	} else {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err == nil {
			f.masterSeed = int64(binary.LittleEndian.Uint64(buf[:]))
		}
	}
	f.seeded = true
	return f
}

// Stream returns the named stream, creating it on first request. The
// stream's internal seed is derived deterministically by hashing the
// master seed together with the stable stream identifier, so stream
// creation order never affects the sequence produced by any individual
// stream.
func (f *Factory) Stream(name string) (*Stream, error) {
	if f == nil || !f.seeded {
		return nil, fmt.Errorf("randgen: stream %q requested before factory init: %w", name, simerrors.ErrSeedMissing)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.streams[name]; ok {
		return s, nil
	}
	childSeed := deriveSeed(f.masterSeed, name)
	s := &Stream{name: name, rng: mrand.New(mrand.NewSource(childSeed))}
	f.streams[name] = s
	return s, nil
}

// deriveSeed hashes (masterSeed, streamID) into a child seed using FNV-1a,
// which is stable across processes and never depends on map iteration
// order or wall-clock state.
func deriveSeed(masterSeed int64, streamID string) int64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(masterSeed))
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(streamID))
	return int64(h.Sum64())
}

// Stream is a single named, independent random source.
type Stream struct {
	mu   sync.Mutex
	name string
	rng  *mrand.Rand
}

// Name returns the stable identifier this stream was derived from.
func (s *Stream) Name() string { return s.name }

// SampleFixed returns value unconditionally (useful as a distribution
// variant for deterministic test configurations).
func (s *Stream) SampleFixed(value float64) float64 { return value }

// SampleUniform returns a value in [low, high).
func (s *Stream) SampleUniform(low, high float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return low + s.rng.Float64()*(high-low)
}

// SampleBernoulli returns true with probability p.
func (s *Stream) SampleBernoulli(p float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}

// SampleExponential returns a sample from Exp(rate).
func (s *Stream) SampleExponential(rate float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.ExpFloat64() / rate
}

// SamplePoisson returns a sample from Poisson(lambda) using Knuth's
// multiplication algorithm, adequate for the small lambdas scenario
// triggers and fault models use.
func (s *Stream) SamplePoisson(lambda float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	L := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		k++
		p *= s.rng.Float64()
		if p <= L {
			return k - 1
		}
	}
}

// SampleNormal draws an N-dimensional vector from a multivariate normal
// distribution with the given mean and covariance matrix (row-major,
// N*N). Returns InvalidCovariance if cov is not symmetric positive
// semi-definite.
func (s *Stream) SampleNormal(mean []float64, cov []float64) ([]float64, error) {
	n := len(mean)
	if n == 0 || len(cov) != n*n {
		return nil, fmt.Errorf("randgen: mean/covariance dimension mismatch: %w", simerrors.ErrInvalidCovariance)
	}
	l, err := cholesky(cov, n)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	z := make([]float64, n)
	for i := range z {
		z[i] = s.rng.NormFloat64()
	}
	s.mu.Unlock()

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := mean[i]
		for j := 0; j <= i; j++ {
			sum += l[i*n+j] * z[j]
		}
		out[i] = sum
	}
	return out, nil
}

// VarSpec is a configured random-variable specification, as used by a
// scenario Time trigger's random `time` field or by a Fault's noise model
// (spec.md §4.5, §6). Exactly one set of Kind-specific fields is read.
type VarSpec struct {
	Kind Kind

	Fixed float64

	UniformLow, UniformHigh float64

	NormalMean []float64
	NormalCov  []float64 // row-major len(NormalMean)^2

	PoissonLambda float64

	ExpRate float64

	BernoulliP float64
}

// Dimension returns the number of scalar values one sample produces: the
// length of NormalMean for Normal, 1 otherwise.
func (v VarSpec) Dimension() int {
	if v.Kind == Normal {
		if len(v.NormalMean) == 0 {
			return 1
		}
		return len(v.NormalMean)
	}
	return 1
}

// Sample draws one value (or vector, for Normal) from the spec using s.
func (s *Stream) Sample(spec VarSpec) ([]float64, error) {
	switch spec.Kind {
	case Fixed:
		return []float64{s.SampleFixed(spec.Fixed)}, nil
	case Uniform:
		return []float64{s.SampleUniform(spec.UniformLow, spec.UniformHigh)}, nil
	case Normal:
		return s.SampleNormal(spec.NormalMean, spec.NormalCov)
	case Poisson:
		return []float64{float64(s.SamplePoisson(spec.PoissonLambda))}, nil
	case Exponential:
		return []float64{s.SampleExponential(spec.ExpRate)}, nil
	case Bernoulli:
		if s.SampleBernoulli(spec.BernoulliP) {
			return []float64{1}, nil
		}
		return []float64{0}, nil
	default:
		return nil, fmt.Errorf("randgen: unknown distribution kind %v", spec.Kind)
	}
}

// cholesky computes the lower-triangular Cholesky factor of an n*n
// row-major matrix, failing if the matrix is not symmetric positive
// semi-definite (within a small numerical tolerance).
func cholesky(a []float64, n int) ([]float64, error) {
	const symTol = 1e-9
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(a[i*n+j]-a[j*n+i]) > symTol {
				return nil, fmt.Errorf("randgen: covariance not symmetric: %w", simerrors.ErrInvalidCovariance)
			}
		}
	}
	l := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i*n+j]
			for k := 0; k < j; k++ {
				sum -= l[i*n+k] * l[j*n+k]
			}
			if i == j {
				if sum < -symTol {
					return nil, fmt.Errorf("randgen: covariance not positive semi-definite: %w", simerrors.ErrInvalidCovariance)
				}
				if sum < 0 {
					sum = 0
				}
				l[i*n+j] = math.Sqrt(sum)
			} else {
				if l[j*n+j] == 0 {
					l[i*n+j] = 0
				} else {
					l[i*n+j] = sum / l[j*n+j]
				}
			}
		}
	}
	return l, nil
}

// SPDX-License-Identifier: MIT
package fft

import (
	"fmt"
	"math"
	"strings"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"

	"rtspectrum/pkg/bitint"
)

// FullScale is the 16-bit full-scale constant. Every decoded sample lives in
// [-FullScale, FullScale] regardless of the wire format.
const FullScale = 32767.0

// Kind selects a Backend implementation.
type Kind int

// Available backends.
const (
	Identity Kind = iota
	Real
	Complex
	Reference
)

func (k Kind) String() string {
	switch k {
	case Identity:
		return "identity"
	case Real:
		return "real"
	case Complex:
		return "complex"
	case Reference:
		return "reference"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Valid reports whether k names a known backend.
func (k Kind) Valid() bool {
	return k >= Identity && k <= Reference
}

// ParseKind converts a case-insensitive backend name to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "identity", "none", "bypass":
		return Identity, nil
	case "real", "gonum", "":
		return Real, nil
	case "complex", "cmplx":
		return Complex, nil
	case "reference", "go-dsp", "godsp":
		return Reference, nil
	default:
		return Real, fmt.Errorf("unknown fft backend name: '%s'", name)
	}
}

// Backend turns a windowed, zero-padded block of bufferSize samples into a
// nonnegative per-bin spectrum.
//
// Transform backends normalize the input by 1/FullScale and emit power
// |X[k]|^2 scaled by 1/sqrt(fftSize). The Identity backend rescales the
// samples themselves into [0, 1] instead.
//
// Transform writes into dst and returns dst[:OutputLen()]. If dst is too
// short a new slice is allocated. Implementations own their workspaces and
// are not safe for concurrent use.
type Backend interface {
	Transform(dst, src []float64) []float64
	OutputLen() int
	Kind() Kind
}

// Compile-time checks for interface implementations.
var (
	_ Backend = (*identityBackend)(nil)
	_ Backend = (*realBackend)(nil)
	_ Backend = (*complexBackend)(nil)
	_ Backend = (*referenceBackend)(nil)
)

// New plans a backend of the given kind for blocks of bufferSize samples, of
// which the first fftSize carry signal.
func New(kind Kind, bufferSize, fftSize int) (Backend, error) {
	if !bitint.IsPowerOfTwo(bufferSize) {
		return nil, fmt.Errorf("%v backend: buffer size must be a power of 2, got %d", kind, bufferSize)
	}
	if fftSize < 1 || fftSize > bufferSize {
		return nil, fmt.Errorf("%v backend: fft size must be in [1, %d], got %d", kind, bufferSize, fftSize)
	}

	scale := 1 / math.Sqrt(float64(fftSize))

	switch kind {
	case Identity:
		return &identityBackend{n: bufferSize}, nil
	case Real:
		return &realBackend{
			plan:   fourier.NewFFT(bufferSize),
			input:  make([]float64, bufferSize),
			coeffs: make([]complex128, bufferSize/2+1),
			scale:  scale,
		}, nil
	case Complex:
		return &complexBackend{
			plan:   fourier.NewCmplxFFT(bufferSize),
			input:  make([]complex128, bufferSize),
			coeffs: make([]complex128, bufferSize),
			scale:  scale,
		}, nil
	case Reference:
		return &referenceBackend{
			input: make([]float64, bufferSize),
			n:     bufferSize/2 + 1,
			scale: scale,
		}, nil
	default:
		return nil, fmt.Errorf("unknown fft backend %v", kind)
	}
}

func ensure(dst []float64, n int) []float64 {
	if cap(dst) < n {
		return make([]float64, n)
	}
	return dst[:n]
}

// power writes |c|^2 * scale for every coefficient.
func power(dst []float64, coeffs []complex128, scale float64) {
	for i, c := range coeffs {
		re, im := real(c), imag(c)
		dst[i] = (re*re + im*im) * scale
	}
}

// normalize copies src into dst scaled to [-1, 1], zero-filling the tail.
func normalize(dst, src []float64) {
	const inv = 1 / FullScale
	n := copy(dst, src)
	for i := range n {
		dst[i] *= inv
	}
	clear(dst[n:])
}

// --- Identity ---

// identityBackend is the no-FFT path. Samples are mapped from
// [-FullScale, FullScale] to [0, 1] around 0.5.
type identityBackend struct {
	n int
}

func (b *identityBackend) Transform(dst, src []float64) []float64 {
	dst = ensure(dst, b.n)
	n := min(len(src), b.n)
	for i := range n {
		dst[i] = src[i]/(FullScale*2) + 0.5
	}
	for i := n; i < b.n; i++ {
		dst[i] = 0.5
	}
	return dst
}

func (b *identityBackend) OutputLen() int { return b.n }
func (b *identityBackend) Kind() Kind     { return Identity }

// --- Real (gonum) ---

type realBackend struct {
	plan   *fourier.FFT
	input  []float64
	coeffs []complex128
	scale  float64
}

func (b *realBackend) Transform(dst, src []float64) []float64 {
	dst = ensure(dst, len(b.coeffs))

	normalize(b.input, src)
	b.plan.Coefficients(b.coeffs, b.input)
	power(dst, b.coeffs, b.scale)

	return dst
}

func (b *realBackend) OutputLen() int { return len(b.coeffs) }
func (b *realBackend) Kind() Kind     { return Real }

// --- Complex (gonum) ---

// complexBackend runs a full complex transform over a zero-imaginary input
// and keeps the mirrored upper half of the spectrum.
type complexBackend struct {
	plan   *fourier.CmplxFFT
	input  []complex128
	coeffs []complex128
	scale  float64
}

func (b *complexBackend) Transform(dst, src []float64) []float64 {
	dst = ensure(dst, len(b.coeffs))

	n := min(len(src), len(b.input))
	for i := range n {
		b.input[i] = complex(src[i]/FullScale, 0)
	}
	clear(b.input[n:])

	b.plan.Coefficients(b.coeffs, b.input)
	power(dst, b.coeffs, b.scale)

	return dst
}

func (b *complexBackend) OutputLen() int { return len(b.coeffs) }
func (b *complexBackend) Kind() Kind     { return Complex }

// --- Reference (go-dsp) ---

// referenceBackend uses go-dsp, which allocates its result on every call.
// It exists to cross-check the gonum backends and is not meant for the
// capture thread.
type referenceBackend struct {
	input []float64
	n     int
	scale float64
}

func (b *referenceBackend) Transform(dst, src []float64) []float64 {
	dst = ensure(dst, b.n)

	normalize(b.input, src)
	coeffs := dspfft.FFTReal(b.input)
	power(dst, coeffs[:b.n], b.scale)

	return dst
}

func (b *referenceBackend) OutputLen() int { return b.n }
func (b *referenceBackend) Kind() Kind     { return Reference }

package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FFTSize is the analysis window in samples.
const FFTSize = 4096

// Analysis describes the mix around one timestamp.
type Analysis struct {
	Time float64
	// Spectrum holds FFTSize/2 magnitudes in decibels, lowest bin first.
	Spectrum []float32
	RMS      float64
	Peak     float64
}

// Analyse runs a Hann-windowed real FFT over the first FFTSize samples of
// b, downmixed to mono. Shorter buffers are zero padded.
func Analyse(b *Buffer, t float64) Analysis {
	mono := b.Mono()
	a := Analysis{Time: t, Spectrum: make([]float32, FFTSize/2)}

	seq := make([]float64, FFTSize)
	var sum float64
	n := min(len(mono), FFTSize)
	for i := 0; i < n; i++ {
		v := float64(mono[i])
		sum += v * v
		a.Peak = math.Max(a.Peak, math.Abs(v))
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(FFTSize-1)))
		seq[i] = v * w
	}
	if n > 0 {
		a.RMS = math.Sqrt(sum / float64(n))
	}

	// A plan carries scratch space, so each call gets its own.
	coeff := fourier.NewFFT(FFTSize).Coefficients(nil, seq)
	for i := range a.Spectrum {
		mag := cmplx.Abs(coeff[i]) / FFTSize
		if mag < 1e-10 {
			mag = 1e-10
		}
		a.Spectrum[i] = float32(20 * math.Log10(mag))
	}
	return a
}

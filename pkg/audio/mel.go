package audio

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gorgonia.org/tensor"
)

const (
	// MelBands and TimeFrames fix the shape of every feature map this
	// package produces, regardless of utterance duration.
	MelBands   = 128
	TimeFrames = 300

	fftSize = 1024
	hopSize = 256
)

// Transform decodes a waveform file and returns its log-mel feature map with
// shape (MelBands, TimeFrames). Decode errors propagate unchanged.
func Transform(path string) (*tensor.Dense, error) {
	samples, rate, err := Decode(path)
	if err != nil {
		return nil, err
	}
	return Spectrogram(samples, rate)
}

// Spectrogram computes a Hann-windowed mel power spectrogram, log-compresses
// it and resizes it to (MelBands, TimeFrames). Deterministic for identical
// input.
func Spectrogram(samples []float64, rate int) (*tensor.Dense, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", rate)
	}
	if len(samples) < fftSize {
		padded := make([]float64, fftSize)
		copy(padded, samples)
		samples = padded
	}

	frames := 1 + (len(samples)-fftSize)/hopSize
	bins := fftSize/2 + 1

	fft := fourier.NewFFT(fftSize)
	window := hannWindow(fftSize)
	filters := melFilterbank(rate, bins)

	windowed := make([]float64, fftSize)
	coeffs := make([]complex128, bins)
	power := make([]float64, bins)

	mel := make([][]float64, MelBands)
	for m := range mel {
		mel[m] = make([]float64, frames)
	}

	for t := range frames {
		offset := t * hopSize
		for i := range fftSize {
			windowed[i] = samples[offset+i] * window[i]
		}
		fft.Coefficients(coeffs, windowed)
		for i, c := range coeffs {
			power[i] = cmplx.Abs(c) * cmplx.Abs(c)
		}
		for m, filter := range filters {
			sum := 0.0
			for _, fw := range filter {
				sum += power[fw.bin] * fw.weight
			}
			mel[m][t] = math.Log(sum + 1e-10)
		}
	}

	resized := resizeBilinear(mel, MelBands, TimeFrames)
	return tensor.New(tensor.WithShape(MelBands, TimeFrames), tensor.WithBacking(resized)), nil
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

type filterWeight struct {
	bin    int
	weight float64
}

func hzToMel(f float64) float64 {
	return 2595 * math.Log10(1+f/700)
}

func melToHz(m float64) float64 {
	return 700 * (math.Pow(10, m/2595) - 1)
}

// melFilterbank builds MelBands triangular filters over the FFT bins,
// spanning 0 Hz to the Nyquist frequency. Filters are kept sparse: only
// non-zero weights are stored.
func melFilterbank(rate, bins int) [][]filterWeight {
	nyquist := float64(rate) / 2
	melMax := hzToMel(nyquist)

	centers := make([]float64, MelBands+2)
	for i := range centers {
		hz := melToHz(melMax * float64(i) / float64(MelBands+1))
		centers[i] = hz / nyquist * float64(bins-1)
	}

	filters := make([][]filterWeight, MelBands)
	for m := range filters {
		lo, mid, hi := centers[m], centers[m+1], centers[m+2]
		for b := int(math.Ceil(lo)); b <= int(math.Floor(hi)) && b < bins; b++ {
			fb := float64(b)
			var w float64
			switch {
			case fb < mid && mid > lo:
				w = (fb - lo) / (mid - lo)
			case fb >= mid && hi > mid:
				w = (hi - fb) / (hi - mid)
			}
			if w > 0 {
				filters[m] = append(filters[m], filterWeight{bin: b, weight: w})
			}
		}
	}
	return filters
}

// resizeBilinear resamples src (row-major) to rows x cols, returning a flat
// row-major backing slice.
func resizeBilinear(src [][]float64, rows, cols int) []float64 {
	srcRows := len(src)
	srcCols := len(src[0])
	out := make([]float64, rows*cols)

	for r := range rows {
		var y float64
		if rows > 1 {
			y = float64(r) * float64(srcRows-1) / float64(rows-1)
		}
		y0 := int(y)
		y1 := y0 + 1
		if y1 > srcRows-1 {
			y1 = srcRows - 1
		}
		fy := y - float64(y0)

		for c := range cols {
			var x float64
			if cols > 1 {
				x = float64(c) * float64(srcCols-1) / float64(cols-1)
			}
			x0 := int(x)
			x1 := x0 + 1
			if x1 > srcCols-1 {
				x1 = srcCols - 1
			}
			fx := x - float64(x0)

			top := src[y0][x0]*(1-fx) + src[y0][x1]*fx
			bottom := src[y1][x0]*(1-fx) + src[y1][x1]*fx
			out[r*cols+c] = top*(1-fy) + bottom*fy
		}
	}
	return out
}

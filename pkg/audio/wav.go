package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// Decode reads a WAV file and returns a mono float64 waveform in [-1, 1]
// along with its sample rate. Multi-channel audio is averaged down to mono.
func Decode(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("%s is not a valid wav file", path)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s: %v", path, err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, 0, fmt.Errorf("no samples in %s", path)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	bitDepth := int(d.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += float64(buf.Data[i*channels+c])
		}
		samples[i] = sum / float64(channels) / scale
	}

	return samples, buf.Format.SampleRate, nil
}

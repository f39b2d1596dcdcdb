package audio_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/echolab/voicepair/pkg/audio"
)

func writeWav(t *testing.T, path string, freq float64, samples int) {
	t.Helper()

	const rate = 8000
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           make([]int, samples),
	}
	for i := range buf.Data {
		buf.Data[i] = int(10000 * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close %s: %v", path, err)
	}
}

func TestTransformShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWav(t, path, 440, 4096)

	m, err := audio.Transform(path)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}

	shape := m.Shape()
	if len(shape) != 2 || shape[0] != audio.MelBands || shape[1] != audio.TimeFrames {
		t.Fatalf("unexpected shape %v, want (%d, %d)", shape, audio.MelBands, audio.TimeFrames)
	}

	for i, v := range m.Data().([]float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite value %f at %d", v, i)
		}
	}
}

func TestTransformShortUtterance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blip.wav")
	writeWav(t, path, 440, 100)

	m, err := audio.Transform(path)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	shape := m.Shape()
	if shape[0] != audio.MelBands || shape[1] != audio.TimeFrames {
		t.Fatalf("unexpected shape %v", shape)
	}
}

func TestTransformDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWav(t, path, 220, 4096)

	a, err := audio.Transform(path)
	if err != nil {
		t.Fatalf("first transform failed: %v", err)
	}
	b, err := audio.Transform(path)
	if err != nil {
		t.Fatalf("second transform failed: %v", err)
	}

	da, db := a.Data().([]float64), b.Data().([]float64)
	for i := range da {
		if da[i] != db[i] {
			t.Fatalf("transform not deterministic at %d: %f != %f", i, da[i], db[i])
		}
	}
}

func TestTransformMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	if err := os.WriteFile(path, []byte("not a wav file"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if _, err := audio.Transform(path); err == nil {
		t.Fatal("expected decode error for malformed file")
	}
}

func TestTransformMissingFile(t *testing.T) {
	if _, err := audio.Transform(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

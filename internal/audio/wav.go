package audio

import (
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// DecodeWAV reads a WAV stream into a stereo buffer resampled to sampleRate.
func DecodeWAV(r io.Reader, sampleRate int) (*Buffer, error) {
	s, format, err := wav.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("wav decode: %w", err)
	}
	defer s.Close()

	var stream beep.Streamer = s
	if int(format.SampleRate) != sampleRate {
		stream = beep.Resample(4, format.SampleRate, beep.SampleRate(sampleRate), s)
	}

	var left, right []float32
	chunk := make([][2]float64, 4096)
	for {
		n, ok := stream.Stream(chunk)
		for _, smp := range chunk[:n] {
			left = append(left, float32(smp[0]))
			right = append(right, float32(smp[1]))
		}
		if !ok {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("wav stream: %w", err)
	}

	b := NewBuffer(2, 0, sampleRate)
	b.channels[0] = left
	b.channels[1] = right
	return b, nil
}

// WriteWAV encodes b as 16-bit stereo PCM.
func WriteWAV(w io.WriteSeeker, b *Buffer) error {
	format := beep.Format{
		SampleRate:  beep.SampleRate(b.SampleRate()),
		NumChannels: 2,
		Precision:   2,
	}
	if err := wav.Encode(w, b.Streamer(), format); err != nil {
		return fmt.Errorf("wav encode: %w", err)
	}
	return nil
}

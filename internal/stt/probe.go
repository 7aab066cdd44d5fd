package stt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// ErrNotWAV is returned by Probe for input that is not a RIFF/WAVE file.
var ErrNotWAV = errors.New("not a wav file")

// AudioInfo describes a WAV recording.
type AudioInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// Probe reads the header of a WAV file. Other formats return ErrNotWAV; the
// engine decodes them itself.
func Probe(path string) (AudioInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return AudioInfo{}, ErrNotWAV
	}
	info := AudioInfo{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return info, fmt.Errorf("rewind wav: %w", err)
	}
	duration, err := wav.NewDecoder(f).Duration()
	if err != nil {
		return info, fmt.Errorf("wav duration: %w", err)
	}
	info.Duration = duration
	return info, nil
}

package capture

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"

	"smartnotes/internal/domain"
	"smartnotes/internal/ports"
)

const (
	BlockSize     = 4096
	BitsPerSample = 16
)

// FlacSink writes s16le PCM into FLAC files.
type FlacSink struct {
	SampleRate int
	Channels   int
}

func NewFlacSink(sampleRate, channels int) *FlacSink {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels != 2 {
		channels = 1
	}
	return &FlacSink{SampleRate: sampleRate, Channels: channels}
}

func (s *FlacSink) Extension() string { return ".flac" }

func (s *FlacSink) Create(path string) (ports.CaptureFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating recording file: %w", err)
	}
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    uint32(s.SampleRate),
		NChannels:     uint8(s.Channels),
		BitsPerSample: BitsPerSample,
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	return &FlacFile{
		path:       path,
		file:       f,
		enc:        enc,
		sampleRate: s.SampleRate,
		channels:   s.Channels,
	}, nil
}

// FlacFile buffers interleaved samples until a full block is available.
type FlacFile struct {
	path       string
	file       *os.File
	enc        *flac.Encoder
	sampleRate int
	channels   int

	mu       sync.Mutex
	leftover []byte
	pending  []int16
	frames   uint64
	closed   bool
}

func (f *FlacFile) Write(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return os.ErrClosed
	}

	if len(f.leftover) > 0 {
		pcm = append(f.leftover, pcm...)
		f.leftover = nil
	}
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		f.pending = append(f.pending, int16(uint16(pcm[i*2])|uint16(pcm[i*2+1])<<8))
	}
	if len(pcm)%2 == 1 {
		f.leftover = []byte{pcm[len(pcm)-1]}
	}

	block := BlockSize * f.channels
	for len(f.pending) >= block {
		if err := f.encode(f.pending[:block]); err != nil {
			return err
		}
		f.pending = f.pending[block:]
	}
	return nil
}

// Finalize flushes the partial block and closes the file. Calling it again
// returns the same location.
func (f *FlacFile) Finalize() (domain.RecordingLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		// Drop a trailing half frame of a stereo stream.
		usable := len(f.pending) - len(f.pending)%f.channels
		if usable > 0 {
			if err := f.encode(f.pending[:usable]); err != nil {
				_ = f.file.Close()
				return domain.RecordingLocation{}, err
			}
		}
		f.pending = nil
		if err := f.enc.Close(); err != nil {
			_ = f.file.Close()
			return domain.RecordingLocation{}, fmt.Errorf("closing flac encoder: %w", err)
		}
		if err := f.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			return domain.RecordingLocation{}, fmt.Errorf("closing recording file: %w", err)
		}
	}
	return f.location(), nil
}

func (f *FlacFile) location() domain.RecordingLocation {
	loc := domain.RecordingLocation{
		Path:    f.path,
		Format:  "flac",
		Samples: f.frames,
	}
	if f.sampleRate > 0 {
		loc.Duration = time.Duration(f.frames) * time.Second / time.Duration(f.sampleRate)
	}
	if st, err := os.Stat(f.path); err == nil {
		loc.Bytes = st.Size()
	}
	return loc
}

// encode writes one frame of interleaved samples.
func (f *FlacFile) encode(interleaved []int16) error {
	perChannel := len(interleaved) / f.channels
	subframes := make([]*frame.Subframe, f.channels)
	for ch := range subframes {
		samples := make([]int32, perChannel)
		for i := range samples {
			samples[i] = int32(interleaved[i*f.channels+ch])
		}
		subframes[ch] = &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  perChannel,
		}
	}

	channels := frame.ChannelsMono
	if f.channels == 2 {
		channels = frame.ChannelsLR
	}
	fr := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(perChannel),
			SampleRate:    uint32(f.sampleRate),
			Channels:      channels,
			BitsPerSample: BitsPerSample,
		},
		Subframes: subframes,
	}
	if err := f.enc.WriteFrame(fr); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	f.frames += uint64(perChannel)
	return nil
}

//go:build linux

package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/jfreymuth/pulse"

	"smartnotes/internal/ports"
)

type pulseDevice struct {
	client *pulse.Client
	stream *pulse.RecordStream
}

func openNativeDevice(cfg ports.AudioConfig, deliver func([]byte)) (nativeDevice, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("smartnotes"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}

	writer := pulse.Int16Writer(func(buf []int16) (int, error) {
		if len(buf) == 0 {
			return 0, nil
		}
		data := make([]byte, len(buf)*2)
		for i, s := range buf {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
		}
		deliver(data)
		return len(buf), nil
	})

	opts := []pulse.RecordOption{
		pulse.RecordSampleRate(cfg.SampleRate),
		pulse.RecordLatency(0.05),
	}
	if cfg.Channels == 2 {
		opts = append(opts, pulse.RecordStereo)
	} else {
		opts = append(opts, pulse.RecordMono)
	}
	if cfg.InputDevice != "" && cfg.InputDevice != "default" {
		source, err := client.SourceByID(cfg.InputDevice)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("pulse source %q: %w", cfg.InputDevice, err)
		}
		opts = append(opts, pulse.RecordSource(source))
	}

	stream, err := client.NewRecord(writer, opts...)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pulse record: %w", err)
	}
	stream.Start()
	return &pulseDevice{client: client, stream: stream}, nil
}

func (d *pulseDevice) stop() {
	d.stream.Stop()
	d.stream.Close()
	d.client.Close()
}

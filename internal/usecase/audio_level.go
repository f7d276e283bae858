package usecase

import (
	"encoding/binary"
	"math"
)

// DefaultLevelGain scales RMS energy so normal speech fills most of the meter.
const DefaultLevelGain = 5.0

// audioLevel returns the RMS of little-endian signed 16-bit PCM, scaled by
// gain and clamped to [0, 1]. A trailing odd byte is ignored.
func audioLevel(pcm []byte, gain float64) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < samples; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += v * v
	}

	level := math.Sqrt(sum/float64(samples)) * gain
	switch {
	case math.IsNaN(level) || level <= 0:
		return 0
	case level >= 1:
		return 1
	default:
		return level
	}
}

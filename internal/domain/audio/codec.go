package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Canonical capture format: 16 kHz mono float32.
const (
	CanonicalSampleRate = 16000
	CanonicalChannels   = 1
)

// DecodeChunk converts a raw byte chunk in the named wire format into
// canonical float32 samples. Supported formats: "f32le" (native), "pcm16"
// (signed 16-bit little-endian).
func DecodeChunk(format string, data []byte) ([]float32, error) {
	switch format {
	case "f32le", "":
		return decodeF32LE(data)
	case "pcm16":
		return decodePCM16(data), nil
	default:
		return nil, fmt.Errorf("unsupported audio format %q", format)
	}
}

func decodeF32LE(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("f32le chunk length %d not a multiple of 4", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

func decodePCM16(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(s) / 32768.0
	}
	return out
}

// EncodePCM16 converts canonical float32 samples to signed 16-bit
// little-endian bytes, clamping out-of-range values. Engines that speak a
// PCM wire format (wsasr) use this on the way out.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// Duration reports the playback length of a canonical sample sequence in
// seconds.
func Duration(samples []float32) float64 {
	return float64(len(samples)) / float64(CanonicalSampleRate)
}

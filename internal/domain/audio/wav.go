package audio

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV wraps canonical samples in a mono 16-bit PCM WAV container for
// engines that take file uploads rather than raw streams.
func EncodeWAV(samples []float32) []byte {
	pcm := EncodePCM16(samples)

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(CanonicalSampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(CanonicalSampleRate*2)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))                     // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))                    // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestDecodePCM16RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.999}
	decoded, err := DecodeChunk("pcm16", EncodePCM16(in))
	if err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}
	if len(decoded) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(decoded))
	}
	for i := range in {
		if math.Abs(float64(decoded[i]-in[i])) > 0.001 {
			t.Fatalf("sample %d: expected ~%v, got %v", i, in[i], decoded[i])
		}
	}
}

func TestEncodePCM16Clamps(t *testing.T) {
	out := EncodePCM16([]float32{2.0, -2.0})
	hi := int16(binary.LittleEndian.Uint16(out[0:]))
	lo := int16(binary.LittleEndian.Uint16(out[2:]))
	if hi != 32767 {
		t.Fatalf("positive overflow not clamped: %d", hi)
	}
	if lo != -32767 {
		t.Fatalf("negative overflow not clamped: %d", lo)
	}
}

func TestDecodeF32LE(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(-1))

	got, err := DecodeChunk("f32le", buf)
	if err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}
	if got[0] != 0.25 || got[1] != -1 {
		t.Fatalf("unexpected samples: %v", got)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	if _, err := DecodeChunk("f32le", []byte{1, 2, 3}); err == nil {
		t.Fatalf("expected misaligned f32le to fail")
	}
	if _, err := DecodeChunk("vorbis", nil); err == nil {
		t.Fatalf("expected unknown format to fail")
	}
}

package capture

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV wraps raw PCM data in a minimal RIFF/WAVE header so stored
// segment objects are playable and transcribable as-is.
func EncodeWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	// Writes to bytes.Buffer never fail.
	put := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("RIFF")
	put(uint32(36 + len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	put(uint32(16))
	put(uint16(1)) // PCM format
	put(uint16(channels))
	put(uint32(sampleRate))
	put(uint32(byteRate))
	put(uint16(blockAlign))
	put(uint16(bitsPerSample))

	buf.WriteString("data")
	put(uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

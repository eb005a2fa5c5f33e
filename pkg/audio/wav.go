package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Errors returned by [DecodeWAV] for malformed or unsupported input.
var (
	ErrNotWAV         = errors.New("audio: not a RIFF/WAVE file")
	ErrUnsupportedWAV = errors.New("audio: unsupported WAV encoding")
)

const (
	wavHeaderSize = 44
	fmtChunkSize  = 16
	pcmFormatTag  = 1
)

// EncodeWAV wraps 16-bit little-endian PCM samples in a standard RIFF/WAVE
// container with a single fmt and data chunk.
func EncodeWAV(pcm []byte, f Format) []byte {
	byteRate := f.SampleRate * f.Channels * 2
	blockAlign := f.Channels * 2

	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(out[20:22], pcmFormatTag)
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16) // bits per sample

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)
	return out
}

// DecodeWAV parses a RIFF/WAVE container and returns its format and raw PCM
// samples. Only uncompressed 16-bit PCM is accepted; anything else yields
// [ErrUnsupportedWAV]. Unknown chunks (LIST, fact, …) are skipped.
func DecodeWAV(data []byte) (Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, ErrNotWAV
	}

	var (
		format  Format
		pcm     []byte
		sawFmt  bool
		sawData bool
	)

	// Walk the chunk list after the 12-byte RIFF header.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return Format{}, nil, fmt.Errorf("%w: truncated %q chunk", ErrNotWAV, id)
		}

		switch id {
		case "fmt ":
			if size < fmtChunkSize {
				return Format{}, nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			tag := binary.LittleEndian.Uint16(data[body : body+2])
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if tag != pcmFormatTag || bits != 16 {
				return Format{}, nil, fmt.Errorf("%w: format tag %d, %d bits", ErrUnsupportedWAV, tag, bits)
			}
			format.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			sawFmt = true
		case "data":
			pcm = data[body : body+size]
			sawData = true
		}

		// Chunks are word-aligned; odd sizes carry a pad byte.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !sawFmt || !sawData {
		return Format{}, nil, fmt.Errorf("%w: missing fmt or data chunk", ErrNotWAV)
	}
	if format.Channels <= 0 || format.SampleRate <= 0 {
		return Format{}, nil, fmt.Errorf("%w: invalid fmt values", ErrNotWAV)
	}
	return format, pcm, nil
}

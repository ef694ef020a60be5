package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// wavHeader is the canonical 44-byte RIFF/WAVE header for uncompressed PCM.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 = PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

const wavHeaderSize = 44

// EncodeWAV encodes mono float32 samples in [-1, 1] into a 16-bit PCM WAV
// file. Samples are clamped and scaled asymmetrically — ×0x7FFF for
// non-negative values, ×0x8000 for negative — matching the standard signed
// 16-bit PCM range.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	dataSize := uint32(len(samples) * 2)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     wavHeaderSize - 8 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * numChannels * bitsPerSample / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(samples)*2))
	binary.Write(buf, binary.LittleEndian, header)

	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(floatToInt16(s)))
	}
	buf.Write(pcm)
	return buf.Bytes()
}

// floatToInt16 clamps s to [-1, 1] and scales it to the signed 16-bit range.
func floatToInt16(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7FFF)
}

// DecodeWAV decodes a 16-bit mono PCM WAV file back into float32 samples and
// the sample rate. The inverse of [EncodeWAV].
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < wavHeaderSize {
		return nil, 0, fmt.Errorf("audio: wav data too short: %d bytes", len(data))
	}

	var header wavHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("audio: read wav header: %w", err)
	}
	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("audio: not a RIFF/WAVE file")
	}
	if header.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("audio: unsupported wav format %d (want PCM)", header.AudioFormat)
	}
	if header.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("audio: unsupported bit depth %d (want 16)", header.BitsPerSample)
	}
	if header.NumChannels != 1 {
		return nil, 0, fmt.Errorf("audio: unsupported channel count %d (want mono)", header.NumChannels)
	}

	numSamples := int(header.Subchunk2Size) / 2
	if wavHeaderSize+numSamples*2 > len(data) {
		numSamples = (len(data) - wavHeaderSize) / 2
	}

	samples := make([]float32, numSamples)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[wavHeaderSize+i*2:]))
		if v < 0 {
			samples[i] = float32(v) / 0x8000
		} else {
			samples[i] = float32(v) / 0x7FFF
		}
	}
	return samples, int(header.SampleRate), nil
}

// EncodeWAVBase64 encodes samples as WAV and serializes the result with
// standard base64, the wire shape used for in-flight audio payloads.
func EncodeWAVBase64(samples []float32, sampleRate int) string {
	return base64.StdEncoding.EncodeToString(EncodeWAV(samples, sampleRate))
}

// DecodeWAVBase64 reverses [EncodeWAVBase64].
func DecodeWAVBase64(encoded string) ([]float32, int, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, 0, fmt.Errorf("audio: decode base64: %w", err)
	}
	return DecodeWAV(data)
}

package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Converter turns native-format capture frames into canonical 16 kHz mono
// float32 batches. One instance per session; not safe for concurrent use.
type Converter struct {
	srcRate  int
	channels int
}

// NewConverter validates the device format up front so a bad configuration
// fails at session start instead of sample by sample.
func NewConverter(srcRate, channels int) (*Converter, error) {
	if srcRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", srcRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	return &Converter{srcRate: srcRate, channels: channels}, nil
}

// Frames converts a raw little-endian float32 byte batch from the device
// into a canonical batch. The byte length must be a whole number of frames.
func (c *Converter) Frames(raw []byte) ([]float32, error) {
	frameBytes := 4 * c.channels
	if len(raw)%frameBytes != 0 {
		return nil, fmt.Errorf("batch of %d bytes is not a whole number of %d-byte frames", len(raw), frameBytes)
	}
	samples := bytesToFloat32(raw)
	return c.Samples(samples), nil
}

// Samples converts already-decoded interleaved float32 samples.
func (c *Converter) Samples(samples []float32) []float32 {
	mono := downmix(samples, c.channels)
	return Resample(mono, c.srcRate, CanonicalRate)
}

func bytesToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

func downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	out := make([]float32, len(in)/channels)
	for i := range out {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += in[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// Resample converts between sample rates with linear interpolation. Good
// enough for speech heading into whisper; no filtering.
func Resample(in []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	ratio := float64(dstRate) / float64(srcRate)
	outLen := int(float64(len(in))*ratio + 0.9999)
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}

// Int16ToFloat32 converts 16-bit PCM to the float range whisper expects.
func Int16ToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Float32ToInt16 converts canonical samples to 16-bit PCM with clipping.
func Float32ToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		v := s * 32767.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

package player

import (
	"math"

	"github.com/gopxl/beep/v2"
)

const (
	// targetRMS is the loudness normalization reference level.
	targetRMS = 0.2
	// maxGain clamps normalization in beep's base-2 volume units, so a
	// near-silent measurement never produces an explosive boost.
	maxGain = 3.0

	probeWindow = 4096
)

// normalizationGain measures the RMS level of the [start, end) sample
// window by probing a few points inside it, and returns the base-2
// volume adjustment that brings it to the target level. The streamer's
// position is left unspecified; callers seek afterwards.
func normalizationGain(s beep.StreamSeeker, start, end int) float64 {
	span := end - start
	if span <= 0 {
		return 0
	}

	var sumSquares float64
	var count int
	buf := make([][2]float64, probeWindow)
	for _, frac := range []float64{0.1, 0.5, 0.9} {
		at := start + int(float64(span)*frac)
		if at+probeWindow > end {
			at = end - probeWindow
		}
		if at < start {
			at = start
		}
		if err := s.Seek(at); err != nil {
			continue
		}
		n, _ := s.Stream(buf)
		for i := 0; i < n; i++ {
			mono := (buf[i][0] + buf[i][1]) / 2
			sumSquares += mono * mono
		}
		count += n
	}
	if count == 0 {
		return 0
	}

	rms := math.Sqrt(sumSquares / float64(count))
	if rms < 1e-6 {
		return 0
	}
	gain := math.Log2(targetRMS / rms)
	if gain > maxGain {
		gain = maxGain
	}
	if gain < -maxGain {
		gain = -maxGain
	}
	return gain
}

var _ beep.Streamer = (*clarityFilter)(nil)

// clarityFilter is a first-order high-pass that strips the low-frequency
// rumble and handling noise typical of phone-microphone recordings.
type clarityFilter struct {
	s       beep.Streamer
	alpha   float64
	prevIn  [2]float64
	prevOut [2]float64
}

const clarityCutoffHz = 90.0

func newClarityFilter(s beep.Streamer, sr beep.SampleRate) *clarityFilter {
	dt := 1.0 / float64(sr)
	rc := 1.0 / (2 * math.Pi * clarityCutoffHz)
	return &clarityFilter{s: s, alpha: rc / (rc + dt)}
}

func (c *clarityFilter) Stream(samples [][2]float64) (int, bool) {
	n, ok := c.s.Stream(samples)
	for i := 0; i < n; i++ {
		for ch := 0; ch < 2; ch++ {
			in := samples[i][ch]
			out := c.alpha * (c.prevOut[ch] + in - c.prevIn[ch])
			c.prevIn[ch] = in
			c.prevOut[ch] = out
			samples[i][ch] = out
		}
	}
	return n, ok
}

func (c *clarityFilter) Err() error { return c.s.Err() }

package assets

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/wav"
)

const toneRate = beep.SampleRate(22050)

type WaveType int

const (
	WaveSine WaveType = iota
	WaveTriangle
	WaveSaw
)

type toneSpec struct {
	wave     WaveType
	freq     float64
	peak     float64
	duration time.Duration
	attack   time.Duration
}

// Fallback beeps used when a subject has no usable sound file.
var tones = map[Cue]toneSpec{
	CueHit:  {wave: WaveTriangle, freq: 520, peak: 0.12, duration: 160 * time.Millisecond, attack: 10 * time.Millisecond},
	CueMiss: {wave: WaveSaw, freq: 220, peak: 0.11, duration: 220 * time.Millisecond, attack: 10 * time.Millisecond},
	CueWin:  {wave: WaveSine, freq: 660, peak: 0.13, duration: 400 * time.Millisecond, attack: 10 * time.Millisecond},
}

// Tone renders the fallback beep for c as a mono 16-bit WAV file.
func Tone(c Cue) ([]byte, error) {
	spec, ok := tones[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCue, c)
	}
	osc := NewOscillator(spec.freq, spec.duration, spec.wave, toneRate)
	shaped := NewEnvelope(osc, spec.duration, spec.attack, spec.duration-spec.attack, toneRate)
	s := newVolume(shaped, spec.peak)

	var buf writeSeeker
	format := beep.Format{SampleRate: toneRate, NumChannels: 1, Precision: 2}
	if err := wav.Encode(&buf, s, format); err != nil {
		return nil, fmt.Errorf("encode %s tone: %w", c, err)
	}
	return buf.data, nil
}

type oscillator struct {
	freq     float64
	phase    float64
	duration int
	position int
	wave     WaveType
	rate     beep.SampleRate
}

func NewOscillator(freq float64, duration time.Duration, wave WaveType, rate beep.SampleRate) beep.Streamer {
	return &oscillator{
		freq:     freq,
		duration: rate.N(duration),
		wave:     wave,
		rate:     rate,
	}
}

func (o *oscillator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if o.position >= o.duration {
			return i, i > 0
		}

		var val float64
		switch o.wave {
		case WaveSine:
			val = math.Sin(2 * math.Pi * o.phase)
		case WaveTriangle:
			val = 1 - 4*math.Abs(o.phase-0.5)
		case WaveSaw:
			val = 2.0 * (o.phase - 0.5)
		}
		samples[i][0] = val
		samples[i][1] = val

		o.phase += o.freq / float64(o.rate)
		o.phase -= math.Floor(o.phase)
		o.position++
	}
	return len(samples), true
}

func (o *oscillator) Err() error { return nil }

// envelope ramps up over attack and decays over release.
type envelope struct {
	streamer       beep.Streamer
	position       int
	attackSamples  int
	releaseSamples int
	totalSamples   int
}

func NewEnvelope(s beep.Streamer, duration, attack, release time.Duration, rate beep.SampleRate) beep.Streamer {
	return &envelope{
		streamer:       s,
		attackSamples:  rate.N(attack),
		releaseSamples: rate.N(release),
		totalSamples:   rate.N(duration),
	}
}

func (e *envelope) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = e.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		if e.position >= e.totalSamples {
			return i, i > 0
		}
		vol := 1.0
		if e.position < e.attackSamples {
			vol = float64(e.position) / float64(e.attackSamples)
		}
		releaseStart := e.totalSamples - e.releaseSamples
		if e.releaseSamples > 0 && e.position >= releaseStart {
			vol = float64(e.totalSamples-e.position) / float64(e.releaseSamples)
		}
		samples[i][0] *= vol
		samples[i][1] *= vol
		e.position++
	}
	return n, ok
}

func (e *envelope) Err() error { return e.streamer.Err() }

func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol)}
}

// writeSeeker is an in-memory io.WriteSeeker; wav.Encode patches the header
// after streaming.
type writeSeeker struct {
	data []byte
	pos  int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if end := w.pos + len(p); end > len(w.data) {
		w.data = append(w.data, make([]byte, end-len(w.data))...)
	}
	n := copy(w.data[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(w.pos)
	case io.SeekEnd:
		base = int64(len(w.data))
	default:
		return 0, errors.New("writeSeeker: bad whence")
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("writeSeeker: negative position")
	}
	w.pos = int(next)
	return next, nil
}

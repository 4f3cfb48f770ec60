// Package audio plays a short chime per mood through the system speaker.
package audio

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"

	"github.com/lixenwraith/world-mood/mood"
)

const (
	sampleRate   = beep.SampleRate(48000)
	chimeLength  = 900 * time.Millisecond
	maxVoices    = 6
	bufferLength = 100 * time.Millisecond
)

// scale is a major pentatonic run from C5, one step per catalog entry
var scale = []float64{523.25, 587.33, 659.25, 783.99, 880.00, 1046.50, 1174.66, 1318.51}

// Frequency returns the chime pitch for a mood kind, 0 for unknown kinds
func Frequency(k mood.Kind) float64 {
	i := k.Index()
	if i < 0 || i >= len(scale) {
		return 0
	}
	return scale[i]
}

// SoundManager plays a short chime per mood.
// Every method is a no-op until Initialize succeeds, so the globe runs without an audio device.
type SoundManager struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	volume      *effects.Volume
	initialized bool
	muted       bool
}

// NewSoundManager creates a sound manager; volume is linear in [0,1]
func NewSoundManager(volume float64) *SoundManager {
	mixer := &beep.Mixer{}
	return &SoundManager{
		mixer: mixer,
		volume: &effects.Volume{
			Streamer: mixer,
			Base:     2,
			Volume:   gain(volume),
			Silent:   volume <= 0,
		},
	}
}

// gain maps a linear level to the exponent effects.Volume expects with Base 2
func gain(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Log2(math.Min(v, 1))
}

// Initialize opens the speaker. Calling it again is a no-op.
func (sm *SoundManager) Initialize() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	if err := speaker.Init(sampleRate, sampleRate.N(bufferLength)); err != nil {
		return err
	}

	speaker.Play(sm.volume)
	sm.initialized = true
	return nil
}

// Cleanup silences everything; the speaker stays open because beep cannot reopen it
func (sm *SoundManager) Cleanup() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.initialized {
		return
	}

	speaker.Lock()
	sm.mixer.Clear()
	speaker.Unlock()
	sm.initialized = false
}

// SetMuted toggles output without dropping queued chimes
func (sm *SoundManager) SetMuted(muted bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.muted = muted
}

func (sm *SoundManager) Muted() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.muted
}

// PlayMood queues the chime for k. Unknown kinds and excess voices are dropped.
func (sm *SoundManager) PlayMood(k mood.Kind) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.initialized || sm.muted {
		return
	}
	freq := Frequency(k)
	if freq == 0 {
		return
	}

	speaker.Lock()
	defer speaker.Unlock()
	if sm.mixer.Len() >= maxVoices {
		return
	}
	sm.mixer.Add(beep.Take(sampleRate.N(chimeLength), NewChimeGenerator(sampleRate, freq)))
}

// ChimeGenerator is a bell-like tone: fundamental plus an inharmonic partial,
// with a short attack and exponential decay
type ChimeGenerator struct {
	sr   beep.SampleRate
	freq float64
	pos  int
}

func NewChimeGenerator(sr beep.SampleRate, freq float64) *ChimeGenerator {
	return &ChimeGenerator{sr: sr, freq: freq}
}

func (g *ChimeGenerator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		t := float64(g.pos) / float64(g.sr)

		attack := math.Min(t/0.005, 1.0)
		envelope := attack * math.Exp(-t*5)

		sample := 0.25 * math.Sin(2*math.Pi*g.freq*t)
		sample += 0.08 * math.Sin(2*math.Pi*g.freq*2.76*t) * math.Exp(-t*9)
		sample *= envelope

		samples[i][0] = sample
		samples[i][1] = sample
		g.pos++
	}
	return len(samples), true
}

func (g *ChimeGenerator) Err() error {
	return nil
}

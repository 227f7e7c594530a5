package browser

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Pacer produces human-looking pauses. It is not safe for concurrent use.
type Pacer struct {
	rng *rand.Rand
	// Keystroke is the base delay between typed characters.
	Keystroke time.Duration
	// BreakEvery is the number of sends between long breaks. Zero disables breaks.
	BreakEvery int
	// TypoRate is the chance of a corrected typo per character.
	TypoRate float64
}

// NewPacer returns a pacer seeded from the clock.
func NewPacer(keystroke time.Duration, breakEvery int) *Pacer {
	return newSeededPacer(time.Now().UnixNano(), keystroke, breakEvery)
}

func newSeededPacer(seed int64, keystroke time.Duration, breakEvery int) *Pacer {
	if keystroke <= 0 {
		keystroke = 150 * time.Millisecond
	}
	return &Pacer{
		rng:        rand.New(rand.NewSource(seed)),
		Keystroke:  keystroke,
		BreakEvery: breakEvery,
		TypoRate:   0.02,
	}
}

// Between returns a random duration in [lo, hi).
func (p *Pacer) Between(lo, hi time.Duration) time.Duration {
	if lo >= hi {
		return lo
	}
	return lo + time.Duration(p.rng.Int63n(int64(hi-lo)))
}

// Short is a brief pause between UI interactions.
func (p *Pacer) Short() time.Duration {
	return p.Between(100*time.Millisecond, 500*time.Millisecond)
}

// Wait sleeps for a random duration in [lo, hi) or until ctx is done.
func (p *Pacer) Wait(ctx context.Context, lo, hi time.Duration) error {
	return sleep(ctx, p.Between(lo, hi))
}

// ShouldBreak reports whether a long break is due after sent sends.
func (p *Pacer) ShouldBreak(sent int) bool {
	if p.BreakEvery <= 0 || sent <= 0 || sent%p.BreakEvery != 0 {
		return false
	}
	return p.rng.Float64() < 0.7
}

// BreakDuration is how long a long break lasts.
func (p *Pacer) BreakDuration() time.Duration {
	return p.Between(10*time.Minute, 30*time.Minute)
}

// KeystrokeDelay returns the pause after typing the character at position.
func (p *Pacer) KeystrokeDelay(position int) time.Duration {
	base := p.Keystroke
	if position < 3 {
		base = base * 4 / 3
	}
	// Occasional hesitation.
	if p.rng.Float64() < 0.1 {
		base = p.Between(300*time.Millisecond, 800*time.Millisecond)
	}
	factor := 1 + (p.rng.Float64()*2-1)*0.4
	return time.Duration(float64(base) * factor)
}

// typo returns a neighbouring key for r and whether one should be typed.
func (p *Pacer) typo(r rune) (rune, bool) {
	if p.rng.Float64() >= p.TypoRate {
		return r, false
	}
	neighbours, ok := keyNeighbours[toLowerRune(r)]
	if !ok {
		return r, false
	}
	return rune(neighbours[p.rng.Intn(len(neighbours))]), true
}

var keyNeighbours = map[rune]string{
	'a': "sqw", 'b': "vn", 'c': "xv", 'd': "sf", 'e': "wr", 'f': "dg",
	'g': "fh", 'h': "gj", 'i': "uo", 'j': "hk", 'k': "jl", 'l': "ko",
	'm': "n", 'n': "bm", 'o': "ip", 'p': "o", 'q': "wa", 'r': "et",
	's': "ad", 't': "ry", 'u': "yi", 'v': "cb", 'w': "qe", 'x': "zc",
	'y': "tu", 'z': "x",
}

func toLowerRune(r rune) rune {
	return []rune(strings.ToLower(string(r)))[0]
}

// point is a screen coordinate.
type point struct {
	X, Y float64
}

// mousePath returns a cubic Bézier path from start to end with steps+1 points.
func (p *Pacer) mousePath(start, end point, steps int) []point {
	dx, dy := end.X-start.X, end.Y-start.Y
	dist := math.Hypot(dx, dy)
	c1 := point{
		X: start.X + dx*0.25 + (p.rng.Float64()-0.5)*dist*0.3,
		Y: start.Y + dy*0.25 + (p.rng.Float64()-0.5)*dist*0.3,
	}
	c2 := point{
		X: start.X + dx*0.75 + (p.rng.Float64()-0.5)*dist*0.3,
		Y: start.Y + dy*0.75 + (p.rng.Float64()-0.5)*dist*0.3,
	}
	return bezier(start, c1, c2, end, steps)
}

func bezier(p0, p1, p2, p3 point, steps int) []point {
	if steps < 1 {
		steps = 1
	}
	out := make([]point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		u := 1 - t
		out = append(out, point{
			X: u*u*u*p0.X + 3*u*u*t*p1.X + 3*u*t*t*p2.X + t*t*t*p3.X,
			Y: u*u*u*p0.Y + 3*u*u*t*p1.Y + 3*u*t*t*p2.Y + t*t*t*p3.Y,
		})
	}
	return out
}

// mouseStepDelay is slower near both ends of a path.
func mouseStepDelay(progress float64) time.Duration {
	speed := 1 - math.Abs(2*progress-1)
	return time.Duration(float64(10*time.Millisecond) / (speed + 0.5))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

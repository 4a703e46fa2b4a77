package renderer

import (
	"math"
	"time"

	"github.com/fogleman/gg"

	"github.com/linuxmatters/jivewave/internal/config"
)

// MaxParticleSize is the largest particle radius in reference pixels before
// the pulse factor is applied.
const MaxParticleSize = 5.0

// burstPeriod is the length of one radial burst cycle
const burstPeriod = 3 * time.Second

// Particle populations, used to decorrelate their hashes
const (
	popRising = iota + 1
	popBurst
	popOrbital
	popDust
)

// ParticleInput parameterises one frame of the particle field
type ParticleInput struct {
	W, H      float64
	Time      time.Duration
	Count     int
	Pulse     float64
	Seed      int64
	Primary   config.RGB
	Secondary config.RGB
}

// Particle is one drawn dot
type Particle struct {
	X, Y  float64
	Size  float64 // radius in pixels
	Alpha float64
	Color config.RGB
}

// hash01 maps (seed, population, index, salt) to [0,1)
func hash01(seed int64, pop, i, salt int) float64 {
	z := uint64(seed) ^ uint64(pop)<<56 ^ uint64(i)<<20 ^ uint64(salt)
	z += 0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z ^= z >> 31
	return float64(z>>11) / (1 << 53)
}

// wrap returns v modulo m in [0, m)
func wrap(v, m float64) float64 {
	if m <= 0 {
		return 0
	}
	r := math.Mod(v, m)
	if r < 0 {
		r += m
	}
	return r
}

// ForEachParticle computes every particle of the frame from (index, time,
// seed) alone and passes it to fn in draw order.
func ForEachParticle(in ParticleInput, fn func(Particle)) {
	if in.Count <= 0 || in.W <= 0 || in.H <= 0 {
		return
	}
	pulse := in.Pulse
	if !(pulse >= 1) {
		pulse = 1
	}
	scale := in.H / config.ReferenceHeight
	t := in.Time.Seconds()
	minDim := math.Min(in.W, in.H)
	cx, cy := in.W/2, in.H/2

	pick := func(h float64) config.RGB {
		if h < 0.5 {
			return in.Primary
		}
		return in.Secondary
	}

	// Rising: drift upwards and loop vertically
	for i := 0; i < in.Count; i++ {
		h := func(salt int) float64 { return hash01(in.Seed, popRising, i, salt) }
		speed := (0.03 + 0.07*h(1)) * in.H
		travel := in.H + 20*scale
		y := in.H + 10*scale - wrap(h(2)*travel+speed*t, travel)
		x := h(0)*in.W + math.Sin(t*(0.5+h(3))+h(4)*2*math.Pi)*20*scale
		fn(Particle{
			X:     x,
			Y:     y,
			Size:  (1 + 2*h(5)) * scale * pulse,
			Alpha: 0.3 + 0.5*h(6),
			Color: pick(h(7)),
		})
	}

	// Burst: explode from the centre on a repeating phase
	for i := 0; i < in.Count/2; i++ {
		h := func(salt int) float64 { return hash01(in.Seed, popBurst, i, salt) }
		phase := wrap(in.Time.Seconds()/burstPeriod.Seconds()+h(0), 1)
		angle := h(1) * 2 * math.Pi
		dist := phase * (0.1 + 0.4*h(2)) * minDim
		fn(Particle{
			X:     cx + math.Cos(angle)*dist,
			Y:     cy + math.Sin(angle)*dist,
			Size:  MaxParticleSize * (1 - phase) * (0.5 + 0.5*h(3)) * scale * pulse,
			Alpha: 0.8 * (1 - phase),
			Color: pick(h(4)),
		})
	}

	// Orbital: sparkles on fixed radii, alternating direction
	for i := 0; i < in.Count/4; i++ {
		h := func(salt int) float64 { return hash01(in.Seed, popOrbital, i, salt) }
		radius := (0.25 + 0.05*float64(i%4)) * minDim
		dir := 1.0
		if i%2 == 1 {
			dir = -1
		}
		angle := h(0)*2*math.Pi + dir*t*(0.3+0.4*h(1))
		fn(Particle{
			X:     cx + math.Cos(angle)*radius,
			Y:     cy + math.Sin(angle)*radius,
			Size:  (1.5 + 1.5*h(2)) * scale * pulse,
			Alpha: 0.4 + 0.4*math.Abs(math.Sin(t*3+h(3)*2*math.Pi)),
			Color: pick(h(4)),
		})
	}

	// Dust: faint ambient specks
	for i := 0; i < in.Count/2; i++ {
		h := func(salt int) float64 { return hash01(in.Seed, popDust, i, salt) }
		fn(Particle{
			X:     wrap(h(0)*in.W+t*(h(2)-0.5)*10*scale, in.W),
			Y:     wrap(h(1)*in.H+t*3*scale, in.H),
			Size:  (0.5 + h(3)) * scale,
			Alpha: 0.05 + 0.1*h(4),
			Color: in.Secondary,
		})
	}
}

// DrawParticles draws the particle field
func DrawParticles(dc *gg.Context, in ParticleInput) {
	ForEachParticle(in, func(p Particle) {
		if p.Size <= 0 || p.Alpha <= 0 {
			return
		}
		r, g, b := p.Color.Floats()
		dc.SetRGBA(r, g, b, p.Alpha)
		dc.DrawCircle(p.X, p.Y, p.Size)
		dc.Fill()
	})
}

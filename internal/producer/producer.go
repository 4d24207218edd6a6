// Package producer generates a stream of snapshots from a small world of
// entities orbiting fixed centres. It stands in for a game server when
// exercising the feed.
package producer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jarvis394/snapshot-interpolation/lerp"
	"github.com/jarvis394/snapshot-interpolation/snapshot"
)

const (
	DefaultCollection = "entities"
	defaultEntities   = 8
	defaultTickRate   = 20
	catchupMaxTicks   = 4
)

// Config tunes the generated world.
type Config struct {
	Collection string
	Entities   int
	TickRate   float64
	Now        func() time.Time
}

type body struct {
	id       int64
	cx, cy   float64
	radius   float64
	speed    float64
	phase    float64
	spinRate float64
}

// Producer owns the world and stamps each emitted snapshot with the next
// sequence number and the producer clock. Not safe for concurrent use.
type Producer struct {
	collection string
	tickRate   float64
	now        func() time.Time

	sequence uint64
	elapsed  float64
	bodies   []body
}

func New(cfg Config) *Producer {
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	count := cfg.Entities
	if count <= 0 {
		count = defaultEntities
	}
	tickRate := cfg.TickRate
	if tickRate <= 0 {
		tickRate = defaultTickRate
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	bodies := make([]body, count)
	for i := range bodies {
		fi := float64(i)
		bodies[i] = body{
			id:       int64(i + 1),
			cx:       100 + 50*float64(i%4),
			cy:       100 + 50*float64(i/4),
			radius:   20 + 5*float64(i%3),
			speed:    0.5 + 0.25*fi,
			phase:    fi * math.Pi / 4,
			spinRate: 1 + 0.5*float64(i%2),
		}
	}

	return &Producer{
		collection: collection,
		tickRate:   tickRate,
		now:        now,
		bodies:     bodies,
	}
}

// Advance moves the world forward by dt.
func (p *Producer) Advance(dt time.Duration) {
	if dt > 0 {
		p.elapsed += dt.Seconds()
	}
}

// Sequence returns the sequence of the last emitted snapshot.
func (p *Producer) Sequence() uint64 {
	return p.sequence
}

// Snapshot captures the current world.
func (p *Producer) Snapshot() snapshot.Snapshot {
	p.sequence++
	entities := make([]snapshot.Entity, len(p.bodies))
	for i, b := range p.bodies {
		angle := b.phase + b.speed*p.elapsed
		spin := math.Mod(b.spinRate*p.elapsed, 2*math.Pi)
		half := spin / 2
		entities[i] = snapshot.Entity{
			ID: snapshot.IntID(b.id),
			Fields: map[string]snapshot.Value{
				"x":           snapshot.Number(b.cx + b.radius*math.Cos(angle)),
				"y":           snapshot.Number(b.cy + b.radius*math.Sin(angle)),
				"heading":     snapshot.Number(normalizeDegrees(angle*180/math.Pi + 90)),
				"spin":        snapshot.Number(spin),
				"orientation": snapshot.Quaternion(lerp.Quat{Z: math.Sin(half), W: math.Cos(half)}),
				"label":       snapshot.String(fmt.Sprintf("drone-%d", b.id)),
			},
		}
	}
	return snapshot.Snapshot{
		Sequence:  p.sequence,
		Timestamp: p.now().UnixMilli(),
		State:     snapshot.State{p.collection: entities},
	}
}

// Run advances the world at the tick rate and passes every snapshot to emit
// until ctx is cancelled. Long stalls advance the world by at most a few
// ticks.
func (p *Producer) Run(ctx context.Context, emit func(snapshot.Snapshot)) {
	budget := time.Duration(float64(time.Second) / p.tickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	maxDt := budget * catchupMaxTicks
	last := p.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := p.now()
			dt := now.Sub(last)
			if dt <= 0 {
				dt = budget
			} else if dt > maxDt {
				dt = maxDt
			}
			last = now

			p.Advance(dt)
			emit(p.Snapshot())
		}
	}
}

func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

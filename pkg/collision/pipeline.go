// pkg/collision/pipeline.go
package collision

import "github.com/MansenC/BarrelShooter/pkg/physics"

// Pipeline runs the broad phase, narrow phase and impulse resolution for one tick.
type Pipeline struct {
	Broad    BroadPhase
	Detector *Detector

	// OnContact is called after a pair has been resolved and its hit
	// latches have fired. impulse is zero when no impulse was applied.
	OnContact func(a, b *physics.Rigidbody, c physics.Contact, impulse float64)

	// OnPanic, when set, recovers a panic raised while handling a pair so
	// the remaining pairs are still processed.
	OnPanic func(a, b *physics.Rigidbody, recovered any)
}

// NewPipeline creates a pipeline with the given narrow phase limits.
func NewPipeline(maxIterations int, epsilon float64) *Pipeline {
	return &Pipeline{Detector: NewDetector(maxIterations, epsilon)}
}

// Run processes every candidate pair and returns the number of contacts found.
func (p *Pipeline) Run(bodies []*physics.Rigidbody) int {
	contacts := 0
	p.Broad.Pairs(bodies, func(a, b *physics.Rigidbody) {
		if p.handle(a, b) {
			contacts++
		}
	})
	return contacts
}

func (p *Pipeline) handle(a, b *physics.Rigidbody) (touched bool) {
	if p.OnPanic != nil {
		defer func() {
			if r := recover(); r != nil {
				p.OnPanic(a, b, r)
			}
		}()
	}

	c, ok := p.Detector.Collide(a, b)
	if !ok {
		return false
	}
	touched = true

	impulse := Resolve(a, b, c)
	NotifyHit(a, b, c)
	if p.OnContact != nil {
		p.OnContact(a, b, c, impulse)
	}
	return touched
}

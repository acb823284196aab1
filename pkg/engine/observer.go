package engine

import (
	"time"

	"github.com/picogrid/squad-sim/pkg/entity"
)

// TickReport is the outcome of one tick across the squad.
type TickReport struct {
	Tick    uint64
	Started time.Time
	Elapsed time.Duration
	Budget  time.Duration
	Results []entity.StepResult
}

// Overrun reports whether the tick took longer than its budget.
func (r TickReport) Overrun() bool { return r.Elapsed > r.Budget }

// Count returns how many results in phase had status.
func (r TickReport) Count(phase entity.Phase, status entity.Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Phase == phase && res.Status == status {
			n++
		}
	}
	return n
}

// Observer is told about lifecycle events and every completed tick. Calls
// come from the engine goroutine, one at a time.
type Observer interface {
	EntityConnected(id string, err error)
	TickCompleted(report TickReport)
	EntityDisconnected(id string, err error)
}

// Observers fans events out to each observer in order.
type Observers []Observer

func (o Observers) EntityConnected(id string, err error) {
	for _, obs := range o {
		obs.EntityConnected(id, err)
	}
}

func (o Observers) TickCompleted(report TickReport) {
	for _, obs := range o {
		obs.TickCompleted(report)
	}
}

func (o Observers) EntityDisconnected(id string, err error) {
	for _, obs := range o {
		obs.EntityDisconnected(id, err)
	}
}

type nopObserver struct{}

func (nopObserver) EntityConnected(string, error)    {}
func (nopObserver) TickCompleted(TickReport)         {}
func (nopObserver) EntityDisconnected(string, error) {}

// Package sm implements the state machine framework and one-Hz timer
// substrate used to run the protocol: each machine is a named enum of states
// plus a pure transition function, and a Driver iterates every machine of a
// bridge to a fixed point on every event.
package sm

// Timer is a non-negative integer decremented on tick, saturating at zero
// . Machines test `timer == 0` in their transition tables.
type Timer uint16

// Tick decrements t by one second, never going negative.
func (t *Timer) Tick() {
	if *t > 0 {
		*t--
	}
}

// Expired reports whether the timer has reached zero.
func (t Timer) Expired() bool { return t == 0 }

// Machine is implemented by every per-port and per-tree-per-port state
// machine. Step runs one transition attempt and reports whether state
// changed, so Driver can detect quiescence. Step must be side-effect-free
// beyond mutating the machine's own declared state variables.
type Machine interface {
	// Step attempts one transition. It returns true if a transition was
	// taken (so the driver must run another pass).
	Step() bool
}

// Driver runs a fixed, declared-order list of machines to a fixed point:
// repeat the pass over all machines until an entire pass makes no
// transition. Ordering within a pass does not affect the
// fixed point reached (802.1Q theorem); the declared order must still be
// preserved for reproducibility and so each machine's entry actions run
// against a consistent view of the others.
type Driver struct {
	Machines []Machine
}

// RunToFixedPoint iterates Driver.Machines until a full pass transitions
// nothing, or maxPasses is exhausted (a safety backstop — a correctly
// specified machine set always converges well under this bound).
func (d *Driver) RunToFixedPoint(maxPasses int) (passes int) {
	for ; passes < maxPasses; passes++ {
		anyTransitioned := false
		for _, m := range d.Machines {
			if m.Step() {
				anyTransitioned = true
			}
		}
		if !anyTransitioned {
			return passes
		}
	}
	return passes
}

package execenv

import (
	"runtime"
	"runtime/debug"
)

// gcPercent keeps the heap of the accounts tree caches from doubling before
// a collection
const gcPercent = 20

// Initialize initializes the execution environment required to run nipowd
func Initialize() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	debug.SetGCPercent(gcPercent)
}

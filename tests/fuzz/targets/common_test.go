package targets

import (
	"os"
	"runtime"
	"sync"
)

var fuzzProcsOnce sync.Once

// capFuzzProcs keeps fuzz workers from saturating the machine. Callers
// that set GOMAXPROCS explicitly keep whatever they asked for.
func capFuzzProcs() {
	fuzzProcsOnce.Do(func() {
		if _, ok := os.LookupEnv("GOMAXPROCS"); ok {
			return
		}
		limit := runtime.NumCPU()
		if limit > 4 {
			limit = 4
		}
		if runtime.GOMAXPROCS(0) > limit {
			runtime.GOMAXPROCS(limit)
		}
	})
}

package prover

import (
	"runtime"
	"time"
)

const (
	defaultCurve         = "bn254"
	defaultMaxQueuedJobs = 1024
	defaultProofTimeout  = 10 * time.Minute
	defaultParallelSetup = true
	defaultKeysDir       = ""
)

// defaultMaxConcurrentProofs 证明计算是CPU密集型，默认按核数的一半并发
func defaultMaxConcurrentProofs() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}

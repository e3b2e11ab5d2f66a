package pipeline

import (
	"runtime"
	"runtime/debug"
)

// memoryUtilization reports heap usage as a fraction of memory obtained from
// the OS. Checked between batches so a long document on a small box degrades
// to smaller chunks instead of getting OOM-killed.
func memoryUtilization() float64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	if stats.Sys == 0 {
		return 0
	}
	return float64(stats.HeapAlloc) / float64(stats.Sys)
}

// relieve returns memory to the OS and lowers the chunk word target by 20%,
// floored at MinChunkWords.
func (o *Orchestrator) relieve(target int) int {
	debug.FreeOSMemory()
	shrunk := target * 80 / 100
	if shrunk < o.config.MinChunkWords {
		shrunk = o.config.MinChunkWords
	}
	return shrunk
}

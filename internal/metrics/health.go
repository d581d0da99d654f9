package metrics

import (
	"io/fs"
	"path/filepath"
	"runtime"

	"github.com/dustin/go-humanize"
)

// Health is a point-in-time view of the process and its state directory.
type Health struct {
	HeapMB     uint64
	ReservedMB uint64
	GCCycles   uint32
	Goroutines int
	StateFiles int
	StateBytes uint64
}

// ReadHealth samples the runtime and sums the regular files under stateDir.
// A missing directory reads as empty.
func ReadHealth(stateDir string) Health {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	h := Health{
		HeapMB:     ms.HeapAlloc >> 20,
		ReservedMB: ms.Sys >> 20,
		GCCycles:   ms.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
	h.StateFiles, h.StateBytes = scanState(stateDir)
	return h
}

// StateSize renders StateBytes in binary units, e.g. "3.0 KiB".
func (h Health) StateSize() string {
	return humanize.IBytes(h.StateBytes)
}

func scanState(dir string) (files int, size uint64) {
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			// removed between listing and stat
			return nil
		}
		files++
		size += uint64(info.Size())
		return nil
	})
	return files, size
}

package pipeline

import (
	"bytes"

	"github.com/voxlate/voxlate/pkg/file"
	"github.com/voxlate/voxlate/pkg/log"
)

// OutputFileName is the well-known name of the final track inside a job's
// working directory.
const OutputFileName = "dubbed_audio.mp3"

// Assembler restores transcript order for audio fragments that complete out
// of order. Fragments ahead of the cursor are buffered; explicit skips
// satisfy their sequence number without audio; duplicates are dropped. The
// assembler is driven by a single goroutine, so it needs no locking.
type Assembler struct {
	nextExpected uint64
	pending      map[uint64]Result
	track        bytes.Buffer
	appended     int
}

func NewAssembler() *Assembler {
	return &Assembler{
		pending: make(map[uint64]Result),
	}
}

// Accept feeds one stage result into the assembler.
func (a *Assembler) Accept(result Result) {
	if result.Seq < a.nextExpected {
		log.Warn("Assembler: dropping duplicate fragment %d (cursor at %d)", result.Seq, a.nextExpected)
		return
	}
	if result.Seq > a.nextExpected {
		a.pending[result.Seq] = result
		return
	}

	a.apply(result)
	for {
		buffered, ok := a.pending[a.nextExpected]
		if !ok {
			return
		}
		delete(a.pending, a.nextExpected)
		a.apply(buffered)
	}
}

func (a *Assembler) apply(result Result) {
	if !result.Skipped {
		a.track.Write(result.Bytes)
		a.appended++
	}
	a.nextExpected++
}

// Empty reports whether no audio was appended at all.
func (a *Assembler) Empty() bool {
	return a.appended == 0
}

// FragmentCount is the number of fragments appended to the track so far.
func (a *Assembler) FragmentCount() int {
	return a.appended
}

// Track returns the assembled audio bytes in sequence order.
func (a *Assembler) Track() []byte {
	return a.track.Bytes()
}

// WriteTo finalizes the track into path. Callers must ensure the track is
// non-empty first.
func (a *Assembler) WriteTo(path string) error {
	return file.WriteAtomic(path, a.track.Bytes())
}

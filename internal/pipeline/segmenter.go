package pipeline

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

const unitChannelCapacity = 16

// Segmenter regroups a live stream of transcript fragments into discrete
// TranslationUnits. A unit is flushed when the accumulator grows past
// flushChars, or when flushInterval has elapsed since the last flush. The
// time trigger also fires while no fragments arrive, so a trailing thought is
// not held indefinitely.
type Segmenter struct {
	flushChars    int
	flushInterval time.Duration
}

func NewSegmenter(flushChars int, flushInterval time.Duration) *Segmenter {
	if flushChars <= 0 {
		flushChars = 150
	}
	if flushInterval <= 0 {
		flushInterval = 3 * time.Second
	}
	return &Segmenter{
		flushChars:    flushChars,
		flushInterval: flushInterval,
	}
}

// Run consumes fragments until the channel closes or ctx is done, emitting
// units on the returned channel. The remaining accumulator is flushed as a
// final unit before the output channel closes. Fragments that are empty or
// whitespace-only are discarded.
func (s *Segmenter) Run(ctx context.Context, fragments <-chan string) <-chan TranslationUnit {
	out := make(chan TranslationUnit, unitChannelCapacity)

	go func() {
		defer close(out)

		var accumulator string
		var seq uint64

		timer := time.NewTimer(s.flushInterval)
		defer timer.Stop()

		resetTimer := func() {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.flushInterval)
		}

		flush := func() bool {
			resetTimer()
			if accumulator == "" {
				return true
			}
			unit := TranslationUnit{Seq: seq, Text: accumulator}
			seq++
			accumulator = ""
			select {
			case out <- unit:
				return true
			default:
			}
			select {
			case out <- unit:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case fragment, ok := <-fragments:
				if !ok {
					flush()
					return
				}
				if strings.TrimSpace(fragment) == "" {
					continue
				}
				if accumulator == "" {
					accumulator = fragment
				} else {
					accumulator += " " + fragment
				}
				// Characters, not bytes: multibyte transcripts must fill the
				// same number of characters before a length flush.
				if utf8.RuneCountInString(accumulator) > s.flushChars {
					if !flush() {
						return
					}
				}
			case <-timer.C:
				if accumulator == "" {
					timer.Reset(s.flushInterval)
					continue
				}
				if !flush() {
					return
				}
			case <-ctx.Done():
				flush()
				return
			}
		}
	}()

	return out
}

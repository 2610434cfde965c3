package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectUnits(t *testing.T, out <-chan TranslationUnit, timeout time.Duration) []TranslationUnit {
	t.Helper()

	units := make([]TranslationUnit, 0)
	deadline := time.After(timeout)
	for {
		select {
		case unit, ok := <-out:
			if !ok {
				return units
			}
			units = append(units, unit)
		case <-deadline:
			t.Fatalf("timed out waiting for segmenter to close, got %d units", len(units))
		}
	}
}

func TestSegmenter_FlushesWhenLengthExceeded(t *testing.T) {
	s := NewSegmenter(20, time.Minute)
	fragments := make(chan string, 8)
	out := s.Run(context.Background(), fragments)

	fragments <- "aaaaaaaaaa"
	fragments <- "bbbbbbbbbb"

	select {
	case unit := <-out:
		assert.Equal(t, uint64(0), unit.Seq)
		assert.Equal(t, "aaaaaaaaaa bbbbbbbbbb", unit.Text)
	case <-time.After(time.Second):
		t.Fatal("expected a length-triggered flush")
	}
	close(fragments)
	collectUnits(t, out, time.Second)
}

func TestSegmenter_IdleFlushFiresWithoutNewFragments(t *testing.T) {
	s := NewSegmenter(1000, 50*time.Millisecond)
	fragments := make(chan string, 1)
	out := s.Run(context.Background(), fragments)

	fragments <- "trailing thought"

	select {
	case unit := <-out:
		assert.Equal(t, uint64(0), unit.Seq)
		assert.Equal(t, "trailing thought", unit.Text)
	case <-time.After(time.Second):
		t.Fatal("expected an idle flush")
	}
	close(fragments)
	collectUnits(t, out, time.Second)
}

func TestSegmenter_FlushesRemainderAtStreamEnd(t *testing.T) {
	s := NewSegmenter(1000, time.Minute)
	fragments := make(chan string, 2)
	fragments <- "left"
	fragments <- "over"
	close(fragments)

	units := collectUnits(t, s.Run(context.Background(), fragments), time.Second)
	require.Len(t, units, 1)
	assert.Equal(t, "left over", units[0].Text)
}

func TestSegmenter_EmptyStreamProducesNoUnits(t *testing.T) {
	s := NewSegmenter(150, time.Minute)
	fragments := make(chan string)
	close(fragments)

	units := collectUnits(t, s.Run(context.Background(), fragments), time.Second)
	assert.Empty(t, units)
}

func TestSegmenter_DiscardsWhitespaceOnlyFragments(t *testing.T) {
	s := NewSegmenter(1000, time.Minute)
	fragments := make(chan string, 4)
	fragments <- ""
	fragments <- "   "
	fragments <- "kept"
	close(fragments)

	units := collectUnits(t, s.Run(context.Background(), fragments), time.Second)
	require.Len(t, units, 1)
	assert.Equal(t, "kept", units[0].Text)
}

func TestSegmenter_NoFragmentLostNoDuplicateFlush(t *testing.T) {
	s := NewSegmenter(30, time.Minute)
	words := []string{
		"alpha", "bravo", "charlie", "delta", "echo", "foxtrot",
		"golf", "hotel", "india", "juliett", "kilo", "lima",
	}
	fragments := make(chan string, len(words))
	for _, w := range words {
		fragments <- w
	}
	close(fragments)

	units := collectUnits(t, s.Run(context.Background(), fragments), time.Second)
	require.NotEmpty(t, units)

	texts := make([]string, 0, len(units))
	for i, unit := range units {
		assert.Equal(t, uint64(i), unit.Seq, "sequence numbers must be contiguous from 0")
		texts = append(texts, unit.Text)
	}
	assert.Equal(t, strings.Join(words, " "), strings.Join(texts, " "))
}

func TestSegmenter_IdleFlushSplitsUnitsInScenario(t *testing.T) {
	// Timer pinned at 100ms: the idle flush between the short fragments and
	// the long one yields exactly two units.
	s := NewSegmenter(150, 100*time.Millisecond)
	long := "this is a test sentence that is long enough to force a flush " +
		"because it exceeds one hundred fifty characters in total length " +
		"for sure and then some padding on top of that"

	fragments := make(chan string)
	out := s.Run(context.Background(), fragments)

	fragments <- "hello"
	fragments <- "world"

	var first TranslationUnit
	select {
	case first = <-out:
	case <-time.After(time.Second):
		t.Fatal("expected an idle flush for the first unit")
	}
	assert.Equal(t, "hello world", first.Text)

	fragments <- long
	close(fragments)

	units := collectUnits(t, out, time.Second)
	require.Len(t, units, 1)
	assert.Equal(t, uint64(1), units[0].Seq)
	assert.Equal(t, long, units[0].Text)
}

func TestSegmenter_ThresholdCountsCharactersNotBytes(t *testing.T) {
	s := NewSegmenter(150, time.Minute)
	fragments := make(chan string, 8)
	out := s.Run(context.Background(), fragments)

	// Five 10-character CJK fragments: 54 characters joined, 166 bytes. Well
	// under the threshold, so nothing may flush before the stream ends.
	cjk := []string{
		"你好世界今天天气很好",
		"我们正在测试一个系统",
		"这个系统把语音翻译好",
		"然后再合成为目标语言",
		"片段的顺序必须被保留",
	}
	for _, fragment := range cjk {
		fragments <- fragment
	}

	select {
	case unit := <-out:
		t.Fatalf("premature length flush of %q", unit.Text)
	case <-time.After(100 * time.Millisecond):
	}

	close(fragments)
	units := collectUnits(t, out, time.Second)
	require.Len(t, units, 1)
	assert.Equal(t, strings.Join(cjk, " "), units[0].Text)

	// The same characters do trip a threshold expressed in characters.
	s = NewSegmenter(30, time.Minute)
	fragments = make(chan string, 8)
	out = s.Run(context.Background(), fragments)
	fragments <- cjk[0]
	fragments <- cjk[1]
	fragments <- cjk[2]
	close(fragments)

	units = collectUnits(t, out, time.Second)
	require.Len(t, units, 1)
	assert.Equal(t, strings.Join(cjk[:3], " "), units[0].Text)
}

func TestSegmenter_ContextCancelFlushesAccumulator(t *testing.T) {
	s := NewSegmenter(1000, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	fragments := make(chan string, 1)
	out := s.Run(ctx, fragments)

	fragments <- "partial"
	time.Sleep(20 * time.Millisecond)
	cancel()

	units := collectUnits(t, out, time.Second)
	require.Len(t, units, 1)
	assert.Equal(t, "partial", units[0].Text)
}

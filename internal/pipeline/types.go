package pipeline

// TranslationUnit is one coherent chunk of source-language transcript text,
// ready for translation. Sequence numbers start at 0 and increase by exactly
// one per unit per job, assigned by the segmenter at flush time.
type TranslationUnit struct {
	Seq  uint64
	Text string
}

// Result is the outcome of translate+synthesize for one unit: either an audio
// fragment, or a definitive skip after a non-fatal failure. Skips are reported
// explicitly so the assembler can advance past the gap instead of waiting for
// audio that will never arrive.
type Result struct {
	Seq     uint64
	Bytes   []byte
	Skipped bool
}

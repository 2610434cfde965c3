package media

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertArgs(t *testing.T) {
	ff := NewFfmpeg(24000)
	args := ff.convertArgs("/tmp/dubbed_audio.mp3", "/tmp/converted_dubbed_audio.mp3")
	assert.Equal(t, []string{
		"-i", "/tmp/dubbed_audio.mp3",
		"-ar", "24000",
		"-ac", "1",
		"-y",
		"/tmp/converted_dubbed_audio.mp3",
	}, args)
}

func TestConvertedName(t *testing.T) {
	got := convertedName(filepath.Join("/media", "dubbed", "x", "dubbed_audio.mp3"))
	assert.Equal(t, filepath.Join("/media", "dubbed", "x", "converted_dubbed_audio.mp3"), got)
}

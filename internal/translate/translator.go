package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/errs"
	"github.com/voxlate/voxlate/internal/llm"
	"github.com/voxlate/voxlate/pkg/log"
)

const systemPrompt = "You are a professional translator. " +
	"Translate the user's text faithfully and output only the translation, " +
	"with no explanations and no quotes."

// LLMTranslator translates transcript units through an OpenAI-compatible
// chat completion API. When the source language is "auto" the unit's text is
// language-detected so the prompt can name the source explicitly.
type LLMTranslator struct {
	client *llm.Client
}

func NewLLMTranslator(cfg config.LLMConfig) (*LLMTranslator, error) {
	client, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.APIKey,
		APIURL:      cfg.APIURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	return &LLMTranslator{client: client}, nil
}

func (t *LLMTranslator) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errs.New(errs.TypeTranslation, "empty text")
	}

	prompt := buildPrompt(text, sourceLanguage, targetLanguage)
	translated, err := t.client.SimpleChat(ctx, prompt, systemPrompt)
	if err != nil {
		return "", errs.Wrap(err, errs.TypeTranslation, "translation call failed")
	}

	translated = strings.TrimSpace(translated)
	if translated == "" {
		return "", errs.New(errs.TypeTranslation, "provider returned empty translation")
	}
	return translated, nil
}

func buildPrompt(text, sourceLanguage, targetLanguage string) string {
	var b strings.Builder
	b.WriteString("Translate the following text")

	source := sourceLanguage
	if source == "" || source == "auto" {
		source = detectLanguage(text)
	}
	if source != "" {
		fmt.Fprintf(&b, " from %s", languageName(source))
	}
	fmt.Fprintf(&b, " to %s:\n\n%s", languageName(targetLanguage), text)
	return b.String()
}

// detectLanguage guesses the ISO 639-1 code of text, returning "" when the
// guess is not reliable enough to put in a prompt.
func detectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return ""
	}
	log.Debug("Detected source language %s", code)
	return code
}

// languageName renders a tag like "de-DE" as "German" for the prompt,
// falling back to the raw code for tags the display tables don't know.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return code
	}
	return name
}

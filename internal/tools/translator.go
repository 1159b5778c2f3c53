package tools

import (
	"context"
	"fmt"
	"strings"
)

// TranslatorArgs is the input of the translator tool.
type TranslatorArgs struct {
	Text string `json:"text" jsonschema:"minLength=1,description=Word or phrase to translate"`
	From string `json:"from" jsonschema:"minLength=1,description=Source language name or code"`
	To   string `json:"to" jsonschema:"minLength=1,description=Target language name or code"`
}

var translatorSchema = mustArgSchema[TranslatorArgs]("translator")

var languages = []string{"english", "spanish", "french", "german", "italian"}

var languageCodes = map[string]string{
	"en": "english", "eng": "english",
	"es": "spanish", "spa": "spanish",
	"fr": "french", "fra": "french",
	"de": "german", "ger": "german", "deu": "german",
	"it": "italian", "ita": "italian",
}

type phraseKey struct {
	text, from, to string
}

// TranslatorTool translates phrases using a fixed dictionary.
type TranslatorTool struct {
	phrases map[phraseKey]string
}

var _ Tool = (*TranslatorTool)(nil)

func NewTranslatorTool() *TranslatorTool {
	t := &TranslatorTool{phrases: make(map[phraseKey]string)}
	for text, byLang := range map[string]map[string]string{
		"hello":        {"spanish": "hola", "french": "bonjour", "german": "hallo", "italian": "ciao"},
		"goodbye":      {"spanish": "adiós", "french": "au revoir", "german": "auf wiedersehen", "italian": "arrivederci"},
		"thank you":    {"spanish": "gracias", "french": "merci", "german": "danke", "italian": "grazie"},
		"good morning": {"spanish": "buenos días", "french": "bonjour", "german": "guten morgen", "italian": "buongiorno"},
		"how are you":  {"spanish": "¿cómo estás?", "french": "comment allez-vous?", "german": "wie geht es ihnen?", "italian": "come stai?"},
	} {
		for lang, translation := range byLang {
			t.phrases[phraseKey{text: text, from: "english", to: lang}] = translation
		}
	}
	return t
}

// AddTranslation registers a phrase for a language pair.
func (t *TranslatorTool) AddTranslation(text, from, to, translation string) error {
	src, err := normalizeLanguage(from)
	if err != nil {
		return err
	}
	dst, err := normalizeLanguage(to)
	if err != nil {
		return err
	}
	t.phrases[phraseKey{text: phraseText(text), from: src, to: dst}] = translation
	return nil
}

// Languages lists the supported languages.
func (t *TranslatorTool) Languages() []string {
	return append([]string(nil), languages...)
}

func (t *TranslatorTool) ID() ID { return Translator }

func (t *TranslatorTool) Name() string { return Translator.String() }

func (t *TranslatorTool) Description() string {
	return "Translates common phrases between English, Spanish, French, German and Italian."
}

func (t *TranslatorTool) Parameters() map[string]any {
	return translatorSchema.Parameters()
}

func (t *TranslatorTool) Execute(ctx context.Context, args Args) (Result, error) {
	if err := translatorSchema.Validate(Translator, args); err != nil {
		return Result{}, err
	}
	out, err := t.Translate(args["text"], args["from"], args["to"])
	if err != nil {
		return Result{}, err
	}
	return textResult(Translator, out), nil
}

// Translate looks text up for the given language pair. Text in the same
// source and target language is returned unchanged.
func (t *TranslatorTool) Translate(text, from, to string) (string, error) {
	src, err := normalizeLanguage(from)
	if err != nil {
		return "", err
	}
	dst, err := normalizeLanguage(to)
	if err != nil {
		return "", err
	}
	if src == dst {
		return text, nil
	}
	out, ok := t.phrases[phraseKey{text: phraseText(text), from: src, to: dst}]
	if !ok {
		return "", fmt.Errorf("%w: translator: no %s translation for %q from %s", ErrToolExecution, dst, strings.TrimSpace(text), src)
	}
	return out, nil
}

func normalizeLanguage(lang string) (string, error) {
	l := strings.ToLower(strings.TrimSpace(lang))
	if full, ok := languageCodes[l]; ok {
		l = full
	}
	for _, known := range languages {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: translator: unsupported language %q", ErrToolExecution, lang)
}

// phraseText folds case, whitespace and trailing punctuation so that
// "How are you?" and "how are you" share an entry.
func phraseText(s string) string {
	return strings.TrimRight(foldKey(s), "?!.")
}

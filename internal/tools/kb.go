package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// KnowledgeArgs is the input of the knowledge base tool.
type KnowledgeArgs struct {
	Name string `json:"name" jsonschema:"minLength=1,description=Name of the person to look up"`
}

var knowledgeSchema = mustArgSchema[KnowledgeArgs]("kb")

// Entry is one knowledge base record.
type Entry struct {
	Name    string `yaml:"name" json:"name"`
	Summary string `yaml:"summary" json:"summary"`
}

type entryFile struct {
	Entries []Entry `yaml:"entries"`
}

// LoadEntries reads knowledge base entries from a YAML file of the form
// `entries: [{name, summary}]`.
func LoadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	var f entryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode knowledge base %s: %w", path, err)
	}
	return f.Entries, nil
}

// KnowledgeBaseTool looks up short biographies by name.
type KnowledgeBaseTool struct {
	entries []Entry
}

var _ Tool = (*KnowledgeBaseTool)(nil)

func NewKnowledgeBaseTool() *KnowledgeBaseTool {
	return &KnowledgeBaseTool{
		entries: []Entry{
			{
				Name:    "Ada Lovelace",
				Summary: "Ada Lovelace was a 19th-century mathematician regarded as an early computing pioneer for her work on Charles Babbage's Analytical Engine.",
			},
			{
				Name:    "Alan Turing",
				Summary: "Alan Turing was a mathematician and logician, widely considered to be the father of theoretical computer science and artificial intelligence.",
			},
		},
	}
}

// AddEntry appends an entry, replacing any entry with the same name.
func (k *KnowledgeBaseTool) AddEntry(name, summary string) {
	key := foldKey(name)
	for i := range k.entries {
		if foldKey(k.entries[i].Name) == key {
			k.entries[i].Summary = summary
			return
		}
	}
	k.entries = append(k.entries, Entry{Name: strings.TrimSpace(name), Summary: summary})
}

func (k *KnowledgeBaseTool) ID() ID { return KnowledgeBase }

func (k *KnowledgeBaseTool) Name() string { return KnowledgeBase.String() }

func (k *KnowledgeBaseTool) Description() string {
	return "Looks up facts about a person by name."
}

func (k *KnowledgeBaseTool) Parameters() map[string]any {
	return knowledgeSchema.Parameters()
}

func (k *KnowledgeBaseTool) Execute(ctx context.Context, args Args) (Result, error) {
	if err := knowledgeSchema.Validate(KnowledgeBase, args); err != nil {
		return Result{}, err
	}
	e, err := k.Lookup(args["name"])
	if err != nil {
		return Result{}, err
	}
	return textResult(KnowledgeBase, e.Summary), nil
}

// Lookup prefers an exact name match and falls back to partial matches in
// either direction ("Lovelace" finds "Ada Lovelace").
func (k *KnowledgeBaseTool) Lookup(name string) (Entry, error) {
	key := foldKey(name)
	if key == "" {
		return Entry{}, fmt.Errorf("%w: kb: name is required", ErrInvalidArgument)
	}
	for _, e := range k.entries {
		if foldKey(e.Name) == key {
			return e, nil
		}
	}
	for _, e := range k.entries {
		n := foldKey(e.Name)
		if strings.Contains(n, key) || strings.Contains(key, n) {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: kb: no entry found for %q", ErrToolExecution, strings.TrimSpace(name))
}

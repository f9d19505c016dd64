// Package prompt renders the few-shot completion prompt and the
// human-readable trace of which examples went into it.
package prompt

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/Yates-Labs/fewshot/internal/history"
	"github.com/Yates-Labs/fewshot/internal/rag"
)

var (
	ErrEmptyQuery = errors.New("query cannot be empty")
	ErrNoExamples = errors.New("at least one example is required")
)

// Turn markers of the text-completion format.
const (
	HumanMarker     = "Human:"
	AssistantMarker = "Assistant:"
)

// Each example renders as "\n\nHuman: <input> \n\nAssistant: <answer>" and
// is followed by a blank line. The query block always ends with an open
// assistant turn.
const fewShotTemplate = `{{range .Examples}}` +
	"\n\nHuman: {{.Input}} \n\nAssistant: {{.Answer}}\n\n" +
	`{{end}}` +
	"Chat History: {{.History}}\n\nHuman: {{.Query}}\n\nAssistant:"

const traceTemplate = `{{range $i, $ex := .}}{{if $i}}` + "\n\n" + `{{end}}` +
	"Prompt {{$ex.Rank}}:\n\nHuman: {{$ex.Input}}\n\nAssistant: {{$ex.Answer}}" +
	`{{end}}`

var (
	fewShotTmpl = template.Must(template.New("fewshot").Parse(fewShotTemplate))
	traceTmpl   = template.Must(template.New("trace").Parse(traceTemplate))
)

type fewShotData struct {
	Examples []rag.SelectedExample
	History  string
	Query    string
}

// Compose renders the selected examples in rank order, the chat history (or
// the no-history marker) and the query into one completion prompt.
func Compose(selected []rag.SelectedExample, h history.History, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}
	if len(selected) == 0 {
		return "", ErrNoExamples
	}

	var b strings.Builder
	err := fewShotTmpl.Execute(&b, fewShotData{
		Examples: byRank(selected),
		History:  h.String(),
		Query:    query,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	return b.String(), nil
}

// Trace lists the selected examples as numbered "Prompt N" blocks, one per
// example, each with its Human and Assistant lines.
func Trace(selected []rag.SelectedExample) string {
	var b strings.Builder
	// The template only ranges over plain fields of a slice; it cannot fail.
	_ = traceTmpl.Execute(&b, byRank(selected))
	return b.String()
}

func byRank(selected []rag.SelectedExample) []rag.SelectedExample {
	sorted := make([]rag.SelectedExample, len(selected))
	copy(sorted, selected)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })
	return sorted
}

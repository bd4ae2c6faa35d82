// Package summary handles the LLM side of the app: summarizing text,
// answering questions about a page or about the uploaded documents, pulling
// "did you know" facts out of each document, and writing podcast scripts.
//
// The model is reached through the Generator interface; GeminiGenerator is
// the production implementation and tests use a fake.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Shimizu-Technology/docsight-api/internal/metrics"
)

// ErrNotConfigured is returned when no LLM API key was provided.
var ErrNotConfigured = errors.New("LLM not configured; set GEMINI_API_KEY")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Service builds prompts and interprets model output.
type Service struct {
	gen          Generator
	model        string
	podcastModel string
	log          *zap.Logger
}

// New creates a summary service. gen may be nil, in which case every call
// fails with ErrNotConfigured.
func New(gen Generator, model, podcastModel string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		gen:          gen,
		model:        model,
		podcastModel: podcastModel,
		log:          log.Named("summary"),
	}
}

// DocumentText is the extracted text of one uploaded document.
type DocumentText struct {
	Name string
	Text string
}

// FileFacts are the facts found in one document.
type FileFacts struct {
	Filename string   `json:"filename"`
	Facts    []string `json:"facts"`
}

const (
	// maxDocumentChars bounds the text of a single document in a prompt
	maxDocumentChars = 60000
	// minFactWords is the least text a document needs to yield facts
	minFactWords = 20
	// factsConcurrency bounds parallel facts calls per request
	factsConcurrency = 4
)

// Summarize returns a concise summary of text.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	prompt := "Summarize this text clearly and concisely:\n\n" + truncate(text, maxDocumentChars)
	return s.generate(ctx, "summarize", s.model, prompt)
}

// Answer answers question from the content of a single page.
func (s *Service) Answer(ctx context.Context, pageText, question string) (string, error) {
	prompt := fmt.Sprintf(`You are a helpful assistant. Answer the following question using the provided page content briefly.
If the answer is not in the content, say "I couldn't find that in this page."

Page Content:
%s

Question: %s`, truncate(pageText, maxDocumentChars), question)
	return s.generate(ctx, "ask", s.model, prompt)
}

// AskDocuments answers question from the uploaded documents, in markdown.
func (s *Service) AskDocuments(ctx context.Context, docs []DocumentText, question string) (string, error) {
	var b strings.Builder
	b.WriteString("You are a helpful assistant answering questions about the user's PDF documents.\n")
	b.WriteString("Answer in markdown. Mention which document an answer comes from. ")
	b.WriteString("If the documents do not contain the answer, say so.\n\n")
	budget := maxDocumentChars
	if len(docs) > 0 {
		budget = maxDocumentChars * 2 / len(docs)
	}
	for _, d := range docs {
		fmt.Fprintf(&b, "--- Document: %s ---\n%s\n\n", d.Name, truncate(d.Text, budget))
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return s.generate(ctx, "ask_pdf", s.model, b.String())
}

// Facts extracts interesting facts from every document, in input order.
// A document with too little text gets a single explanatory entry instead
// of failing the whole request.
func (s *Service) Facts(ctx context.Context, docs []DocumentText) ([]FileFacts, error) {
	out := make([]FileFacts, len(docs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(factsConcurrency)

	for i, d := range docs {
		if len(strings.Fields(d.Text)) < minFactWords {
			out[i] = FileFacts{
				Filename: d.Name,
				Facts:    []string{fmt.Sprintf("Could not process %s: document does not contain enough text", d.Name)},
			}
			continue
		}
		g.Go(func() error {
			prompt := fmt.Sprintf(`Read the following document and list 5 short, surprising "did you know" facts from it.
Respond with only a JSON array of strings.

Document: %s
%s`, d.Name, truncate(d.Text, maxDocumentChars))
			raw, err := s.generate(ctx, "facts", s.model, prompt)
			if err != nil {
				return fmt.Errorf("facts for %s: %w", d.Name, err)
			}
			out[i] = FileFacts{Filename: d.Name, Facts: parseStringList(raw)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// PodcastScript condenses text into a script that reads in under four minutes.
func (s *Service) PodcastScript(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(`Summarize the following text into a concise version that can be read as podcast in under 4 minutes:
Only write the summary, do not include any additional text.
%s`, truncate(text, maxDocumentChars*2))
	script, err := s.generate(ctx, "podcast_script", s.podcastModel, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(script), nil
}

func (s *Service) generate(ctx context.Context, op, model, prompt string) (string, error) {
	if s.gen == nil {
		return "", ErrNotConfigured
	}
	start := time.Now()
	out, err := s.gen.Generate(ctx, model, prompt)
	metrics.BackendRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(op, "error").Inc()
		s.log.Warn("generation failed", zap.String("operation", op), zap.String("model", model), zap.Error(err))
		return "", err
	}
	metrics.BackendRequestsTotal.WithLabelValues(op, "ok").Inc()
	s.log.Debug("generated", zap.String("operation", op), zap.String("model", model), zap.Int("chars", len(out)))
	return out, nil
}

// truncate cuts text to max bytes on a rune boundary.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "\n\n[Text truncated due to length...]"
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// parseStringList reads a JSON array of strings from model output, which may
// be wrapped in a markdown code fence or surrounded by prose. Anything else
// is split into lines with list markers stripped.
func parseStringList(content string) []string {
	var list []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &list); err == nil {
		return compact(list)
	}
	if start, end := strings.Index(content, "["), strings.LastIndex(content, "]"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(content[start:end+1]), &list); err == nil {
			return compact(list)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "```") {
			continue
		}
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		if line != "" {
			list = append(list, line)
		}
	}
	return list
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

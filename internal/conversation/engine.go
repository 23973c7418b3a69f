package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/djobea/djobea-ai/internal/llm"
	"github.com/djobea/djobea-ai/internal/models"
)

// Completer generates one completion and reports which backend produced it.
type Completer interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Completion, string, error)
}

// Input is one inbound user message plus the slot state extracted upstream.
type Input struct {
	SessionID string      `json:"session_id"`
	UserID    string      `json:"user_id"`
	Message   string      `json:"message"`
	Slots     SlotContext `json:"slots"`
}

// Reply is the assistant's answer for the chat channel. Fallback marks
// replies served from static copy because no model backend answered.
type Reply struct {
	Text        string   `json:"text"`
	Suggestions []string `json:"suggestions,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	Fallback    bool     `json:"fallback"`
	LatencyMs   int64    `json:"latency_ms"`
}

// Engine turns user messages into replies. It owns prompt construction and
// output post-processing; persistence of the resulting turn stays with the
// caller.
type Engine struct {
	completer     Completer
	post          *PostProcessor
	fallbackReply string
	maxTokens     int
	log           zerolog.Logger
}

// NewEngine builds the engine. maxTokens zero means each backend applies its
// own configured limit.
func NewEngine(completer Completer, post *PostProcessor, fallbackReply string, maxTokens int, log zerolog.Logger) *Engine {
	return &Engine{
		completer:     completer,
		post:          post,
		fallbackReply: fallbackReply,
		maxTokens:     maxTokens,
		log:           log,
	}
}

const systemPrompt = `Tu es Djobea, l'assistant WhatsApp d'un service de mise en relation avec des techniciens à domicile (plomberie, électricité, électroménager) à Douala.

Réponds toujours en français, sur un ton chaleureux et professionnel. Garde tes réponses courtes: deux ou trois phrases au maximum, sans listes ni mise en forme.

Réponds uniquement avec un objet JSON de la forme:
{"reply": "ta réponse", "suggestions": ["description de problème 1", "description de problème 2"]}

Les suggestions sont des exemples de messages que le client pourrait envoyer, formulés à la première personne. Jamais de questions dans les suggestions.`

// Respond produces the assistant reply for one user message. The caller
// passes prior turns oldest first; the engine never reads or writes storage.
func (e *Engine) Respond(ctx context.Context, in Input, history []models.ConversationTurn) (*Reply, error) {
	req := llm.Request{
		System:    systemPrompt,
		Prompt:    buildPrompt(in, history),
		MaxTokens: e.maxTokens,
	}

	completion, provider, err := e.completer.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, llm.ErrAllProvidersExhausted) {
			e.log.Warn().Str("session_id", in.SessionID).Msg("serving static fallback reply")
			return &Reply{Text: e.fallbackReply, Fallback: true}, nil
		}
		return nil, err
	}

	text, candidates := e.parseModelReply(completion.Text)
	return &Reply{
		Text:        e.post.Sanitize(text),
		Suggestions: e.post.Suggestions(candidates, in.Slots),
		Provider:    provider,
	}, nil
}

func buildPrompt(in Input, history []models.ConversationTurn) string {
	var b strings.Builder

	if sc := slotSummary(in.Slots); sc != "" {
		b.WriteString("État de la demande: ")
		b.WriteString(sc)
		b.WriteString("\n\n")
	}

	for _, t := range history {
		fmt.Fprintf(&b, "Client: %s\nDjobea: %s\n", t.UserMessage, t.Reply)
	}

	b.WriteString("Client: ")
	b.WriteString(in.Message)
	return b.String()
}

func slotSummary(s SlotContext) string {
	parts := make([]string, 0, 4)
	if s.ServiceType != "" {
		parts = append(parts, "service="+s.ServiceType)
	}
	if s.Location != "" {
		parts = append(parts, "quartier="+s.Location)
	}
	if s.Urgency != "" {
		parts = append(parts, "urgence="+s.Urgency)
	}
	if s.Description != "" {
		parts = append(parts, "problème="+s.Description)
	}
	return strings.Join(parts, ", ")
}

// modelReply is the JSON shape the system prompt asks for. Suggestions stay
// raw so a model emitting objects or numbers gets rejected per element
// instead of failing the whole parse.
type modelReply struct {
	Reply       string            `json:"reply"`
	Suggestions []json.RawMessage `json:"suggestions"`
}

// parseModelReply extracts reply text and suggestion candidates from model
// output. Models wrap JSON in markdown fences often enough that stripping
// them first is table stakes; anything still unparseable is used verbatim as
// the reply.
func (e *Engine) parseModelReply(raw string) (string, []string) {
	cleaned := stripFences(raw)

	var mr modelReply
	if err := json.Unmarshal([]byte(cleaned), &mr); err != nil || mr.Reply == "" {
		e.log.Debug().Err(err).Msg("model reply is not the requested JSON, using raw text")
		return cleaned, nil
	}

	candidates := make([]string, 0, len(mr.Suggestions))
	for _, rawSug := range mr.Suggestions {
		var s string
		if err := json.Unmarshal(rawSug, &s); err != nil {
			e.log.Warn().RawJSON("suggestion", rawSug).Msg("dropped non-string suggestion")
			continue
		}
		candidates = append(candidates, s)
	}
	return mr.Reply, candidates
}

func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

package conversation

import (
	"strings"

	"github.com/rs/zerolog"
)

// SlotContext is the structured state extracted from the conversation so far.
// Slot extraction happens upstream; the engine only consumes it.
type SlotContext struct {
	ServiceType string `json:"service_type,omitempty"`
	Location    string `json:"location,omitempty"`
	Urgency     string `json:"urgency,omitempty"`
	Description string `json:"description,omitempty"`
}

// PostProcessor reshapes raw model output into content safe for the chat
// channel: no markup, no question-style suggestions.
type PostProcessor struct {
	maxSuggestions int
	log            zerolog.Logger
}

func NewPostProcessor(maxSuggestions int, log zerolog.Logger) *PostProcessor {
	if maxSuggestions <= 0 {
		maxSuggestions = 3
	}
	return &PostProcessor{maxSuggestions: maxSuggestions, log: log}
}

// questionWords covers French and English interrogative openers. A candidate
// starting with one of these reads as a question to the user instead of a
// tappable answer.
var questionWords = map[string]struct{}{
	"est-ce": {}, "quel": {}, "quelle": {}, "quels": {}, "quelles": {},
	"comment": {}, "pourquoi": {}, "où": {}, "quand": {}, "qui": {},
	"combien": {}, "que": {}, "avez-vous": {}, "pouvez-vous": {},
	"what": {}, "how": {}, "why": {}, "where": {}, "when": {}, "who": {},
	"which": {}, "whose": {}, "can": {}, "could": {}, "do": {}, "does": {},
	"did": {}, "is": {}, "are": {}, "would": {}, "should": {},
}

var answerExamples = map[string][]string{
	"plomberie": {
		"J'ai une fuite d'eau sous mon évier",
		"Mon robinet ne ferme plus correctement",
		"Les toilettes sont bouchées depuis ce matin",
	},
	"électricité": {
		"Je n'ai plus de courant dans la cuisine",
		"Une prise fait des étincelles",
		"Le disjoncteur saute sans arrêt",
	},
	"électroménager": {
		"Mon réfrigérateur ne refroidit plus",
		"Ma machine à laver fuit pendant l'essorage",
		"Le climatiseur ne souffle plus d'air froid",
	},
}

var genericExamples = []string{
	"J'ai besoin d'un dépannage à domicile",
	"Je cherche un technicien disponible rapidement",
	"Mon problème nécessite une intervention urgente",
}

// Suggestions filters interrogative candidates and converts each one into a
// first-person answer example keyed on the service type. The result never
// contains a question and never exceeds the configured cap.
func (p *PostProcessor) Suggestions(candidates []string, sctx SlotContext) []string {
	out := make([]string, 0, p.maxSuggestions)
	for _, c := range candidates {
		s := p.Sanitize(c)
		if s == "" {
			p.log.Debug().Str("candidate", c).Msg("dropped blank suggestion")
			continue
		}
		if isInterrogative(s) {
			replacement, ok := p.answerExample(sctx, out)
			if !ok {
				p.log.Debug().Str("candidate", s).Msg("dropped interrogative suggestion, no example left")
				continue
			}
			s = replacement
		}
		if contains(out, s) {
			continue
		}
		out = append(out, s)
		if len(out) == p.maxSuggestions {
			break
		}
	}
	return out
}

// answerExample picks the first service-specific example not already used,
// falling back to the generic set.
func (p *PostProcessor) answerExample(sctx SlotContext, used []string) (string, bool) {
	pool := answerExamples[strings.ToLower(sctx.ServiceType)]
	for _, ex := range append(pool, genericExamples...) {
		if !contains(used, ex) {
			return ex, true
		}
	}
	return "", false
}

func isInterrogative(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return false
	}
	if strings.HasSuffix(t, "?") {
		return true
	}
	first := strings.ToLower(strings.Fields(t)[0])
	first = strings.Trim(first, ",.;:!«»\"'")
	if strings.HasPrefix(first, "qu'") {
		return true
	}
	_, ok := questionWords[first]
	return ok
}

var markupReplacer = strings.NewReplacer(
	"*", "", "_", "", "~", "", "`", "",
	"[", "", "]", "", "<", "", ">", "", "#", "",
)

// Sanitize strips markup the chat channel would misrender and collapses
// whitespace runs.
func (p *PostProcessor) Sanitize(text string) string {
	return strings.Join(strings.Fields(markupReplacer.Replace(text)), " ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

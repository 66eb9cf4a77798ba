// Package assistant forwards patient chat questions to a hosted text
// generation model. The chat path never fails because of the model: any
// upstream problem is answered with a fixed local reply.
package assistant

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/telemeds/telemeds/pkg/apperror"
)

// PromptPrefix is prepended to every user question.
const PromptPrefix = "You are a medical AI assistant. Please provide helpful, accurate, and safe medical advice for simple conditions. Remember to always recommend consulting a healthcare professional for serious concerns. User question: "

const (
	// NoAnswerReply is sent when the model answers without any text.
	NoAnswerReply = "I apologize, but I cannot provide a response at this time. Please consult a healthcare professional."
	// FallbackReply is sent when the model cannot be reached or fails.
	FallbackReply = "I apologize, but I'm experiencing technical difficulties. For medical advice, please consult with a healthcare professional or try again later."
)

// Reply sources.
const (
	SourceModel    = "model"
	SourceNoAnswer = "no_answer"
	SourceFallback = "fallback"
)

var (
	ErrMissingCredential = errors.New("assistant credential is not configured")
	ErrNoCandidate       = errors.New("model returned no candidate")
)

const msgMessageRequired = "Message is required"

// TextGenerator produces a completion for a prompt. Implementations return
// ErrNoCandidate when the call succeeded but carried no text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Recorder receives one observation per reply.
type Recorder interface {
	RecordAssistantReply(source string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAssistantReply(string) {}

// Reply is the outcome of one question. Only Text is shown to patients.
type Reply struct {
	Text   string
	Source string
}

type Gateway struct {
	gen        TextGenerator
	configured bool
	metrics    Recorder
	logger     zerolog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithRecorder(r Recorder) Option {
	return func(g *Gateway) { g.metrics = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// NewGateway wraps gen. A generator that reports Configured() == false, or a
// nil one, makes every question fall back without a call.
func NewGateway(gen TextGenerator, opts ...Option) *Gateway {
	g := &Gateway{
		gen:        gen,
		configured: gen != nil,
		metrics:    nopRecorder{},
		logger:     zerolog.Nop(),
	}
	if c, ok := gen.(interface{ Configured() bool }); ok {
		g.configured = c.Configured()
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With().Str("component", "assistant").Logger()
	return g
}

// Configured reports whether a credential was present at construction.
func (g *Gateway) Configured() bool {
	return g.configured
}

// Ask answers a patient question. Only an empty message is an error; every
// other failure is folded into FallbackReply.
func (g *Gateway) Ask(ctx context.Context, message string) (Reply, error) {
	reply, err := g.generate(ctx, message)
	if err != nil {
		if apperror.IsKind(err, apperror.KindValidation) {
			return Reply{}, err
		}
		g.logger.Warn().Err(err).Msg("assistant call failed, sending fallback reply")
		reply = Reply{Text: FallbackReply, Source: SourceFallback}
	}
	g.metrics.RecordAssistantReply(reply.Source)
	return reply, nil
}

// Diagnose behaves like Ask but returns failures instead of falling back: a
// missing credential is a configuration error, an upstream failure external.
func (g *Gateway) Diagnose(ctx context.Context, message string) (Reply, error) {
	reply, err := g.generate(ctx, message)
	switch {
	case err == nil:
	case apperror.IsKind(err, apperror.KindValidation):
		return Reply{}, err
	case errors.Is(err, ErrMissingCredential):
		return Reply{}, apperror.Configuration(apperror.CodeMissingCredential, "GEMINI_API_KEY is not configured")
	default:
		return Reply{}, apperror.External("assistant call failed", err)
	}
	g.metrics.RecordAssistantReply(reply.Source)
	return reply, nil
}

// generate makes at most one upstream call.
func (g *Gateway) generate(ctx context.Context, message string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, apperror.Validation(apperror.CodeInvalidRequest, msgMessageRequired)
	}
	if !g.configured {
		return Reply{}, ErrMissingCredential
	}

	text, err := g.gen.Generate(ctx, PromptPrefix+message)
	if errors.Is(err, ErrNoCandidate) || (err == nil && strings.TrimSpace(text) == "") {
		return Reply{Text: NoAnswerReply, Source: SourceNoAnswer}, nil
	}
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: text, Source: SourceModel}, nil
}

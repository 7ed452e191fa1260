// Package genopts validates and normalizes per-call generation configuration.
// Usage accounting is billing-relevant, so the default posture is to fail
// loudly on misconfiguration before any network call happens.
package genopts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/voronkovm/diagramflow/internal/core/domain"
	"github.com/voronkovm/diagramflow/internal/core/ports"
)

type Operation string

const (
	OpDiagramGeneration Operation = "diagram_generation"
	OpSyntaxFix         Operation = "syntax_fix"
)

var (
	ErrMissingOperation = errors.New("operation is required")
	ErrInvalidOperation = errors.New("unknown operation")
	ErrMissingUserID    = errors.New("user_id is required when usage tracking is enabled")
)

// Operations lists the recognized generation operations.
func Operations() []Operation {
	return []Operation{OpDiagramGeneration, OpSyntaxFix}
}

// Params is the raw configuration request. TrackUsage defaults to true when
// nil; Client optionally overrides the generative-service binding for this
// call only.
type Params struct {
	Operation  Operation
	UserID     string
	TrackUsage *bool
	Client     ports.ChatCompleter
}

// Options is an immutable, validated generation configuration.
type Options struct {
	operation  Operation
	userID     string
	trackUsage bool
	client     ports.ChatCompleter
}

func (o Options) Operation() Operation        { return o.operation }
func (o Options) UserID() string              { return o.userID }
func (o Options) TrackUsage() bool            { return o.trackUsage }
func (o Options) Client() ports.ChatCompleter { return o.client }

// New validates p and returns normalized options. Validation happens in a
// fixed order so callers get the most actionable failure first: operation
// present, operation recognized, then user identity when tracking is on.
func New(p Params) (Options, error) {
	if strings.TrimSpace(string(p.Operation)) == "" {
		return Options{}, configErr(ErrMissingOperation)
	}
	if !knownOperation(p.Operation) {
		return Options{}, configErr(fmt.Errorf("%w %q (valid: %s)", ErrInvalidOperation, p.Operation, operationList()))
	}

	trackUsage := true
	if p.TrackUsage != nil {
		trackUsage = *p.TrackUsage
	}
	if trackUsage && strings.TrimSpace(p.UserID) == "" {
		return Options{}, configErr(ErrMissingUserID)
	}

	return Options{
		operation:  p.Operation,
		userID:     strings.TrimSpace(p.UserID),
		trackUsage: trackUsage,
		client:     p.Client,
	}, nil
}

// MustNew is the strict variant used at pipeline entry points: any validation
// failure panics so a configuration bug can never silently skip usage
// tracking. The ingestion fault barrier turns the panic into a terminal
// document error.
func MustNew(p Params) Options {
	opts, err := New(p)
	if err != nil {
		panic(err)
	}
	return opts
}

func knownOperation(op Operation) bool {
	for _, known := range Operations() {
		if op == known {
			return true
		}
	}
	return false
}

func operationList() string {
	ops := Operations()
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = string(op)
	}
	return strings.Join(parts, ", ")
}

func configErr(err error) error {
	return domain.WrapError(domain.ErrConfiguration, "validate generation options", err)
}

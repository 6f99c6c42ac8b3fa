// Package intent turns a user message into a core.CoordinationPlan.
//
// ModelClassifier asks a language model for a JSON classification and repairs
// common formatting damage before decoding it. KeywordClassifier is a
// deterministic router used in mock mode and as the fallback when model
// classification fails.
package intent

import (
	"context"
	"errors"

	"github.com/hupe1980/opsmesh/core"
)

var (
	// ErrClassificationTimeout is returned when classification exceeds its budget.
	ErrClassificationTimeout = errors.New("intent classification timed out")
	// ErrClassificationParse is returned when the classifier output cannot be decoded.
	ErrClassificationParse = errors.New("intent classification could not be parsed")
)

// Classifier produces a coordination plan for a user message. contextWindow
// is the rendered conversation context and may be empty.
type Classifier interface {
	Classify(ctx context.Context, userText, contextWindow string) (core.CoordinationPlan, error)
}

// ClassifierFunc adapts a function into a Classifier.
type ClassifierFunc func(ctx context.Context, userText, contextWindow string) (core.CoordinationPlan, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, userText, contextWindow string) (core.CoordinationPlan, error) {
	return f(ctx, userText, contextWindow)
}

// Package answer defines the contract to the external retrieval/answer
// engine and an HTTP client implementation.
package answer

import (
	"context"

	"github.com/helpgate/helpgate/internal/channel"
)

// Response is the answer engine's reply to one question.
type Response struct {
	Answer             string           `json:"answer"`
	Sources            []channel.Source `json:"sources,omitempty"`
	RAGStrategy        string           `json:"rag_strategy,omitempty"`
	ModelName          string           `json:"model_name,omitempty"`
	TokensUsed         int              `json:"tokens_used,omitempty"`
	ConfidenceScore    *float64         `json:"confidence_score,omitempty"`
	RequiresHuman      bool             `json:"requires_human,omitempty"`
	RoutingAction      string           `json:"routing_action,omitempty"`
	RoutingReason      string           `json:"routing_reason,omitempty"`
	SuggestedQuestions []string         `json:"suggested_questions,omitempty"`
}

// Service answers user questions. The engine behind it (retrieval, FAQ
// matching, LLM synthesis) is an external collaborator.
type Service interface {
	Query(ctx context.Context, question string, history []channel.ChatTurn) (Response, error)
}

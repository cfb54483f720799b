package domain

import "time"

// SubjectType differentiates callers of the intake API.
type SubjectType string

const (
	// SubjectTypeGateway is the chat-platform collaborator that forwards intents.
	SubjectTypeGateway SubjectType = "GATEWAY"
	// SubjectTypeOperator is a human using read-only dashboards.
	SubjectTypeOperator SubjectType = "OPERATOR"
)

// Token represents issued authentication token metadata.
type Token struct {
	ID        string
	SubjectID string
	Subject   SubjectType
	ExpiresAt time.Time
	IssuedAt  time.Time
}

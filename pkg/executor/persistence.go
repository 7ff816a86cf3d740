package executor

import (
	"context"
	"time"
)

// ConversationRecorder captures prompt/response pairs for auditing.
type ConversationRecorder interface {
	RecordConversation(ctx context.Context, rec ConversationRecord) error
}

// ConversationRecord describes a single oracle interaction.
type ConversationRecord struct {
	Prompt    string
	Response  string
	Timestamp time.Time
	Topic     string
}

type noopConversationRecorder struct{}

func (noopConversationRecorder) RecordConversation(ctx context.Context, rec ConversationRecord) error {
	return nil
}

// WithConversationRecorder injects a recorder used to persist prompt/response
// pairs.
func WithConversationRecorder(recorder ConversationRecorder) ExecutorOption {
	return func(exec *BasicExecutor) {
		if recorder == nil {
			exec.conversations = noopConversationRecorder{}
			return
		}
		exec.conversations = recorder
	}
}

package services

import (
	"bytes"
	"encoding/json"
	"gym-chat/domain/chat"
	"gym-chat/errors"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails on an empty tag or a nil function.
	_ = v.RegisterValidation("userid", func(fl validator.FieldLevel) bool {
		return chat.ValidUserID(fl.Field().String())
	})
	return v
}

type GetHistoryArgs struct {
	OtherUserID string `json:"otherUserId" validate:"required,userid"`
	Limit       int    `json:"limit" validate:"gte=0"`
	Cursor      string `json:"cursor,omitempty" validate:"omitempty,max=128"`
}

type SendDirectMessageArgs struct {
	RecipientID     string `json:"recipientId" validate:"required,userid"`
	Body            string `json:"body" validate:"required"`
	ClientMessageID string `json:"clientMessageId,omitempty" validate:"omitempty,max=128"`
}

type MarkReadArgs struct {
	OtherUserID string `json:"otherUserId" validate:"required,userid"`
}

type TypingArgs struct {
	RecipientID string `json:"recipientId" validate:"required,userid"`
}

type MarkPermanentArgs struct {
	MessageID string `json:"messageId" validate:"required,max=64"`
}

type AskAssistantArgs struct {
	Prompt string `json:"prompt" validate:"required,max=2000"`
}

// decodeArgs unmarshals and validates invocation arguments.
// Missing arguments decode to the zero value, which validation then rejects if needed.
func decodeArgs[T any](raw json.RawMessage) (T, error) {
	var args T
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return args, errors.Validation("malformed arguments: %v", err)
		}
	}
	if err := validate.Struct(args); err != nil {
		return args, errors.Validation("%v", err)
	}
	return args, nil
}

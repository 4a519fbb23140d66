package services

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EchoResponder stands in for the AI model: it waits a fixed delay, then
// answers with the prompt it was given.
type EchoResponder struct {
	delay time.Duration
}

func NewEchoResponder(delay time.Duration) *EchoResponder {
	return &EchoResponder{delay: delay}
}

func (r *EchoResponder) Respond(ctx context.Context, userID, prompt string) (string, error) {
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return fmt.Sprintf("Hi %s, you asked: %s", userID, strings.TrimSpace(prompt)), nil
	}
}

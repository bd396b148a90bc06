package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MockClient is a deterministic stand-in for the oracle, enabled via
// configuration for local development. Every request is fulfilled on the
// first poll with randomness derived from the request handle, so draws are
// reproducible run to run.
type MockClient struct{}

// NewMockClient creates a new MockClient
func NewMockClient() *MockClient {
	return &MockClient{}
}

// RequestRandomness returns a synthetic handle derived from the event ID
func (c *MockClient) RequestRandomness(ctx context.Context, eventID string) (string, error) {
	return "mock-" + eventID, nil
}

// PollFulfillment is always fulfilled, with words derived from the handle
func (c *MockClient) PollFulfillment(ctx context.Context, requestID string) ([]string, bool, error) {
	seed := strings.TrimPrefix(requestID, "mock-")
	words := make([]string, 2)
	for i := range words {
		h := sha256.Sum256([]byte(seed + ":" + string(rune('0'+i))))
		words[i] = hex.EncodeToString(h[:])
	}
	return words, true, nil
}

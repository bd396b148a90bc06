package oracle

import "context"

// Client talks to the external verifiable-randomness oracle. The oracle is
// an opaque service: randomness is requested once per campaign, keyed by the
// campaign's event ID, and fulfillment is polled until the random words are
// available.
type Client interface {
	// RequestRandomness asks the oracle to produce randomness for eventID and
	// returns the request handle used for polling.
	RequestRandomness(ctx context.Context, eventID string) (string, error)

	// PollFulfillment checks whether the request has been fulfilled. When
	// fulfilled is false the random words are nil and the caller retries on
	// its next tick.
	PollFulfillment(ctx context.Context, requestID string) (randomWords []string, fulfilled bool, err error)
}

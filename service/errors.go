package service

import "errors"

// Turn error taxonomy. Controllers map these onto HTTP statuses; the
// orchestrator never persists anything for a turn that ends in one of them.
var (
	// Configuration errors: fail fast, the user must fix settings.
	ErrAIDisabled    = errors.New("ai assistant is disabled")
	ErrNotConfigured = errors.New("ai assistant is not configured")

	// Validation errors: rejected before any retrieval or generation work.
	ErrEmptyMessage = errors.New("message must not be empty")

	// Concurrency guard: at most one in-flight turn per conversation.
	ErrTurnInFlight = errors.New("a turn is already in flight for this conversation")

	// Generation errors from the provider.
	ErrProviderAuth        = errors.New("provider authentication failed")
	ErrProviderRateLimited = errors.New("provider rate limit exceeded")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrTurnTimeout         = errors.New("turn timed out")

	// Persistence errors: generation may have succeeded but the message was
	// not saved; the client must not assume otherwise.
	ErrPersistence = errors.New("failed to persist turn")
)

// IsConfigurationError reports whether err belongs to the fail-fast class.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrAIDisabled) || errors.Is(err, ErrNotConfigured)
}

// IsGenerationError reports whether err came from the model provider.
func IsGenerationError(err error) bool {
	return errors.Is(err, ErrProviderAuth) ||
		errors.Is(err, ErrProviderRateLimited) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrTurnTimeout)
}

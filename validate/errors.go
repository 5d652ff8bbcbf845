package validate

import "errors"

// Sentinel errors for the validation pipeline.
var (
	// ErrMissingRuleID indicates a rule registered without an ID.
	ErrMissingRuleID = errors.New("validate: rule ID is required")

	// ErrNilValidator indicates a rule registered without a synchronous
	// validator function. The pipeline executes rules synchronously and
	// in order; there is no deferred variant.
	ErrNilValidator = errors.New("validate: rule validator is required")

	// ErrDuplicateRule indicates the rule ID is already registered.
	ErrDuplicateRule = errors.New("validate: rule already registered")

	// ErrRuleNotFound indicates the rule ID is not registered.
	ErrRuleNotFound = errors.New("validate: rule not found")

	// ErrInvalidPattern indicates a security rule endpoint pattern that
	// does not compile.
	ErrInvalidPattern = errors.New("validate: invalid endpoint pattern")

	// ErrInvalidRateLimit indicates a rate limit with a non-positive
	// request budget or window.
	ErrInvalidRateLimit = errors.New("validate: invalid rate limit")
)

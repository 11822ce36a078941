package llm

import "errors"

// ErrProviderUnavailable means every credential x model-tier combination
// failed to produce a usable backend. Turns must abort before mutating any
// state when resolution fails.
var ErrProviderUnavailable = errors.New("no language model backend available")

package questiongen

// Config controls the behavior of the LLMGenerator.
type Config struct {
	// Validators run on every normalized item in order. An item failing
	// any of them is dropped.
	Validators []Validator

	// DefaultCount is used when Input.Count is not positive.
	DefaultCount int

	// MaxTokens is the token budget for the model response.
	MaxTokens int

	// Temperature controls output randomness (0.0-1.0).
	Temperature float64

	// MaxSourceChars truncates study text sent in the prompt. Zero keeps
	// it whole.
	MaxSourceChars int
}

// DefaultConfig returns a Config with the standard validator chain.
func DefaultConfig() Config {
	return Config{
		Validators: []Validator{
			&StructuralValidator{},
			&ChoicesValidator{},
		},
		DefaultCount:   10,
		MaxTokens:      1500,
		Temperature:    0.7,
		MaxSourceChars: 48000,
	}
}

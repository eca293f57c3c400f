package openai

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// Tokens estimates the number of tokens of the given text. It is only used
// for logging, providers count tokens with their own tokenizer.
func Tokens(text string) (int, error) {
	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return 0, fmt.Errorf("openai: couldn't get tokenizer: %w", err)
	}
	ids, _, err := enc.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("openai: couldn't encode text: %w", err)
	}
	return len(ids), nil
}

// Package static provides a deterministic completer for dry runs and
// tests. It never leaves the process and always answers with a valid
// reviewer payload.
package static

import "context"

const cannedResponse = "```json\n" +
	`{
  "overview": "Static review: no model was consulted.",
  "comments": []
}` + "\n```"

// Completer returns a fixed response for every prompt.
type Completer struct {
	response string
}

// NewCompleter constructs a static Completer with the default canned
// reviewer payload.
func NewCompleter() *Completer {
	return &Completer{response: cannedResponse}
}

// NewCompleterWithResponse constructs a static Completer that always
// returns the given text.
func NewCompleterWithResponse(response string) *Completer {
	return &Completer{response: response}
}

// Complete returns the canned response regardless of model or prompt.
func (c *Completer) Complete(ctx context.Context, model, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.response, nil
}

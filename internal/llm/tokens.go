package llm

// EstimateTokens approximates the token count of a text using the
// chars/4 heuristic. It deliberately trades accuracy for determinism;
// budget callers add a fixed overhead margin to absorb the error.
// Empty input returns 0, any non-empty input returns at least 1.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

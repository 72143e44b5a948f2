package llm

// RoughEstimateTokens approximates the token count of text at three runes per token.
func RoughEstimateTokens(text string) int {
	avgCharsPerToken := 3.0
	tokens := int(float64(len([]rune(text))) / avgCharsPerToken)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

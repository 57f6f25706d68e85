package claude

import "strings"

// price is USD per million tokens.
type price struct {
	input  float64
	output float64
}

// prices is matched by model prefix and the first match wins. No prefix
// may start with another, so the order does not matter.
var prices = []struct {
	prefix string
	price  price
}{
	{"claude-3-5-haiku", price{input: 0.80, output: 4}},
	{"claude-3-haiku", price{input: 0.25, output: 1.25}},
	{"claude-haiku-4", price{input: 1, output: 5}},
	{"claude-3-5-sonnet", price{input: 3, output: 15}},
	{"claude-3-7-sonnet", price{input: 3, output: 15}},
	{"claude-sonnet-4", price{input: 3, output: 15}},
	{"claude-opus-4", price{input: 15, output: 75}},
}

// estimateCost returns the list price of a call, or 0 for unknown models.
func estimateCost(model string, inputTokens, outputTokens int) float64 {
	for _, p := range prices {
		if strings.HasPrefix(model, p.prefix) {
			return (float64(inputTokens)*p.price.input + float64(outputTokens)*p.price.output) / 1e6
		}
	}
	return 0
}

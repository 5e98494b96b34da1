package metrics

// Pricing is the price in USD per million tokens.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// DefaultPricing matches Claude Sonnet list prices.
var DefaultPricing = Pricing{InputPerMTok: 3, OutputPerMTok: 15}

// Cost is a token count with its estimated price.
type Cost struct {
	InputTokens  int64
	OutputTokens int64
	USD          float64
}

// EstimateCost prices a single model call.
func EstimateCost(inputTokens, outputTokens int64, p Pricing) Cost {
	usd := float64(inputTokens)*p.InputPerMTok/1e6 + float64(outputTokens)*p.OutputPerMTok/1e6
	return Cost{InputTokens: inputTokens, OutputTokens: outputTokens, USD: usd}
}

// Add returns the sum of two costs.
func (c Cost) Add(o Cost) Cost {
	return Cost{
		InputTokens:  c.InputTokens + o.InputTokens,
		OutputTokens: c.OutputTokens + o.OutputTokens,
		USD:          c.USD + o.USD,
	}
}

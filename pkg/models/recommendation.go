package models

// Recommendation is a cost saving suggestion for one service.
type Recommendation struct {
	Title        string  `json:"title"`
	Service      string  `json:"service"`
	SavingsValue float64 `json:"savings_value"`
	Savings      string  `json:"savings"`
}

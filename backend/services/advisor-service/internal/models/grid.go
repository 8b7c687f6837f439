package models

import "time"

// Price tiers reported by the grid operator.
const (
	PriceTierOffPeak = "off-peak"
	PriceTierMidPeak = "mid-peak"
	PriceTierPeak    = "peak"
)

// GridConditions is a snapshot of the local grid used to tailor recommendations.
type GridConditions struct {
	PriceTier    string     `json:"price"`
	Availability string     `json:"availability"`
	Constraints  []string   `json:"constraints,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

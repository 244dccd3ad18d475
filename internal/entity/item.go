package entity

import "github.com/joseph-ayodele/pantry-receipts/constants"

// ExtractedItem is one detected ingredient candidate. Items are created per
// scan and never mutated afterwards.
type ExtractedItem struct {
	Name                string             `json:"name"`
	Quantity            float64            `json:"quantity"`
	Unit                constants.Unit     `json:"unit"`
	Category            constants.Category `json:"category"`
	Confidence          float64            `json:"confidence"`
	EstimatedExpiryDays int                `json:"estimatedExpiryDays"`
}

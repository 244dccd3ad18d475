package server

import (
	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
	"github.com/joseph-ayodele/pantry-receipts/internal/quota"
)

type ScanRequest struct {
	UserID       string `json:"user_id"`
	Image        []byte `json:"image"`
	PreferVision bool   `json:"prefer_vision"`
}

type ScanResponse struct {
	EventID string                 `json:"event_id"`
	Items   []entity.ExtractedItem `json:"items"`
	Mode    entity.ScanMode        `json:"mode"`
	Outcome entity.ScanOutcome     `json:"outcome"`
	Usage   quota.State            `json:"usage"`
}

type GetUsageRequest struct {
	UserID string `json:"user_id"`
}

type GetUsageResponse struct {
	Usage quota.State `json:"usage"`
}

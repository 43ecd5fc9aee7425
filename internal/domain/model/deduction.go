package model

type DeductionRule struct {
	ThresholdSeconds int64  `json:"threshold_seconds"`
	Coins            int64  `json:"coins"`
	Active           bool   `json:"active"`
	Name             string `json:"name,omitempty"`
}

package dto

type DeductionRuleResponse struct {
	ThresholdSeconds int64  `json:"threshold_seconds"`
	Coins            int64  `json:"coins"`
	Name             string `json:"name,omitempty"`
}

type BillingRulesResponse struct {
	Rules []DeductionRuleResponse `json:"rules"`
}

type BillingReloadResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

type BalanceResponse struct {
	ParticipantID int64 `json:"participant_id"`
	CoinBalance   int64 `json:"coin_balance"`
}

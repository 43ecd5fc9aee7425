package model

// FallbackVideo is a pre-recorded clip served when no live partner is
// available for a pool/sequence. The object itself lives in external
// storage; ObjectKey points at it.
type FallbackVideo struct {
	ID         int64  `json:"id"`
	PoolID     int64  `json:"pool_id"`
	SequenceID int64  `json:"sequence_id"`
	Title      string `json:"title"`
	ObjectKey  string `json:"object_key"`
	Active     bool   `json:"active"`
}

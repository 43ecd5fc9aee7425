package model

// PoolCatalog is the external read model describing a pool's sequences,
// sorted ascending by position.
type PoolCatalog struct {
	PoolID    int64             `json:"pool_id"`
	Sequences []CatalogSequence `json:"sequences"`
}

type CatalogSequence struct {
	ID         int64 `json:"sequence_id"`
	Position   int   `json:"position"`
	VideoCount int   `json:"video_count"`
	Active     bool  `json:"active"`
}

// FirstActive returns the first active sequence by position.
func (c PoolCatalog) FirstActive() (CatalogSequence, bool) {
	for _, seq := range c.Sequences {
		if seq.Active {
			return seq, true
		}
	}
	return CatalogSequence{}, false
}

// NextActiveAfter returns the next active sequence positioned after the
// given sequence id, wrapping to the first active sequence at the end.
func (c PoolCatalog) NextActiveAfter(sequenceID int64) (CatalogSequence, bool) {
	idx := -1
	for i, seq := range c.Sequences {
		if seq.ID == sequenceID {
			idx = i
			break
		}
	}
	if idx >= 0 {
		for _, seq := range c.Sequences[idx+1:] {
			if seq.Active {
				return seq, true
			}
		}
	}
	return c.FirstActive()
}

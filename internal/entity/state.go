package entity

import "time"

// InstanceState is the per-market snapshot owned by the snapshot store.
// The sync engine is its sole writer; every external read goes through Clone.
type InstanceState struct {
	LastSyncedBlock uint64              `json:"last_synced_block"`
	LastSync        time.Time           `json:"last_sync"`
	Catalog         AssetCatalog        `json:"catalog"`
	LastAssetCount  int                 `json:"last_asset_count"`
	Borrowers       map[string]Borrower `json:"borrowers"`
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (s *InstanceState) Clone() *InstanceState {
	if s == nil {
		return nil
	}
	out := &InstanceState{
		LastSyncedBlock: s.LastSyncedBlock,
		LastSync:        s.LastSync,
		Catalog:         s.Catalog.Clone(),
		LastAssetCount:  s.LastAssetCount,
	}
	if s.Borrowers != nil {
		out.Borrowers = make(map[string]Borrower, len(s.Borrowers))
		for account, b := range s.Borrowers {
			out.Borrowers[account] = b.Clone()
		}
	}
	return out
}

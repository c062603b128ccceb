package market

import (
	"time"

	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// Item is one market listing. Amount only ever decreases; an item whose
// amount reached zero stays on record as inert and is never revived (a
// fresh place produces a new id). At any point Amount equals the balance
// the engine holds in escrow for this item.
type Item struct {
	ID        uint64           `json:"id"`
	Seller    identity.Address `json:"seller"`
	Ledger    identity.Address `json:"ledger"`
	UnitID    uint64           `json:"unit_id"`
	Amount    uint64           `json:"amount"`
	UnitPrice uint64           `json:"unit_price"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// PlaceRequest carries the parameters of a new listing.
type PlaceRequest struct {
	Amount    uint64           `json:"amount"`
	LedgerID  identity.Address `json:"ledger_id"`
	UnitID    uint64           `json:"unit_id"`
	UnitPrice uint64           `json:"unit_price"`
}

// Receipt summarizes a settled purchase.
type Receipt struct {
	ItemID      uint64           `json:"item_id"`
	Buyer       identity.Address `json:"buyer"`
	Seller      identity.Address `json:"seller"`
	Amount      uint64           `json:"amount"`
	TotalDue    uint64           `json:"total_due"`
	Fee         uint64           `json:"fee"`
	NetProceeds uint64           `json:"net_proceeds"`
}

// Stats is a point-in-time aggregate over the market.
type Stats struct {
	ActiveItems  int    `json:"active_items"`
	ListedAmount uint64 `json:"listed_amount"`
	TradeCount   uint64 `json:"trade_count"`
	Volume       uint64 `json:"volume"`
}

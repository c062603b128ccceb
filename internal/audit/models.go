package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Action identifies the kind of state-changing operation recorded.
type Action string

const (
	ActionMint           Action = "ledger.mint"
	ActionTransfer       Action = "ledger.transfer_with_signature"
	ActionDelegatedMove  Action = "ledger.transfer_from"
	ActionVerifySource   Action = "market.verify_source"
	ActionPlace          Action = "market.place"
	ActionUnPlace        Action = "market.unplace"
	ActionPurchase       Action = "market.purchase"
)

// Entry is one append-only audit record. The payload carries the
// operation's parameters and outcome as JSON; metadata strings pass
// through opaquely.
type Entry struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Actor     string         `json:"actor" gorm:"index"`
	Action    Action         `json:"action" gorm:"index"`
	Payload   datatypes.JSON `json:"payload"`
	CreatedAt time.Time      `json:"created_at" gorm:"index"`
}

// TableName keeps the table name stable regardless of gorm pluralization
// settings.
func (Entry) TableName() string {
	return "audit_entries"
}

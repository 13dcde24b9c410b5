package models

import "time"

// Transaction is a spend record consumed by cycle close aggregation. Ingest,
// sync, and editing of transactions happen outside this service; the engine
// only ever sums them per category per cycle window.
type Transaction struct {
	Base
	OwnerID     string    `gorm:"type:uuid;not null;index" json:"owner_id"`
	CategoryID  *string   `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Amount      float64   `gorm:"not null" json:"amount"`
	Date        time.Time `gorm:"not null;index" json:"date"`
	Description string    `json:"description"`
}

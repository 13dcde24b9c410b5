package models

import "gorm.io/gorm"

// RolloverMode controls how a category's end-of-cycle over/under amount is
// carried into the next cycle.
type RolloverMode string

const (
	// RolloverNone discards the over/under amount entirely.
	RolloverNone RolloverMode = "none"
	// RolloverPositive carries surplus forward; deficits are absorbed.
	RolloverPositive RolloverMode = "positive"
	// RolloverNegative carries deficits forward as debt; surplus is absorbed.
	RolloverNegative RolloverMode = "negative"
	// RolloverBoth carries the full over/under amount, positive or negative.
	RolloverBoth RolloverMode = "both"
)

// Valid reports whether m is a known rollover mode.
func (m RolloverMode) Valid() bool {
	switch m {
	case RolloverNone, RolloverPositive, RolloverNegative, RolloverBoth:
		return true
	}
	return false
}

// Category represents a budget category. Categories form a two-tier tree:
// top-level categories and, optionally, one level of subcategories.
type Category struct {
	Base
	OwnerID      string         `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name         string         `gorm:"not null" json:"name"`
	ParentID     *string        `gorm:"type:uuid" json:"parent_id,omitempty"`
	RolloverMode RolloverMode   `gorm:"not null;default:'none'" json:"rollover_mode"`
	IsDefault    bool           `gorm:"not null;default:false" json:"is_default"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Parent   *Category  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// CategoryNode is a top-level category together with its subcategories.
type CategoryNode struct {
	Category Category   `json:"category"`
	Children []Category `json:"children"`
}

// GroupCategories builds the two-tier grouping from a flat category list.
// Categories whose ParentID does not resolve within the list are folded into
// the top level as leaves rather than dropped. Input order is preserved.
func GroupCategories(categories []Category) []CategoryNode {
	topIndex := make(map[string]int, len(categories))
	var nodes []CategoryNode

	for _, c := range categories {
		if c.ParentID == nil {
			topIndex[c.ID] = len(nodes)
			nodes = append(nodes, CategoryNode{Category: c})
		}
	}

	for _, c := range categories {
		if c.ParentID == nil {
			continue
		}
		if i, ok := topIndex[*c.ParentID]; ok {
			nodes[i].Children = append(nodes[i].Children, c)
			continue
		}
		// Orphaned reference: surface the row as a top-level leaf.
		nodes = append(nodes, CategoryNode{Category: c})
	}

	return nodes
}

// Leaves returns the categories at which spend and carryover are tracked:
// every subcategory plus every top-level category without subcategories.
func Leaves(categories []Category) []Category {
	hasChildren := make(map[string]bool, len(categories))
	ids := make(map[string]bool, len(categories))
	for _, c := range categories {
		ids[c.ID] = true
	}
	for _, c := range categories {
		if c.ParentID != nil && ids[*c.ParentID] {
			hasChildren[*c.ParentID] = true
		}
	}

	var leaves []Category
	for _, c := range categories {
		if !hasChildren[c.ID] {
			leaves = append(leaves, c)
		}
	}
	return leaves
}

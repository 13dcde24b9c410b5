// Package setupdiff reconciles the setup wizard's draft category tree against
// the owner's persisted categories, producing a minimal create/update/delete
// plan. The diff is pure data: it proposes, the apply layer sequences and
// executes (parents before children, deletes after creates and updates).
package setupdiff

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"cycleledger/internal/models"
)

// renameHintMaxDistance bounds how far apart two names may be for a create to
// be flagged as a probable rename of an existing category.
const renameHintMaxDistance = 2

// DraftCategory is one row of the wizard's draft tree. ExistingID links the
// row to an already-persisted category; when absent the row is a creation
// candidate. Subcategories nest exactly one level.
type DraftCategory struct {
	Name          string              `json:"name"`
	Amount        float64             `json:"amount"`
	RolloverMode  models.RolloverMode `json:"rollover_mode"`
	ExistingID    string              `json:"existing_id,omitempty"`
	Subcategories []DraftCategory     `json:"subcategories,omitempty"`
}

// PersistedCategory is the slice of a stored category the diff needs.
type PersistedCategory struct {
	ID       string
	Name     string
	ParentID string
}

// Create proposes a new category. ParentName rather than a parent id is
// carried because the parent may itself be a pending create; the apply layer
// resolves linkage by case-insensitive name after creating parents first.
// RenameHintID, when set, points at an existing category whose name is within
// editing distance of this one — a probable rename the caller may want to
// surface instead of creating a near-duplicate.
type Create struct {
	Name         string              `json:"name"`
	ParentName   string              `json:"parent_name,omitempty"`
	Amount       float64             `json:"amount"`
	RolloverMode models.RolloverMode `json:"rollover_mode"`
	RenameHintID string              `json:"rename_hint_id,omitempty"`
}

// Update proposes new values for an existing category. ParentExistingID is set
// when the draft parent is itself persisted; otherwise ParentName lets the
// apply layer re-resolve after pending parent creates have run. Updates are
// emitted for every draft row with an ExistingID, whether or not anything
// changed — no-op filtering is deliberately not done.
type Update struct {
	ExistingID       string              `json:"existing_id"`
	Name             string              `json:"name"`
	ParentExistingID string              `json:"parent_existing_id,omitempty"`
	ParentName       string              `json:"parent_name,omitempty"`
	Amount           float64             `json:"amount"`
	RolloverMode     models.RolloverMode `json:"rollover_mode"`
}

// Diff is the reconciliation plan: three order-agnostic lists.
type Diff struct {
	Creates []Create `json:"creates"`
	Updates []Update `json:"updates"`
	Deletes []string `json:"deletes"`
}

// DraftTree is the wizard's full draft state.
type DraftTree struct {
	Categories []DraftCategory `json:"categories"`
}

// ComputeDiff walks the draft tree against the persisted set. A create whose
// name matches an unreferenced persisted category case-insensitively is folded
// into an update of that category instead — the wizard lost the id but the
// user plainly meant the same category — and the id leaves the delete set.
func ComputeDiff(draft DraftTree, persisted []PersistedCategory) Diff {
	referenced := make(map[string]bool, len(persisted))
	markReferenced(draft.Categories, referenced)

	var diff Diff
	for i := range draft.Categories {
		row := &draft.Categories[i]
		diffRow(row, nil, persisted, referenced, &diff)
		for j := range row.Subcategories {
			diffRow(&row.Subcategories[j], row, persisted, referenced, &diff)
		}
	}

	for _, p := range persisted {
		if !referenced[p.ID] {
			diff.Deletes = append(diff.Deletes, p.ID)
		}
	}
	return diff
}

func markReferenced(rows []DraftCategory, referenced map[string]bool) {
	for _, r := range rows {
		if r.ExistingID != "" {
			referenced[r.ExistingID] = true
		}
		markReferenced(r.Subcategories, referenced)
	}
}

func diffRow(row, parent *DraftCategory, persisted []PersistedCategory, referenced map[string]bool, diff *Diff) {
	if row.ExistingID == "" {
		// Rename/duplicate adoption by exact (case-insensitive) name.
		if match := findByName(row.Name, persisted, referenced); match != nil {
			referenced[match.ID] = true
			diff.Updates = append(diff.Updates, updateFor(match.ID, row, parent))
			return
		}

		c := Create{
			Name:         row.Name,
			Amount:       row.Amount,
			RolloverMode: row.RolloverMode,
			RenameHintID: renameHint(row.Name, persisted, referenced),
		}
		if parent != nil {
			c.ParentName = parent.Name
		}
		diff.Creates = append(diff.Creates, c)
		return
	}

	diff.Updates = append(diff.Updates, updateFor(row.ExistingID, row, parent))
}

func updateFor(id string, row, parent *DraftCategory) Update {
	u := Update{
		ExistingID:   id,
		Name:         row.Name,
		Amount:       row.Amount,
		RolloverMode: row.RolloverMode,
	}
	if parent != nil {
		u.ParentExistingID = parent.ExistingID
		u.ParentName = parent.Name
	}
	return u
}

func findByName(name string, persisted []PersistedCategory, referenced map[string]bool) *PersistedCategory {
	for i := range persisted {
		if referenced[persisted[i].ID] {
			continue
		}
		if strings.EqualFold(persisted[i].Name, name) {
			return &persisted[i]
		}
	}
	return nil
}

// renameHint returns the id of the closest unreferenced persisted category
// within renameHintMaxDistance of name, or empty when nothing is close.
func renameHint(name string, persisted []PersistedCategory, referenced map[string]bool) string {
	lower := strings.ToLower(name)
	best := renameHintMaxDistance + 1
	hint := ""
	for i := range persisted {
		if referenced[persisted[i].ID] {
			continue
		}
		d := levenshtein.ComputeDistance(lower, strings.ToLower(persisted[i].Name))
		if d > 0 && d < best {
			best = d
			hint = persisted[i].ID
		}
	}
	return hint
}

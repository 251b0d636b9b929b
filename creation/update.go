package creation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jacentio/specimen/model"
	"github.com/jacentio/specimen/store"
)

// ItemUpdate carries the editable fields of a save request. Nil fields
// are left untouched. Identity fields, creator lists, files and directed
// relationships cannot be modified through this path; collection changes
// arrive as resolved references and are rewritten into membership
// relationships.
type ItemUpdate struct {
	Name        *string                `json:"name,omitempty"`
	Description *string                `json:"description,omitempty"`
	ChemForm    *string                `json:"chemform,omitempty"`
	Location    *string                `json:"location,omitempty"`
	Date        *time.Time             `json:"date,omitempty"`
	Collections *[]model.CollectionRef `json:"collections,omitempty"`

	SynthesisConstituents *[]model.Constituent `json:"synthesis_constituents,omitempty"`
	PositiveElectrode     *[]model.Constituent `json:"positive_electrode,omitempty"`
	NegativeElectrode     *[]model.Constituent `json:"negative_electrode,omitempty"`
	Electrolyte           *[]model.Constituent `json:"electrolyte,omitempty"`
}

// SaveItem applies an update to an existing item and persists it,
// reconciling the relationship mirror records against the previous
// state. Open-access types are editable by any authenticated user;
// everything else requires creator access.
func (e *Engine) SaveItem(ctx context.Context, p store.Principal, itemID string, update *ItemUpdate) (*model.Item, error) {
	if update == nil {
		return nil, fmt.Errorf("%w: empty update", ErrValidation)
	}

	item, err := e.store.GetItem(ctx, itemID, p, false)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: item %q", ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("fetch item %q: %w", itemID, err)
	}
	if !item.Type.OpenAccess() && !canEdit(p, item) {
		return nil, fmt.Errorf("%w: authorization required to edit item %q", store.ErrForbidden, itemID)
	}

	oldRelationships := append([]model.TypedRelationship(nil), item.Relationships...)

	if update.Name != nil {
		item.Name = *update.Name
	}
	if update.Description != nil {
		item.Description = *update.Description
	}
	if update.ChemForm != nil {
		item.ChemForm = *update.ChemForm
	}
	if update.Location != nil {
		item.Location = *update.Location
	}
	if update.Date != nil {
		item.Date = *update.Date
	}
	if update.SynthesisConstituents != nil {
		item.SynthesisConstituents = *update.SynthesisConstituents
	}
	if update.PositiveElectrode != nil {
		item.PositiveElectrode = *update.PositiveElectrode
	}
	if update.NegativeElectrode != nil {
		item.NegativeElectrode = *update.NegativeElectrode
	}
	if update.Electrolyte != nil {
		item.Electrolyte = *update.Electrolyte
	}
	if update.Collections != nil {
		item.Collections = *update.Collections
		if err := e.reconcileMemberships(ctx, p, item); err != nil {
			return nil, err
		}
	}

	item.LastModified = time.Now().UTC().Format(time.RFC3339)

	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("%w: unable to save item %q: %s", ErrValidation, itemID, err)
	}

	if err := e.store.UpdateItem(ctx, item, oldRelationships); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: item %q", ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("save item %q: %w", itemID, err)
	}

	e.logger.Info("saved item", zap.String("item_id", itemID))
	return item, nil
}

// reconcileMemberships rewrites the item's collection-membership
// relationships from its resolved collections field, keeping every
// non-membership relationship intact.
func (e *Engine) reconcileMemberships(ctx context.Context, p store.Principal, item *model.Item) error {
	kept := item.Relationships[:0:0]
	for _, r := range item.Relationships {
		if !r.IsCollectionMembership() {
			kept = append(kept, r)
		}
	}
	item.Relationships = kept

	resolved, err := e.resolveCollections(ctx, p, item)
	if err != nil {
		return err
	}
	item.Collections = resolved
	return nil
}

func canEdit(p store.Principal, item *model.Item) bool {
	if p.Admin {
		return true
	}
	for _, id := range item.CreatorIDs {
		if id == p.UserID {
			return true
		}
	}
	return false
}

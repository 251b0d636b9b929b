package creation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jacentio/specimen/model"
	"github.com/jacentio/specimen/store"
)

// UpdatePermissions replaces an item's creator list with the given
// creators. The acting principal must already have creator access to the
// item; the item's base owner (its first creator) can never be removed
// and always stays at the head of the list, so an item cannot be
// orphaned by a permissions edit.
func (e *Engine) UpdatePermissions(ctx context.Context, p store.Principal, rawRefcode string, creators []model.Person) error {
	ref := model.ExpandRefcode(rawRefcode, e.config.IdentifierPrefix)
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}

	item, err := e.store.GetItemByRefcode(ctx, ref, p, true)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: no item %q accessible to the current user", ErrUnresolvedReference, ref)
		}
		return fmt.Errorf("fetch item %q: %w", ref, err)
	}

	requested := make([]string, 0, len(creators))
	for _, c := range creators {
		if c.ImmutableID != "" {
			requested = append(requested, c.ImmutableID)
		}
	}
	if len(requested) == 0 {
		return fmt.Errorf("%w: the creator list cannot be emptied", ErrValidation)
	}

	missing, err := e.store.MissingUsers(ctx, requested)
	if err != nil {
		return fmt.Errorf("resolve creators: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: unknown users in creator list: %v", ErrValidation, missing)
	}

	// The base owner is pinned at index 0 and the acting principal stays
	// in the set regardless of the request, so neither the item nor the
	// caller can be locked out by a permissions edit.
	var baseOwner string
	if len(item.CreatorIDs) > 0 {
		baseOwner = item.CreatorIDs[0]
	}
	next := make([]string, 0, len(requested)+2)
	seen := map[string]struct{}{}
	if baseOwner != "" {
		next = append(next, baseOwner)
		seen[baseOwner] = struct{}{}
	}
	if _, ok := seen[p.UserID]; !ok && p.UserID != "" && p.UserID != store.PublicUserID {
		next = append(next, p.UserID)
		seen[p.UserID] = struct{}{}
	}
	for _, id := range requested {
		if _, ok := seen[id]; ok {
			continue
		}
		next = append(next, id)
		seen[id] = struct{}{}
	}

	if equalIDs(item.CreatorIDs, next) {
		return nil
	}

	if err := e.store.UpdateCreatorIDs(ctx, item.ItemID, next); err != nil {
		return fmt.Errorf("update permissions for %q: %w", item.ItemID, err)
	}
	e.logger.Info("updated item permissions",
		zap.String("item_id", item.ItemID),
		zap.String("refcode", string(ref)),
		zap.Int("ncreators", len(next)),
	)
	return nil
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package graph

import (
	"context"
	"sort"

	"github.com/jacentio/specimen/model"
	"github.com/jacentio/specimen/store"
)

// ItemRelationships reconciles the two directions of the relationship
// field for one item. An item is a parent of X either because X inlines
// a "parent" relationship naming it, or because it declares X as its
// "child"; the reverse holds for children. Both directions are merged
// and returned as sorted identifier lists.
func (b *Builder) ItemRelationships(ctx context.Context, p store.Principal, item *model.Item) (parents, children []string, err error) {
	refs := []string{store.ItemRef(item.ItemID)}
	if item.Refcode != "" {
		refs = append(refs, store.RefcodeRef(item.Refcode))
	}
	if item.ImmutableID != "" {
		refs = append(refs, store.ImmutableRef(item.ImmutableID))
	}

	links, err := b.store.LinksTo(ctx, refs...)
	if err != nil {
		return nil, nil, err
	}

	holderIDs := make([]string, 0, len(links))
	seen := map[string]struct{}{}
	for _, link := range links {
		if _, ok := seen[link.HolderItemID]; ok {
			continue
		}
		seen[link.HolderItemID] = struct{}{}
		holderIDs = append(holderIDs, link.HolderItemID)
	}

	// Visibility is decided on the holder documents, not the raw links.
	visibleHolders, err := b.store.DocsByItemIDs(ctx, holderIDs, p)
	if err != nil {
		return nil, nil, err
	}
	visible := map[string]struct{}{}
	for i := range visibleHolders {
		visible[visibleHolders[i].ItemID] = struct{}{}
	}

	incoming := map[model.RelationType]map[string]struct{}{}
	for _, link := range links {
		if _, ok := visible[link.HolderItemID]; !ok {
			continue
		}
		if incoming[link.Relation] == nil {
			incoming[link.Relation] = map[string]struct{}{}
		}
		incoming[link.Relation][link.HolderItemID] = struct{}{}
	}

	inlined := map[model.RelationType]map[string]struct{}{}
	for i := range item.Relationships {
		r := &item.Relationships[i]
		id := r.ItemID
		if id == "" {
			id = string(r.Refcode)
		}
		if id == "" {
			id = r.ImmutableID
		}
		if id == "" {
			continue
		}
		if inlined[r.Relation] == nil {
			inlined[r.Relation] = map[string]struct{}{}
		}
		inlined[r.Relation][id] = struct{}{}
	}

	parents = unionSorted(incoming[model.RelationChild], inlined[model.RelationParent])
	children = unionSorted(incoming[model.RelationParent], inlined[model.RelationChild])
	return parents, children, nil
}

func unionSorted(a, b map[string]struct{}) []string {
	merged := map[string]struct{}{}
	for id := range a {
		merged[id] = struct{}{}
	}
	for id := range b {
		merged[id] = struct{}{}
	}
	out := make([]string, 0, len(merged))
	for id := range merged {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

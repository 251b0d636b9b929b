package creation

import (
	"github.com/jacentio/specimen/model"
)

// mergeCopy builds the working document for a copy-from create: a copy of
// the source with the new payload's identity fields overlaid, and the
// payload's constituents folded into the source's without duplication.
// The source's relationships (including collection memberships) carry
// over; its refcode and immutable ID never do.
func mergeCopy(source, payload *model.Item) *model.Item {
	copied := *source
	copied.ImmutableID = ""
	copied.Refcode = ""
	copied.ItemID = payload.ItemID
	copied.Name = payload.Name
	copied.Date = payload.Date
	copied.CreatorIDs = nil
	copied.Creators = nil

	copied.Relationships = append([]model.TypedRelationship(nil), source.Relationships...)

	switch copied.Type {
	case model.TypeSamples:
		copied.SynthesisConstituents = mergeConstituents(
			source.SynthesisConstituents, payload.SynthesisConstituents)
	case model.TypeCells:
		copied.PositiveElectrode = mergeConstituents(
			source.PositiveElectrode, payload.PositiveElectrode)
		copied.NegativeElectrode = mergeConstituents(
			source.NegativeElectrode, payload.NegativeElectrode)
		copied.Electrolyte = mergeConstituents(
			source.Electrolyte, payload.Electrolyte)
	}

	return &copied
}

// mergeConstituents unions the copied constituents with the newly
// supplied ones, de-duplicated by target item_id. A supplied constituent
// without an item_id, or whose item_id is not among the copied ones, is
// appended; matching ones are dropped.
func mergeConstituents(copied, supplied []model.Constituent) []model.Constituent {
	existing := map[string]struct{}{}
	for _, c := range copied {
		if c.Item.ItemID != "" {
			existing[c.Item.ItemID] = struct{}{}
		}
	}

	merged := append([]model.Constituent(nil), copied...)
	for _, c := range supplied {
		if c.Item.ItemID != "" {
			if _, ok := existing[c.Item.ItemID]; ok {
				continue
			}
		}
		merged = append(merged, c)
	}
	return merged
}

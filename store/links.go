package store

import (
	"github.com/jacentio/specimen/internal/shard"
	"github.com/jacentio/specimen/model"
)

// Target reference namespaces. A relationship is mirrored under one record
// per identifying field it carries, so an incoming query can match a
// document by item_id, refcode or immutable_id, whichever the holder used.
const (
	refItem       = "item#"
	refRefcode    = "refcode#"
	refImmutable  = "immutable#"
	refCollection = "collections#"
)

// ItemRef returns the link-table target reference for an item_id.
func ItemRef(itemID string) string { return refItem + itemID }

// RefcodeRef returns the link-table target reference for a refcode.
func RefcodeRef(rc model.Refcode) string { return refRefcode + string(rc) }

// ImmutableRef returns the link-table target reference for an immutable ID.
func ImmutableRef(id string) string { return refImmutable + id }

// CollectionRef returns the link-table target reference for membership of
// a collection, keyed by the collection's immutable ID.
func CollectionRef(immutableID string) string { return refCollection + immutableID }

// TargetRefs lists the link-table references a relationship is mirrored
// under.
func TargetRefs(r *model.TypedRelationship) []string {
	if r.IsCollectionMembership() {
		if r.ImmutableID == "" {
			return nil
		}
		return []string{CollectionRef(r.ImmutableID)}
	}
	var refs []string
	if r.ItemID != "" {
		refs = append(refs, ItemRef(r.ItemID))
	}
	if r.Refcode != "" {
		refs = append(refs, RefcodeRef(r.Refcode))
	}
	if r.ImmutableID != "" {
		refs = append(refs, ImmutableRef(r.ImmutableID))
	}
	return refs
}

// LinkRecord is one relationship mirror record: the holder declares a
// relationship whose target resolves to TargetRef. Querying the links
// table by target reference yields every document mentioning that target,
// which is the "incoming" half of relationship reconciliation.
type LinkRecord struct {
	PK           string             `dynamodbav:"pk"`
	SK           string             `dynamodbav:"sk"`
	TargetRef    string             `dynamodbav:"target_ref"`
	HolderItemID string             `dynamodbav:"holder_item_id"`
	Relation     model.RelationType `dynamodbav:"relation,omitempty"`
	TargetType   model.ItemType     `dynamodbav:"target_type"`
}

// linkRecords derives the mirror records for an item's relationships.
func (s *Store) linkRecords(it *model.Item) []LinkRecord {
	var records []LinkRecord
	for i := range it.Relationships {
		r := &it.Relationships[i]
		for _, ref := range TargetRefs(r) {
			records = append(records, LinkRecord{
				PK:           shard.LinkPK(ref, it.ItemID, s.config.LinkShards),
				SK:           linkSK(it.ItemID, r.Relation),
				TargetRef:    ref,
				HolderItemID: it.ItemID,
				Relation:     r.Relation,
				TargetType:   r.Type,
			})
		}
	}
	return records
}

// linkSK builds the sort key for a link record. The relation is part of
// the key so one holder can declare several relations against one target.
func linkSK(holderItemID string, relation model.RelationType) string {
	return holderItemID + "#" + string(relation)
}

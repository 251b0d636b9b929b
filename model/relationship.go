package model

import (
	"errors"
	"fmt"
)

// RelationType enumerates how one entry can relate to another.
// The zero value is only legal on collection-membership relationships,
// which carry no direction of their own.
type RelationType string

const (
	RelationParent   RelationType = "parent"
	RelationChild    RelationType = "child"
	RelationSibling  RelationType = "sibling"
	RelationPartOf   RelationType = "is_part_of"
	RelationOther    RelationType = "other"
	RelationUnstated RelationType = ""
)

var knownRelations = map[RelationType]struct{}{
	RelationParent:  {},
	RelationChild:   {},
	RelationSibling: {},
	RelationPartOf:  {},
	RelationOther:   {},
}

var (
	// ErrRelationshipUnidentified is returned when a relationship carries
	// no identifying field at all.
	ErrRelationshipUnidentified = errors.New("specimen: relationship must reference a target")

	// ErrRelationshipAmbiguous is returned when immutable_id is combined
	// with item_id or refcode.
	ErrRelationshipAmbiguous = errors.New("specimen: relationship target is ambiguous")
)

// TypedRelationship is a directional link from the entry holding it to
// another entry. The direction is declared from the holder's perspective:
// a relationship with relation "child" means the target is the holder's
// child. Exactly one resolvable reference must be set: either immutable_id
// on its own, or item_id (optionally paired with refcode).
type TypedRelationship struct {
	Relation    RelationType `json:"relation,omitempty" dynamodbav:"relation,omitempty"`
	Type        ItemType     `json:"type" dynamodbav:"type"`
	Description string       `json:"description,omitempty" dynamodbav:"description,omitempty"`
	ImmutableID string       `json:"immutable_id,omitempty" dynamodbav:"immutable_id,omitempty"`
	ItemID      string       `json:"item_id,omitempty" dynamodbav:"item_id,omitempty"`
	Refcode     Refcode      `json:"refcode,omitempty" dynamodbav:"refcode,omitempty"`
}

// Validate checks a single relationship payload. It has no side effects
// and is shared by the creation and update paths.
func (r *TypedRelationship) Validate() error {
	if r.ImmutableID == "" && r.ItemID == "" && r.Refcode == "" {
		return ErrRelationshipUnidentified
	}
	if r.ImmutableID != "" && (r.ItemID != "" || r.Refcode != "") {
		return ErrRelationshipAmbiguous
	}
	if r.Relation == RelationUnstated {
		if r.Type != TypeCollections {
			return fmt.Errorf("specimen: relationship to %q entry must state a relation", r.Type)
		}
	} else if _, ok := knownRelations[r.Relation]; !ok {
		return fmt.Errorf("specimen: unknown relation %q", r.Relation)
	}
	if r.Relation == RelationOther && r.Description == "" {
		return fmt.Errorf("specimen: a description is required when the relation is %q", RelationOther)
	}
	return nil
}

// IsCollectionMembership reports whether this relationship records
// membership of a collection rather than a directed entry link.
func (r *TypedRelationship) IsCollectionMembership() bool {
	return r.Type == TypeCollections
}

// CollectionMembership builds the relationship stored for membership of
// the collection with the given immutable ID.
func CollectionMembership(immutableID string) TypedRelationship {
	return TypedRelationship{
		Relation:    RelationUnstated,
		Type:        TypeCollections,
		Description: "Is a member of",
		ImmutableID: immutableID,
	}
}

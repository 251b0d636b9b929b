// Package model defines the persisted item schema: item types, typed
// relationships, refcodes and per-type validation.
package model

// ItemType is the closed set of entry types a deployment can hold.
type ItemType string

const (
	TypeSamples           ItemType = "samples"
	TypeStartingMaterials ItemType = "starting_materials"
	TypeCells             ItemType = "cells"
	TypeEquipment         ItemType = "equipment"
	TypeFiles             ItemType = "files"
	TypeCollections       ItemType = "collections"
)

// KnownItemTypes lists every valid item type.
var KnownItemTypes = []ItemType{
	TypeSamples,
	TypeStartingMaterials,
	TypeCells,
	TypeEquipment,
	TypeFiles,
	TypeCollections,
}

// Valid reports whether t is a member of the closed type set.
func (t ItemType) Valid() bool {
	for _, known := range KnownItemTypes {
		if t == known {
			return true
		}
	}
	return false
}

// OpenAccess reports whether items of this type are readable and editable
// by every active user. Such items carry an empty creator list.
func (t ItemType) OpenAccess() bool {
	return t == TypeStartingMaterials || t == TypeEquipment
}

// Person is a user projection attached to item summaries.
// It is derived from the users table at read time and never stored on items.
type Person struct {
	ImmutableID  string `json:"immutable_id,omitempty"`
	DisplayName  string `json:"display_name"`
	ContactEmail string `json:"contact_email,omitempty"`
}

// CollectionRef is a resolved reference to a collection.
type CollectionRef struct {
	ImmutableID  string `json:"immutable_id"`
	CollectionID string `json:"collection_id,omitempty"`
	Title        string `json:"title,omitempty"`
}

// EntryReference identifies another entry from inside a constituent.
type EntryReference struct {
	ItemID  string   `json:"item_id,omitempty" dynamodbav:"item_id,omitempty"`
	Name    string   `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Type    ItemType `json:"type,omitempty" dynamodbav:"type,omitempty"`
	Refcode Refcode  `json:"refcode,omitempty" dynamodbav:"refcode,omitempty"`
}

// Constituent is one entry of a synthesis or electrode table: a reference
// to the constituent entry plus the amount used.
type Constituent struct {
	Item     EntryReference `json:"item" dynamodbav:"item"`
	Quantity string         `json:"quantity,omitempty" dynamodbav:"quantity,omitempty"`
	Unit     string         `json:"unit,omitempty" dynamodbav:"unit,omitempty"`
}

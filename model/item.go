package model

import (
	"errors"
	"fmt"
	"time"
)

// Item is one persisted entry: a sample, cell, starting material or piece
// of equipment. The item_id is human-assigned and unique across the
// deployment; the immutable_id is store-assigned and permanent; the
// refcode is allocated once at creation.
//
// Creators and Collections are read-time projections resolved from the
// users and collections tables. Only CreatorIDs and the membership
// relationships are persisted.
type Item struct {
	ImmutableID string   `json:"immutable_id,omitempty" dynamodbav:"immutable_id,omitempty"`
	ItemID      string   `json:"item_id" dynamodbav:"item_id"`
	Refcode     Refcode  `json:"refcode,omitempty" dynamodbav:"refcode,omitempty"`
	Type        ItemType `json:"type" dynamodbav:"type"`

	Name        string    `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Date        time.Time `json:"date" dynamodbav:"date,unixtime"`
	Description string    `json:"description,omitempty" dynamodbav:"description,omitempty"`
	ChemForm    string    `json:"chemform,omitempty" dynamodbav:"chemform,omitempty"`

	// Location is only meaningful for equipment.
	Location string `json:"location,omitempty" dynamodbav:"location,omitempty"`

	Relationships []TypedRelationship `json:"relationships,omitempty" dynamodbav:"relationships,omitempty"`

	// CreatorIDs is ordered; index 0 is the base owner whose access can
	// never be revoked. Open-access types carry an empty list.
	CreatorIDs []string `json:"creator_ids" dynamodbav:"creator_ids"`

	Creators    []Person        `json:"creators,omitempty" dynamodbav:"-"`
	Collections []CollectionRef `json:"collections,omitempty" dynamodbav:"-"`

	// SynthesisConstituents holds the synthesis table for samples.
	SynthesisConstituents []Constituent `json:"synthesis_constituents,omitempty" dynamodbav:"synthesis_constituents,omitempty"`

	// Electrode and electrolyte tables for cells.
	PositiveElectrode []Constituent `json:"positive_electrode,omitempty" dynamodbav:"positive_electrode,omitempty"`
	NegativeElectrode []Constituent `json:"negative_electrode,omitempty" dynamodbav:"negative_electrode,omitempty"`
	Electrolyte       []Constituent `json:"electrolyte,omitempty" dynamodbav:"electrolyte,omitempty"`

	FileIDs []string `json:"file_ids,omitempty" dynamodbav:"file_ids,omitempty,stringset"`

	LastModified string `json:"last_modified,omitempty" dynamodbav:"last_modified,omitempty"`
}

// ErrUnknownType is returned when an item's type is outside the closed set.
var ErrUnknownType = errors.New("specimen: unknown item type")

// ErrNoSchema is returned for types that exist but cannot be created or
// updated through the item engine (files and collections have their own
// lifecycles).
var ErrNoSchema = errors.New("specimen: no item schema registered for type")

// itemValidators dispatches per-type schema checks, keyed by the closed
// item-type enum. Types absent from this table are not creatable here.
var itemValidators = map[ItemType]func(*Item) error{
	TypeSamples:           validateSample,
	TypeStartingMaterials: validateStartingMaterial,
	TypeCells:             validateCell,
	TypeEquipment:         validateEquipment,
}

// Validate checks the fully assembled item against its type-specific
// schema. It expects identity fields to already be assigned.
func (it *Item) Validate() error {
	if !it.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, it.Type)
	}
	validate, ok := itemValidators[it.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSchema, it.Type)
	}
	if err := validateItemID(it.ItemID); err != nil {
		return err
	}
	if err := it.Refcode.Validate(); err != nil {
		return err
	}
	for i := range it.Relationships {
		if err := it.Relationships[i].Validate(); err != nil {
			return fmt.Errorf("relationship %d of %q: %w", i, it.ItemID, err)
		}
	}
	return validate(it)
}

// validateItemID checks the human-readable identifier grammar.
func validateItemID(id string) error {
	if id == "" {
		return errors.New("specimen: item_id must not be empty")
	}
	if len(id) > 40 {
		return fmt.Errorf("specimen: item_id %q exceeds 40 characters", id)
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '-', c == '.':
		default:
			return fmt.Errorf("specimen: item_id %q contains invalid character %q", id, c)
		}
	}
	return nil
}

func validateSample(it *Item) error {
	return validateConstituents("synthesis_constituents", it.SynthesisConstituents)
}

func validateStartingMaterial(it *Item) error {
	if len(it.CreatorIDs) != 0 {
		return errors.New("specimen: starting materials are open access and carry no creators")
	}
	return nil
}

func validateCell(it *Item) error {
	for _, component := range []struct {
		field string
		list  []Constituent
	}{
		{"positive_electrode", it.PositiveElectrode},
		{"negative_electrode", it.NegativeElectrode},
		{"electrolyte", it.Electrolyte},
	} {
		if err := validateConstituents(component.field, component.list); err != nil {
			return err
		}
	}
	return nil
}

func validateEquipment(it *Item) error {
	if len(it.CreatorIDs) != 0 {
		return errors.New("specimen: equipment is open access and carries no creators")
	}
	return nil
}

func validateConstituents(field string, constituents []Constituent) error {
	for i, c := range constituents {
		if c.Item.ItemID == "" && c.Item.Name == "" {
			return fmt.Errorf("specimen: %s[%d] must reference an entry by id or name", field, i)
		}
	}
	return nil
}

package stream

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/specimen/model"
)

// --- getStringAttr Tests ---

func TestGetStringAttr_ExistingString(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"item_id": events.NewStringAttribute("sample1"),
	}

	result := getStringAttr(image, "item_id")
	if result != "sample1" {
		t.Errorf("expected 'sample1', got %q", result)
	}
}

func TestGetStringAttr_MissingKey(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"other": events.NewStringAttribute("value"),
	}

	result := getStringAttr(image, "item_id")
	if result != "" {
		t.Errorf("expected empty string for missing key, got %q", result)
	}
}

func TestGetStringAttr_NilImage(t *testing.T) {
	var image map[string]events.DynamoDBAttributeValue

	result := getStringAttr(image, "item_id")
	if result != "" {
		t.Errorf("expected empty string for nil image, got %q", result)
	}
}

func TestGetStringAttr_WrongType(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"item_id": events.NewNumberAttribute("42"),
	}

	result := getStringAttr(image, "item_id")
	if result != "" {
		t.Errorf("expected empty string for non-string attribute, got %q", result)
	}
}

// --- getRelationshipsAttr Tests ---

func relationshipAttr(relation, itemType, itemID string) events.DynamoDBAttributeValue {
	return events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
		"relation": events.NewStringAttribute(relation),
		"type":     events.NewStringAttribute(itemType),
		"item_id":  events.NewStringAttribute(itemID),
	})
}

func TestGetRelationshipsAttr_Valid(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"relationships": events.NewListAttribute([]events.DynamoDBAttributeValue{
			relationshipAttr("parent", "samples", "sample1"),
			relationshipAttr("", "collections", ""),
		}),
	}

	result := getRelationshipsAttr(image, "relationships")
	if len(result) != 2 {
		t.Fatalf("expected 2 relationships, got %d", len(result))
	}
	if result[0].Relation != model.RelationParent {
		t.Errorf("expected relation parent, got %q", result[0].Relation)
	}
	if result[0].ItemID != "sample1" {
		t.Errorf("expected item_id sample1, got %q", result[0].ItemID)
	}
	if result[1].Type != model.TypeCollections {
		t.Errorf("expected collections type, got %q", result[1].Type)
	}
}

func TestGetRelationshipsAttr_MissingKey(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{}

	result := getRelationshipsAttr(image, "relationships")
	if result != nil {
		t.Errorf("expected nil for missing key, got %v", result)
	}
}

func TestGetRelationshipsAttr_WrongType(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"relationships": events.NewStringAttribute("not-a-list"),
	}

	result := getRelationshipsAttr(image, "relationships")
	if result != nil {
		t.Errorf("expected nil for non-list attribute, got %v", result)
	}
}

func TestGetRelationshipsAttr_SkipsNonMapEntries(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"relationships": events.NewListAttribute([]events.DynamoDBAttributeValue{
			events.NewStringAttribute("junk"),
			relationshipAttr("child", "samples", "sample9"),
		}),
	}

	result := getRelationshipsAttr(image, "relationships")
	if len(result) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(result))
	}
	if result[0].ItemID != "sample9" {
		t.Errorf("expected item_id sample9, got %q", result[0].ItemID)
	}
}

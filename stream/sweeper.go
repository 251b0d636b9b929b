// Package stream provides the DynamoDB Streams handler that sweeps up
// after item deletion: releasing the refcode constraint record and
// removing the item's relationship mirror records.
package stream

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/jacentio/specimen/logger"
	"github.com/jacentio/specimen/model"
	"github.com/jacentio/specimen/store"
)

// Handler processes DynamoDB stream events from the items table.
type Handler struct {
	store  *store.Store
	logger *zap.Logger
}

// NewHandler creates a stream handler.
func NewHandler(s *store.Store) *Handler {
	return &Handler{
		store:  s,
		logger: logger.Get(),
	}
}

// HandleItemRemoval sweeps the side records of deleted items. Designed
// to run as an AWS Lambda handler on the items table stream; each step
// is idempotent so a retried batch is harmless.
func (h *Handler) HandleItemRemoval(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process stream record",
				zap.String("eventID", record.EventID),
				zap.Error(err),
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord sweeps one REMOVE event.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != "REMOVE" {
		return nil
	}

	itemID := getStringAttr(record.Change.OldImage, "item_id")
	refcode := getStringAttr(record.Change.OldImage, "refcode")
	relationships := getRelationshipsAttr(record.Change.OldImage, "relationships")

	if itemID == "" {
		return nil
	}

	h.logger.Info("sweeping deleted item",
		zap.String("item_id", itemID),
		zap.String("refcode", refcode),
		zap.Int("relationships", len(relationships)),
	)

	if refcode != "" {
		if err := h.store.DeleteConstraint(ctx, model.Refcode(refcode)); err != nil {
			return fmt.Errorf("release refcode %q: %w", refcode, err)
		}
	}

	if err := h.store.DeleteLinksForHolder(ctx, itemID, relationships); err != nil {
		return fmt.Errorf("sweep links for %q: %w", itemID, err)
	}

	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getRelationshipsAttr extracts the relationship list from a DynamoDB
// stream image. Only the identifying fields matter for sweeping.
func getRelationshipsAttr(image map[string]events.DynamoDBAttributeValue, key string) []model.TypedRelationship {
	v, ok := image[key]
	if !ok || v.DataType() != events.DataTypeList {
		return nil
	}
	var relationships []model.TypedRelationship
	for _, entry := range v.List() {
		if entry.DataType() != events.DataTypeMap {
			continue
		}
		m := entry.Map()
		relationships = append(relationships, model.TypedRelationship{
			Relation:    model.RelationType(getStringAttr(m, "relation")),
			Type:        model.ItemType(getStringAttr(m, "type")),
			ImmutableID: getStringAttr(m, "immutable_id"),
			ItemID:      getStringAttr(m, "item_id"),
			Refcode:     model.Refcode(getStringAttr(m, "refcode")),
		})
	}
	return relationships
}

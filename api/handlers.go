package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jacentio/specimen/creation"
	"github.com/jacentio/specimen/graph"
	"github.com/jacentio/specimen/model"
	"github.com/jacentio/specimen/store"
)

type createItemRequest struct {
	NewSampleData           *model.Item `json:"new_sample_data" binding:"required"`
	CopyFromItemID          string      `json:"copy_from_item_id"`
	GenerateIDAutomatically bool        `json:"generate_id_automatically"`
}

func (s *Server) createItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	summary, err := s.engine.CreateItem(c.Request.Context(), principal(c), req.NewSampleData, creation.CreateOptions{
		CopyFromItemID: req.CopyFromItemID,
		GenerateID:     req.GenerateIDAutomatically,
	})
	if err != nil {
		c.JSON(creation.StatusCode(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":            "success",
		"sample_list_entry": summary,
	})
}

type createItemsRequest struct {
	NewSampleDatas           []*model.Item `json:"new_sample_datas" binding:"required"`
	CopyFromItemIDs          []string      `json:"copy_from_item_ids"`
	GenerateIDsAutomatically bool          `json:"generate_ids_automatically"`
}

func (s *Server) createItems(c *gin.Context) {
	var req createItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	result, err := s.engine.CreateItems(c.Request.Context(), principal(c),
		req.NewSampleDatas, req.CopyFromItemIDs, req.GenerateIDsAutomatically)
	if err != nil {
		c.JSON(creation.StatusCode(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusMultiStatus, gin.H{
		"nsuccess":   result.NSuccess,
		"nerror":     result.NError,
		"responses":  result.Responses,
		"http_codes": result.Codes,
	})
}

type deleteItemRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}

func (s *Server) deleteItem(c *gin.Context) {
	var req deleteItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	if err := s.engine.DeleteItem(c.Request.Context(), principal(c), req.ItemID); err != nil {
		switch {
		case errors.Is(err, store.ErrForbidden):
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": err.Error()})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": err.Error()})
		default:
			s.logger.Error("delete failed", zap.String("item_id", req.ItemID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type saveItemRequest struct {
	ItemID string               `json:"item_id" binding:"required"`
	Data   *creation.ItemUpdate `json:"data" binding:"required"`
}

func (s *Server) saveItem(c *gin.Context) {
	var req saveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	item, err := s.engine.SaveItem(c.Request.Context(), principal(c), req.ItemID, req.Data)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrForbidden):
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": err.Error()})
		default:
			c.JSON(creation.StatusCode(err), gin.H{"status": "error", "message": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"last_modified": item.LastModified,
	})
}

func (s *Server) getItemData(c *gin.Context) {
	itemID := c.Param("item_id")
	item, err := s.store.GetItem(c.Request.Context(), itemID, principal(c), false)
	if err != nil {
		s.renderItemFetchError(c, itemID, err)
		return
	}
	s.renderItemData(c, item)
}

func (s *Server) getItemByRefcode(c *gin.Context) {
	ref := model.ExpandRefcode(c.Param("refcode"), s.engine.IdentifierPrefix())
	item, err := s.store.GetItemByRefcode(c.Request.Context(), ref, principal(c), false)
	if err != nil {
		s.renderItemFetchError(c, string(ref), err)
		return
	}
	s.renderItemData(c, item)
}

func (s *Server) renderItemFetchError(c *gin.Context, id string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "No matching item found; this document may not exist, or may be private.",
		})
		return
	}
	s.logger.Error("item fetch failed", zap.String("id", id), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
}

// renderItemData returns the item alongside its reconciled parent and
// child lists, which merge the relationships it declares with those
// other items declare against it.
func (s *Server) renderItemData(c *gin.Context, item *model.Item) {
	parents, children, err := s.builder.ItemRelationships(c.Request.Context(), principal(c), item)
	if err != nil {
		s.logger.Error("relationship reconciliation failed",
			zap.String("item_id", item.ItemID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"item_id":      item.ItemID,
		"item_data":    item,
		"parent_items": parents,
		"child_items":  children,
	})
}

type updatePermissionsRequest struct {
	Creators []model.Person `json:"creators" binding:"required"`
}

func (s *Server) updatePermissions(c *gin.Context) {
	var req updatePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	err := s.engine.UpdatePermissions(c.Request.Context(), principal(c), c.Param("refcode"), req.Creators)
	if err != nil {
		c.JSON(creation.StatusCode(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) itemGraph(c *gin.Context) {
	opts := graph.Options{
		ItemID:          c.Param("item_id"),
		CollectionID:    c.Query("collection_id"),
		ShowCollections: c.Query("show_collections") == "true",
	}

	g, err := s.builder.Build(c.Request.Context(), principal(c), opts)
	if err != nil {
		if errors.Is(err, graph.ErrCollectionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": err.Error()})
			return
		}
		s.logger.Error("graph build failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nodes": g.Nodes, "edges": g.Edges})
}

func (s *Server) listItemsOf(itemTypes ...model.ItemType) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := s.store.ListItems(c.Request.Context(), principal(c), itemTypes...)
		if err != nil {
			s.logger.Error("item listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
			return
		}
		if items == nil {
			items = []model.Item{}
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "items": items})
	}
}

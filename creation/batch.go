package creation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jacentio/specimen/model"
	"github.com/jacentio/specimen/store"
)

// Outcome is the result of one element of a batch create.
type Outcome struct {
	Status  string   `json:"status"`
	ItemID  string   `json:"item_id,omitempty"`
	Message string   `json:"message,omitempty"`
	Summary *Summary `json:"sample_list_entry,omitempty"`
}

// BatchResult aggregates the per-item outcomes of a batch create. The
// order of Responses and Codes matches the order of the input payloads.
type BatchResult struct {
	NSuccess  int       `json:"nsuccess"`
	NError    int       `json:"nerror"`
	Responses []Outcome `json:"responses"`
	Codes     []int     `json:"http_codes"`
}

// CreateItems processes a batch of creates. The size limit is enforced
// before any element is touched; after that each element runs
// independently through the single-item path, so a failure never aborts
// its siblings nor rolls back ones that already succeeded. copyFrom, if
// non-nil, must be the same length as payloads and names a per-element
// copy source ("" for none).
func (e *Engine) CreateItems(ctx context.Context, p store.Principal, payloads []*model.Item, copyFrom []string, generateIDs bool) (*BatchResult, error) {
	if len(payloads) > e.config.MaxBatchCreateSize {
		return nil, fmt.Errorf("%w: maximum allowed: %d, requested: %d",
			ErrBatchTooLarge, e.config.MaxBatchCreateSize, len(payloads))
	}
	if copyFrom == nil {
		copyFrom = make([]string, len(payloads))
	}
	if len(copyFrom) != len(payloads) {
		return nil, fmt.Errorf("%w: received %d payloads and %d copy sources",
			ErrValidation, len(payloads), len(copyFrom))
	}

	result := &BatchResult{
		Responses: make([]Outcome, 0, len(payloads)),
		Codes:     make([]int, 0, len(payloads)),
	}

	for i, payload := range payloads {
		opts := CreateOptions{
			CopyFromItemID: copyFrom[i],
			GenerateID:     generateIDs,
		}
		summary, err := e.CreateItem(ctx, p, payload, opts)
		if err != nil {
			result.NError++
			outcome := Outcome{
				Status:  "error",
				Message: err.Error(),
			}
			if payload != nil {
				outcome.ItemID = payload.ItemID
			}
			result.Responses = append(result.Responses, outcome)
			result.Codes = append(result.Codes, StatusCode(err))
			continue
		}
		result.NSuccess++
		result.Responses = append(result.Responses, Outcome{
			Status:  "success",
			ItemID:  summary.ItemID,
			Summary: summary,
		})
		result.Codes = append(result.Codes, http.StatusCreated)
	}

	return result, nil
}

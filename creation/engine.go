// Package creation orchestrates item creation: validation, identifier
// allocation, collection resolution, copy-from-existing merges and
// persistence, for one item or a batch.
package creation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacentio/specimen/logger"
	"github.com/jacentio/specimen/model"
	"github.com/jacentio/specimen/store"
)

// writeRetries bounds re-allocation after a write-time refcode collision.
// Such a collision means another writer won the race for the same code,
// which is astronomically rare; one or two retries settle it.
const writeRetries = 3

// Store is the repository surface the engine writes through.
type Store interface {
	GetItem(ctx context.Context, itemID string, p store.Principal, userOnly bool) (*model.Item, error)
	GetItemByRefcode(ctx context.Context, refcode model.Refcode, p store.Principal, userOnly bool) (*model.Item, error)
	ItemIDExists(ctx context.Context, itemID string) (bool, error)
	CreateItem(ctx context.Context, it *model.Item) error
	UpdateItem(ctx context.Context, it *model.Item, oldRelationships []model.TypedRelationship) error
	UpdateCreatorIDs(ctx context.Context, itemID string, creatorIDs []string) error
	DeleteItem(ctx context.Context, itemID string, p store.Principal) error
	GetCollectionByID(ctx context.Context, collectionID string, p store.Principal, userOnly bool) (*store.Collection, error)
	GetCollectionByImmutableID(ctx context.Context, immutableID string, p store.Principal, userOnly bool) (*store.Collection, error)
	MissingUsers(ctx context.Context, userIDs []string) ([]string, error)
	GetUsers(ctx context.Context, userIDs []string) ([]model.Person, error)
}

// Allocator hands out unused refcodes.
type Allocator interface {
	Allocate(ctx context.Context) (model.Refcode, error)
}

// Config carries the deployment knobs the engine needs. Passed explicitly
// so the engine holds no ambient global state.
type Config struct {
	// IdentifierPrefix is the deployment refcode prefix.
	IdentifierPrefix string

	// MaxBatchCreateSize bounds a single batch-create request.
	MaxBatchCreateSize int

	// Testing seeds created items with the placeholder public user
	// instead of the acting principal.
	Testing bool
}

// Engine is the item creation engine. Stateless per call; safe for
// concurrent use.
type Engine struct {
	store  Store
	alloc  Allocator
	config Config
	logger *zap.Logger
}

// NewEngine creates a creation engine.
func NewEngine(st Store, alloc Allocator, config Config) *Engine {
	if config.MaxBatchCreateSize < 1 {
		config.MaxBatchCreateSize = 10000
	}
	return &Engine{
		store:  st,
		alloc:  alloc,
		config: config,
		logger: logger.Get(),
	}
}

// IdentifierPrefix returns the deployment refcode prefix.
func (e *Engine) IdentifierPrefix() string {
	return e.config.IdentifierPrefix
}

// CreateOptions modify a single create.
type CreateOptions struct {
	// CopyFromItemID copies the named item as the base document, with the
	// payload's identity fields overlaid and constituent lists merged.
	CopyFromItemID string

	// GenerateID derives the item_id from the allocated refcode instead
	// of requiring one in the payload.
	GenerateID bool
}

// Summary is the projection of a freshly created item returned to the
// caller.
type Summary struct {
	Refcode     model.Refcode         `json:"refcode"`
	ItemID      string                `json:"item_id"`
	NBlocks     int                   `json:"nblocks"`
	NFiles      int                   `json:"nfiles"`
	Date        time.Time             `json:"date"`
	Name        string                `json:"name"`
	Type        model.ItemType        `json:"type"`
	CreatorIDs  []string              `json:"creator_ids"`
	Creators    []model.Person        `json:"creators"`
	Collections []model.CollectionRef `json:"collections"`
	Location    string                `json:"location,omitempty"`
}

// CreateItem runs the full creation pipeline for one item. On success the
// item is persisted with a freshly allocated refcode; on any failure
// nothing is persisted and the allocated refcode (if any) is discarded —
// refcodes are never pre-reserved.
func (e *Engine) CreateItem(ctx context.Context, p store.Principal, payload *model.Item, opts CreateOptions) (*Summary, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrValidation)
	}
	if opts.GenerateID && payload.ItemID != "" {
		return nil, fmt.Errorf("%w: generate_id_automatically is incompatible with an explicit item_id (provided id: %q)",
			ErrConflictingRequest, payload.ItemID)
	}

	if opts.CopyFromItemID != "" {
		source, err := e.store.GetItem(ctx, opts.CopyFromItemID, p, false)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%w: cannot copy from item %q", ErrNotFound, opts.CopyFromItemID)
			}
			return nil, fmt.Errorf("fetch copy source %q: %w", opts.CopyFromItemID, err)
		}
		payload = mergeCopy(source, payload)
	}

	collections, err := e.resolveCollections(ctx, p, payload)
	if err != nil {
		return nil, err
	}

	if !payload.Type.Valid() {
		return nil, fmt.Errorf("%w: invalid type %q, must be one of %v", ErrValidation, payload.Type, model.KnownItemTypes)
	}

	creators := e.assignCreators(ctx, p, payload)

	// A client-supplied refcode is never honoured.
	payload.Refcode = ""
	allocated, err := e.alloc.Allocate(ctx)
	if err != nil {
		return nil, err
	}
	payload.Refcode = allocated
	if opts.GenerateID {
		payload.ItemID = allocated.Code()
	}

	// Advisory fast path; the create transaction below is authoritative.
	taken, err := e.store.ItemIDExists(ctx, payload.ItemID)
	if err != nil {
		return nil, fmt.Errorf("check item_id %q: %w", payload.ItemID, err)
	}
	if taken {
		return nil, fmt.Errorf("%w: item_id %q already exists", ErrDuplicateID, payload.ItemID)
	}

	if payload.Date.IsZero() {
		payload.Date = time.Now().UTC()
	}
	payload.ImmutableID = uuid.NewString()

	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: unable to create item %q: %s", ErrValidation, payload.ItemID, err)
	}

	if err := e.persist(ctx, payload, opts.GenerateID); err != nil {
		return nil, err
	}

	e.logger.Info("created item",
		zap.String("item_id", payload.ItemID),
		zap.String("refcode", string(payload.Refcode)),
		zap.String("type", string(payload.Type)),
	)

	summary := &Summary{
		Refcode:     payload.Refcode,
		ItemID:      payload.ItemID,
		NBlocks:     0,
		NFiles:      len(payload.FileIDs),
		Date:        payload.Date,
		Name:        payload.Name,
		Type:        payload.Type,
		CreatorIDs:  payload.CreatorIDs,
		Creators:    creators,
		Collections: collections,
	}
	if payload.Type == model.TypeEquipment {
		summary.Location = payload.Location
	}
	return summary, nil
}

// persist writes the item, re-allocating the refcode on a write-time
// refcode race. An item_id race surfaces as DuplicateIdentifier.
func (e *Engine) persist(ctx context.Context, payload *model.Item, regenerateID bool) error {
	for attempt := 0; ; attempt++ {
		err := e.store.CreateItem(ctx, payload)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, store.ErrItemIDTaken):
			return fmt.Errorf("%w: item_id %q already exists", ErrDuplicateID, payload.ItemID)
		case errors.Is(err, store.ErrRefcodeTaken) && attempt < writeRetries:
			e.logger.Warn("refcode lost write race, re-allocating",
				zap.String("refcode", string(payload.Refcode)),
			)
			allocated, aerr := e.alloc.Allocate(ctx)
			if aerr != nil {
				return aerr
			}
			payload.Refcode = allocated
			if regenerateID {
				payload.ItemID = allocated.Code()
			}
		case errors.Is(err, store.ErrRefcodeTaken):
			return fmt.Errorf("%w: refcode %q", ErrDuplicateID, payload.Refcode)
		default:
			return fmt.Errorf("persist item %q: %w", payload.ItemID, err)
		}
	}
}

// assignCreators seeds the creator list. Open-access types carry no
// creators at all; in testing mode the placeholder public user stands in
// for the acting principal.
func (e *Engine) assignCreators(ctx context.Context, p store.Principal, payload *model.Item) []model.Person {
	if payload.Type.OpenAccess() {
		payload.CreatorIDs = []string{}
		return []model.Person{}
	}
	if e.config.Testing {
		payload.CreatorIDs = []string{store.PublicUserID}
		return []model.Person{{DisplayName: "Public testing user"}}
	}
	payload.CreatorIDs = []string{p.UserID}
	people, err := e.store.GetUsers(ctx, payload.CreatorIDs)
	if err != nil || len(people) == 0 {
		return []model.Person{{ImmutableID: p.UserID}}
	}
	return people
}

// resolveCollections dereferences the payload's collection references and
// rewrites them as membership relationships. Any reference that does not
// resolve under the principal's permissions aborts the whole operation;
// no partial collection linkage is ever persisted.
func (e *Engine) resolveCollections(ctx context.Context, p store.Principal, payload *model.Item) ([]model.CollectionRef, error) {
	if len(payload.Collections) == 0 {
		return nil, nil
	}

	resolved := make([]model.CollectionRef, 0, len(payload.Collections))
	for _, ref := range payload.Collections {
		var (
			collection *store.Collection
			err        error
		)
		switch {
		case ref.ImmutableID != "":
			collection, err = e.store.GetCollectionByImmutableID(ctx, ref.ImmutableID, p, true)
		case ref.CollectionID != "":
			collection, err = e.store.GetCollectionByID(ctx, ref.CollectionID, p, true)
		default:
			err = store.ErrNotFound
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unable to create item %q inside non-existent collection %q%q",
				ErrUnresolvedReference, payload.ItemID, ref.CollectionID, ref.ImmutableID)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve collection: %w", err)
		}
		resolved = append(resolved, model.CollectionRef{
			ImmutableID:  collection.ImmutableID,
			CollectionID: collection.CollectionID,
			Title:        collection.Title,
		})
	}

	// Membership is persisted as relationships, not as a collections field.
	known := map[string]struct{}{}
	for _, r := range payload.Relationships {
		if r.IsCollectionMembership() {
			known[r.ImmutableID] = struct{}{}
		}
	}
	for _, c := range resolved {
		if _, ok := known[c.ImmutableID]; ok {
			continue
		}
		payload.Relationships = append(payload.Relationships, model.CollectionMembership(c.ImmutableID))
		known[c.ImmutableID] = struct{}{}
	}
	payload.Collections = resolved
	return resolved, nil
}

// DeleteItem removes an item. Only creators (or admins) may delete.
func (e *Engine) DeleteItem(ctx context.Context, p store.Principal, itemID string) error {
	if err := e.store.DeleteItem(ctx, itemID, p); err != nil {
		if errors.Is(err, store.ErrForbidden) {
			return fmt.Errorf("%w: authorization required to delete item %q", store.ErrForbidden, itemID)
		}
		return fmt.Errorf("delete item %q: %w", itemID, err)
	}
	e.logger.Info("deleted item", zap.String("item_id", itemID))
	return nil
}

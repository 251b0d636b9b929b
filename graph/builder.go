// Package graph materializes the provenance graph over items and
// collections, and reconciles the two directions of the relationship
// field into parent and child lists.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/jacentio/specimen/logger"
	"github.com/jacentio/specimen/model"
	"github.com/jacentio/specimen/store"
)

// Store is the read surface graph construction runs against.
type Store interface {
	AllGraphDocs(ctx context.Context, p store.Principal) ([]store.GraphDoc, error)
	DocsByItemIDs(ctx context.Context, itemIDs []string, p store.Principal) ([]store.GraphDoc, error)
	DocsMentioning(ctx context.Context, p store.Principal, targetRefs ...string) ([]store.GraphDoc, error)
	LinksTo(ctx context.Context, targetRefs ...string) ([]store.LinkRecord, error)
	GetCollectionByID(ctx context.Context, collectionID string, p store.Principal, userOnly bool) (*store.Collection, error)
	GetCollectionByImmutableID(ctx context.Context, immutableID string, p store.Principal, userOnly bool) (*store.Collection, error)
}

// ErrCollectionNotFound is returned when a graph is scoped to a
// collection that does not exist.
var ErrCollectionNotFound = errors.New("specimen: collection not found")

// NodeData is one renderable graph node.
type NodeData struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Type    model.ItemType `json:"type"`
	Special bool           `json:"special,omitempty"`
	Shape   string         `json:"shape,omitempty"`
}

// Node wraps NodeData in the envelope the renderer expects.
type Node struct {
	Data NodeData `json:"data"`
}

// EdgeData is one directed provenance edge, pointing from source
// (the upstream item) to target (the item derived from it).
type EdgeData struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Value  int    `json:"value"`
}

// Edge wraps EdgeData in the envelope the renderer expects.
type Edge struct {
	Data EdgeData `json:"data"`
}

// Graph is the materialized node/edge set.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Options select the graph's scope. A zero Options builds the global
// graph over every visible item.
type Options struct {
	// ItemID focuses the graph on one item and its two-hop neighbourhood.
	ItemID string

	// CollectionID restricts the graph to members of one collection.
	// Ignored when ItemID is set.
	CollectionID string

	// ShowCollections draws collection nodes and membership edges.
	ShowCollections bool
}

// Builder constructs graphs. Safe for concurrent use.
type Builder struct {
	store  Store
	logger *zap.Logger
}

// NewBuilder creates a graph builder.
func NewBuilder(st Store) *Builder {
	return &Builder{store: st, logger: logger.Get()}
}

// Build materializes the graph selected by opts under the principal's
// permissions. Edges are only drawn between nodes that are both in
// scope; nodes of non-core types survive the final filter only if they
// are an edge source or the focused item.
func (b *Builder) Build(ctx context.Context, p store.Principal, opts Options) (*Graph, error) {
	docs, nodeIDs, err := b.collect(ctx, p, opts)
	if err != nil {
		return nil, err
	}

	// Deterministic output regardless of scan or query ordering.
	sort.Slice(docs, func(i, j int) bool { return docs[i].ItemID < docs[j].ItemID })

	g := &Graph{Nodes: []Node{}, Edges: []Edge{}}
	drawn := map[string]struct{}{}
	drawnCollections := map[string]struct{}{}

	for i := range docs {
		doc := &docs[i]

		for j := range doc.Relationships {
			rel := &doc.Relationships[j]
			if !rel.IsCollectionMembership() || opts.CollectionID != "" {
				continue
			}
			if !opts.ShowCollections {
				continue
			}
			if err := b.drawCollection(ctx, p, g, doc, rel, nodeIDs, drawn, drawnCollections); err != nil {
				return nil, err
			}
		}

		for j := range doc.Relationships {
			rel := &doc.Relationships[j]
			if rel.Relation != model.RelationParent && rel.Relation != model.RelationPartOf {
				continue
			}
			source, target := rel.ItemID, doc.ItemID
			if _, ok := nodeIDs[source]; !ok {
				continue
			}
			if _, ok := nodeIDs[target]; !ok {
				continue
			}
			edgeID := source + "->" + target
			if _, ok := drawn[edgeID]; ok {
				continue
			}
			drawn[edgeID] = struct{}{}
			g.Edges = append(g.Edges, Edge{Data: EdgeData{
				ID:     edgeID,
				Source: source,
				Target: target,
				Value:  1,
			}})
		}

		if _, ok := drawn[doc.ItemID]; ok {
			continue
		}
		drawn[doc.ItemID] = struct{}{}
		name := doc.Name
		if name == "" {
			name = doc.ItemID
		}
		g.Nodes = append(g.Nodes, Node{Data: NodeData{
			ID:      doc.ItemID,
			Name:    name,
			Type:    doc.Type,
			Special: opts.ItemID != "" && doc.ItemID == opts.ItemID,
		}})
	}

	b.filterNodes(g, opts.ItemID)

	b.logger.Debug("built graph",
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
	)
	return g, nil
}

// collect gathers the documents in scope and the set of node IDs edges
// may connect.
func (b *Builder) collect(ctx context.Context, p store.Principal, opts Options) ([]store.GraphDoc, map[string]struct{}, error) {
	nodeIDs := map[string]struct{}{}

	if opts.ItemID == "" {
		var (
			docs []store.GraphDoc
			err  error
		)
		if opts.CollectionID != "" {
			collection, cerr := b.store.GetCollectionByID(ctx, opts.CollectionID, p, false)
			if cerr != nil {
				if errors.Is(cerr, store.ErrNotFound) {
					return nil, nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, opts.CollectionID)
				}
				return nil, nil, cerr
			}
			docs, err = b.store.DocsMentioning(ctx, p, store.CollectionRef(collection.ImmutableID))
		} else {
			docs, err = b.store.AllGraphDocs(ctx, p)
		}
		if err != nil {
			return nil, nil, err
		}
		for i := range docs {
			nodeIDs[docs[i].ItemID] = struct{}{}
		}
		return docs, nodeIDs, nil
	}

	// Focused: the item, everything mentioning it, then one more shell of
	// the items those relationships name.
	focusDocs, err := b.store.DocsByItemIDs(ctx, []string{opts.ItemID}, p)
	if err != nil {
		return nil, nil, err
	}
	mentioning, err := b.store.DocsMentioning(ctx, p, store.ItemRef(opts.ItemID))
	if err != nil {
		return nil, nil, err
	}
	docs := append(focusDocs, mentioning...)

	for i := range docs {
		nodeIDs[docs[i].ItemID] = struct{}{}
		for j := range docs[i].Relationships {
			if id := docs[i].Relationships[j].ItemID; id != "" {
				nodeIDs[id] = struct{}{}
			}
		}
	}

	if len(nodeIDs) > 1 {
		have := map[string]struct{}{opts.ItemID: {}}
		for i := range docs {
			have[docs[i].ItemID] = struct{}{}
		}
		var missing []string
		for id := range nodeIDs {
			if _, ok := have[id]; !ok {
				missing = append(missing, id)
			}
		}
		sort.Strings(missing)
		shell, err := b.store.DocsByItemIDs(ctx, missing, p)
		if err != nil {
			return nil, nil, err
		}
		docs = append(docs, shell...)
		for i := range shell {
			nodeIDs[shell[i].ItemID] = struct{}{}
		}
	}
	return docs, nodeIDs, nil
}

// drawCollection adds the triangle node for a collection membership and
// the membership edge into the holding document.
func (b *Builder) drawCollection(ctx context.Context, p store.Principal, g *Graph, doc *store.GraphDoc, rel *model.TypedRelationship, nodeIDs map[string]struct{}, drawn, drawnCollections map[string]struct{}) error {
	collection, err := b.store.GetCollectionByImmutableID(ctx, rel.ImmutableID, p, false)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	nodeID := "Collection: " + collection.CollectionID
	if _, ok := drawnCollections[rel.ImmutableID]; !ok {
		if _, ok := drawn[nodeID]; !ok {
			g.Nodes = append(g.Nodes, Node{Data: NodeData{
				ID:    nodeID,
				Name:  collection.Title,
				Type:  collection.Type,
				Shape: "triangle",
			}})
			drawnCollections[rel.ImmutableID] = struct{}{}
			drawn[nodeID] = struct{}{}
		}
	}

	if _, ok := nodeIDs[doc.ItemID]; ok {
		g.Edges = append(g.Edges, Edge{Data: EdgeData{
			ID:     nodeID + "->" + doc.ItemID,
			Source: nodeID,
			Target: doc.ItemID,
			Value:  1,
		}})
	}
	return nil
}

// filterNodes drops nodes that are neither core provenance types nor
// referenced as an edge source nor the focused item.
func (b *Builder) filterNodes(g *Graph, focusItemID string) {
	whitelist := map[string]struct{}{}
	for _, e := range g.Edges {
		whitelist[e.Data.Source] = struct{}{}
	}
	if focusItemID != "" {
		whitelist[focusItemID] = struct{}{}
	}

	kept := g.Nodes[:0]
	for _, n := range g.Nodes {
		if n.Data.Type == model.TypeSamples || n.Data.Type == model.TypeCells {
			kept = append(kept, n)
			continue
		}
		if _, ok := whitelist[n.Data.ID]; ok {
			kept = append(kept, n)
		}
	}
	g.Nodes = kept
}

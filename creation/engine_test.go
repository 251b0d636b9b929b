package creation

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/specimen/model"
	"github.com/jacentio/specimen/store"
)

// fakeStore is an in-memory Store implementation.
type fakeStore struct {
	items       map[string]*model.Item
	collections map[string]*store.Collection // by collection_id
	users       map[string]model.Person

	failCreateWith []error // popped per CreateItem call
	creatorUpdates map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:          map[string]*model.Item{},
		collections:    map[string]*store.Collection{},
		users:          map[string]model.Person{},
		creatorUpdates: map[string][]string{},
	}
}

func (f *fakeStore) GetItem(_ context.Context, itemID string, p store.Principal, userOnly bool) (*model.Item, error) {
	it, ok := f.items[itemID]
	if !ok || !p.Visible(it.Type, it.CreatorIDs, userOnly) {
		return nil, store.ErrNotFound
	}
	clone := *it
	return &clone, nil
}

func (f *fakeStore) GetItemByRefcode(_ context.Context, rc model.Refcode, p store.Principal, userOnly bool) (*model.Item, error) {
	for _, it := range f.items {
		if it.Refcode == rc {
			if !p.Visible(it.Type, it.CreatorIDs, userOnly) {
				return nil, store.ErrNotFound
			}
			clone := *it
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ItemIDExists(_ context.Context, itemID string) (bool, error) {
	_, ok := f.items[itemID]
	return ok, nil
}

func (f *fakeStore) CreateItem(_ context.Context, it *model.Item) error {
	if len(f.failCreateWith) > 0 {
		err := f.failCreateWith[0]
		f.failCreateWith = f.failCreateWith[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := f.items[it.ItemID]; ok {
		return store.ErrItemIDTaken
	}
	clone := *it
	f.items[it.ItemID] = &clone
	return nil
}

func (f *fakeStore) UpdateItem(_ context.Context, it *model.Item, _ []model.TypedRelationship) error {
	if _, ok := f.items[it.ItemID]; !ok {
		return store.ErrNotFound
	}
	clone := *it
	f.items[it.ItemID] = &clone
	return nil
}

func (f *fakeStore) UpdateCreatorIDs(_ context.Context, itemID string, creatorIDs []string) error {
	it, ok := f.items[itemID]
	if !ok {
		return store.ErrNotFound
	}
	it.CreatorIDs = creatorIDs
	f.creatorUpdates[itemID] = creatorIDs
	return nil
}

func (f *fakeStore) DeleteItem(_ context.Context, itemID string, p store.Principal) error {
	it, ok := f.items[itemID]
	if !ok {
		return store.ErrNotFound
	}
	if !p.Admin && !contains(it.CreatorIDs, p.UserID) {
		return store.ErrForbidden
	}
	delete(f.items, itemID)
	return nil
}

func (f *fakeStore) GetCollectionByID(_ context.Context, collectionID string, p store.Principal, userOnly bool) (*store.Collection, error) {
	c, ok := f.collections[collectionID]
	if !ok || !p.Visible(c.Type, c.CreatorIDs, userOnly) {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) GetCollectionByImmutableID(_ context.Context, immutableID string, p store.Principal, userOnly bool) (*store.Collection, error) {
	for _, c := range f.collections {
		if c.ImmutableID == immutableID {
			if !p.Visible(c.Type, c.CreatorIDs, userOnly) {
				return nil, store.ErrNotFound
			}
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) MissingUsers(_ context.Context, userIDs []string) ([]string, error) {
	var missing []string
	for _, id := range userIDs {
		if _, ok := f.users[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (f *fakeStore) GetUsers(_ context.Context, userIDs []string) ([]model.Person, error) {
	var people []model.Person
	for _, id := range userIDs {
		if p, ok := f.users[id]; ok {
			people = append(people, p)
		}
	}
	return people, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// fakeAllocator hands out sequential codes.
type fakeAllocator struct {
	n int
}

func (f *fakeAllocator) Allocate(context.Context) (model.Refcode, error) {
	f.n++
	code := fmt.Sprintf("%06d", f.n)
	// Map digits onto A-J to satisfy the refcode grammar
	buf := []byte(code)
	for i, b := range buf {
		buf[i] = 'A' + (b - '0')
	}
	return model.NewRefcode("test", string(buf)), nil
}

func newTestEngine(f *fakeStore) *Engine {
	return NewEngine(f, &fakeAllocator{}, Config{
		IdentifierPrefix:   "test",
		MaxBatchCreateSize: 10,
	})
}

func alice() store.Principal { return store.Principal{UserID: "alice"} }

func samplePayload(itemID string) *model.Item {
	return &model.Item{
		ItemID: itemID,
		Type:   model.TypeSamples,
		Name:   "A sample",
	}
}

func TestCreateItem_Success(t *testing.T) {
	f := newFakeStore()
	f.users["alice"] = model.Person{ImmutableID: "alice", DisplayName: "Alice"}
	e := newTestEngine(f)

	summary, err := e.CreateItem(context.Background(), alice(), samplePayload("sample1"), CreateOptions{})
	require.NoError(t, err)

	assert.Equal(t, "sample1", summary.ItemID)
	assert.NoError(t, summary.Refcode.Validate())
	assert.Equal(t, []string{"alice"}, summary.CreatorIDs)
	assert.Equal(t, "Alice", summary.Creators[0].DisplayName)
	assert.False(t, summary.Date.IsZero())

	stored := f.items["sample1"]
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.ImmutableID)
	assert.Equal(t, summary.Refcode, stored.Refcode)
}

func TestCreateItem_ConflictingRequest(t *testing.T) {
	e := newTestEngine(newFakeStore())

	_, err := e.CreateItem(context.Background(), alice(), samplePayload("sample1"), CreateOptions{GenerateID: true})
	assert.ErrorIs(t, err, ErrConflictingRequest)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
}

func TestCreateItem_GeneratedID(t *testing.T) {
	f := newFakeStore()
	e := newTestEngine(f)

	payload := samplePayload("")
	summary, err := e.CreateItem(context.Background(), alice(), payload, CreateOptions{GenerateID: true})
	require.NoError(t, err)

	assert.Equal(t, summary.Refcode.Code(), summary.ItemID)
	assert.Contains(t, f.items, summary.ItemID)
}

func TestCreateItem_ClientRefcodeDiscarded(t *testing.T) {
	f := newFakeStore()
	e := newTestEngine(f)

	payload := samplePayload("sample1")
	payload.Refcode = "test:ZZZZZZ"
	summary, err := e.CreateItem(context.Background(), alice(), payload, CreateOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, model.Refcode("test:ZZZZZZ"), summary.Refcode)
}

func TestCreateItem_DuplicateID(t *testing.T) {
	f := newFakeStore()
	e := newTestEngine(f)

	_, err := e.CreateItem(context.Background(), alice(), samplePayload("sample1"), CreateOptions{})
	require.NoError(t, err)

	_, err = e.CreateItem(context.Background(), alice(), samplePayload("sample1"), CreateOptions{})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, http.StatusConflict, StatusCode(err))
}

func TestCreateItem_WriteRaceOnItemID(t *testing.T) {
	f := newFakeStore()
	f.failCreateWith = []error{store.ErrItemIDTaken}
	e := newTestEngine(f)

	_, err := e.CreateItem(context.Background(), alice(), samplePayload("sample1"), CreateOptions{})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestCreateItem_WriteRaceOnRefcodeReallocates(t *testing.T) {
	f := newFakeStore()
	f.failCreateWith = []error{store.ErrRefcodeTaken, store.ErrRefcodeTaken}
	e := newTestEngine(f)

	summary, err := e.CreateItem(context.Background(), alice(), samplePayload("sample1"), CreateOptions{})
	require.NoError(t, err)
	// Two collisions then success: third allocation wins
	assert.Equal(t, model.Refcode("test:AAAAAD"), summary.Refcode)
}

func TestCreateItem_OpenAccessHasNoCreators(t *testing.T) {
	f := newFakeStore()
	e := newTestEngine(f)

	payload := &model.Item{ItemID: "furnace1", Type: model.TypeEquipment, Location: "Lab 2"}
	summary, err := e.CreateItem(context.Background(), alice(), payload, CreateOptions{})
	require.NoError(t, err)

	assert.Empty(t, summary.CreatorIDs)
	assert.Empty(t, summary.Creators)
	assert.Equal(t, "Lab 2", summary.Location)
}

func TestCreateItem_TestingModePublicUser(t *testing.T) {
	f := newFakeStore()
	e := NewEngine(f, &fakeAllocator{}, Config{IdentifierPrefix: "test", Testing: true})

	summary, err := e.CreateItem(context.Background(), alice(), samplePayload("sample1"), CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{store.PublicUserID}, summary.CreatorIDs)
	assert.Equal(t, "Public testing user", summary.Creators[0].DisplayName)
}

func TestCreateItem_InvalidType(t *testing.T) {
	e := newTestEngine(newFakeStore())

	payload := &model.Item{ItemID: "x1", Type: "reagents"}
	_, err := e.CreateItem(context.Background(), alice(), payload, CreateOptions{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateItem_UnresolvedCollection(t *testing.T) {
	e := newTestEngine(newFakeStore())

	payload := samplePayload("sample1")
	payload.Collections = []model.CollectionRef{{CollectionID: "nope"}}
	_, err := e.CreateItem(context.Background(), alice(), payload, CreateOptions{})
	assert.ErrorIs(t, err, ErrUnresolvedReference)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
}

func TestCreateItem_CollectionMembershipRecorded(t *testing.T) {
	f := newFakeStore()
	f.collections["col1"] = &store.Collection{
		ImmutableID:  "col1-imm",
		CollectionID: "col1",
		Title:        "My collection",
		Type:         model.TypeCollections,
		CreatorIDs:   []string{"alice"},
	}
	e := newTestEngine(f)

	payload := samplePayload("sample1")
	payload.Collections = []model.CollectionRef{{CollectionID: "col1"}}
	summary, err := e.CreateItem(context.Background(), alice(), payload, CreateOptions{})
	require.NoError(t, err)

	require.Len(t, summary.Collections, 1)
	assert.Equal(t, "My collection", summary.Collections[0].Title)

	stored := f.items["sample1"]
	require.Len(t, stored.Relationships, 1)
	assert.True(t, stored.Relationships[0].IsCollectionMembership())
	assert.Equal(t, "col1-imm", stored.Relationships[0].ImmutableID)
}

func TestCreateItem_CopyNotFound(t *testing.T) {
	e := newTestEngine(newFakeStore())

	_, err := e.CreateItem(context.Background(), alice(), samplePayload("sample2"), CreateOptions{CopyFromItemID: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestCreateItem_CopyMergesConstituents(t *testing.T) {
	f := newFakeStore()
	source := samplePayload("sample1")
	source.Refcode = "test:AAAAAA"
	source.ImmutableID = "imm1"
	source.CreatorIDs = []string{"bob"}
	source.SynthesisConstituents = []model.Constituent{
		{Item: model.EntryReference{ItemID: "A"}, Quantity: "1", Unit: "g"},
		{Item: model.EntryReference{ItemID: "B"}, Quantity: "2", Unit: "g"},
	}
	f.items["sample1"] = source
	e := newTestEngine(f)

	payload := samplePayload("sample2")
	payload.SynthesisConstituents = []model.Constituent{
		{Item: model.EntryReference{ItemID: "B"}, Quantity: "9", Unit: "g"},
		{Item: model.EntryReference{ItemID: "C"}, Quantity: "3", Unit: "g"},
	}

	_, err := e.CreateItem(context.Background(), store.Principal{UserID: "bob"}, payload, CreateOptions{CopyFromItemID: "sample1"})
	require.NoError(t, err)

	stored := f.items["sample2"]
	require.Len(t, stored.SynthesisConstituents, 3)
	var ids []string
	for _, c := range stored.SynthesisConstituents {
		ids = append(ids, c.Item.ItemID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids)
	// The copied "B" wins over the supplied one
	assert.Equal(t, "2", stored.SynthesisConstituents[1].Quantity)

	// Identity never carries over from the source
	assert.NotEqual(t, source.Refcode, stored.Refcode)
	assert.NotEqual(t, source.ImmutableID, stored.ImmutableID)
	assert.Equal(t, []string{"bob"}, stored.CreatorIDs)
}

func TestDeleteItem_Forbidden(t *testing.T) {
	f := newFakeStore()
	it := samplePayload("sample1")
	it.CreatorIDs = []string{"bob"}
	f.items["sample1"] = it
	e := newTestEngine(f)

	err := e.DeleteItem(context.Background(), alice(), "sample1")
	assert.ErrorIs(t, err, store.ErrForbidden)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Contains(t, f.items, "sample1")
}

func TestDeleteItem_Creator(t *testing.T) {
	f := newFakeStore()
	it := samplePayload("sample1")
	it.CreatorIDs = []string{"alice"}
	f.items["sample1"] = it
	e := newTestEngine(f)

	require.NoError(t, e.DeleteItem(context.Background(), alice(), "sample1"))
	assert.NotContains(t, f.items, "sample1")
}

func TestCreateItems_BatchTooLarge(t *testing.T) {
	e := newTestEngine(newFakeStore())

	payloads := make([]*model.Item, 11)
	for i := range payloads {
		payloads[i] = samplePayload(fmt.Sprintf("sample%d", i))
	}
	_, err := e.CreateItems(context.Background(), alice(), payloads, nil, false)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
}

func TestCreateItems_PartialFailure(t *testing.T) {
	f := newFakeStore()
	f.items["taken"] = samplePayload("taken")
	e := newTestEngine(f)

	payloads := []*model.Item{
		samplePayload("new1"),
		samplePayload("taken"),
		samplePayload("new2"),
	}
	result, err := e.CreateItems(context.Background(), alice(), payloads, nil, false)
	require.NoError(t, err)

	assert.Equal(t, 2, result.NSuccess)
	assert.Equal(t, 1, result.NError)
	require.Len(t, result.Responses, 3)
	require.Len(t, result.Codes, 3)

	assert.Equal(t, "success", result.Responses[0].Status)
	assert.Equal(t, "error", result.Responses[1].Status)
	assert.Equal(t, "success", result.Responses[2].Status)
	assert.Equal(t, []int{http.StatusCreated, http.StatusConflict, http.StatusCreated}, result.Codes)
	assert.Equal(t, "taken", result.Responses[1].ItemID)

	// Successes persist despite the sibling failure
	assert.Contains(t, f.items, "new1")
	assert.Contains(t, f.items, "new2")
}

func TestCreateItems_CopyFromLengthMismatch(t *testing.T) {
	e := newTestEngine(newFakeStore())
	_, err := e.CreateItems(context.Background(), alice(),
		[]*model.Item{samplePayload("s1"), samplePayload("s2")}, []string{"only-one"}, false)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdatePermissions_BaseOwnerPinned(t *testing.T) {
	f := newFakeStore()
	f.users["alice"] = model.Person{ImmutableID: "alice"}
	f.users["bob"] = model.Person{ImmutableID: "bob"}
	f.users["carol"] = model.Person{ImmutableID: "carol"}
	it := samplePayload("sample1")
	it.Refcode = "test:AAAAAA"
	it.CreatorIDs = []string{"alice", "bob"}
	f.items["sample1"] = it
	e := newTestEngine(f)

	err := e.UpdatePermissions(context.Background(), alice(), "AAAAAA", []model.Person{
		{ImmutableID: "carol"},
	})
	require.NoError(t, err)

	// alice (base owner) stays at index 0 even though the request dropped her
	assert.Equal(t, []string{"alice", "carol"}, f.creatorUpdates["sample1"])
}

func TestUpdatePermissions_ActingPrincipalRetained(t *testing.T) {
	f := newFakeStore()
	f.users["u0"] = model.Person{ImmutableID: "u0"}
	f.users["alice"] = model.Person{ImmutableID: "alice"}
	f.users["bob"] = model.Person{ImmutableID: "bob"}
	it := samplePayload("sample1")
	it.Refcode = "test:AAAAAA"
	it.CreatorIDs = []string{"u0", "alice"}
	f.items["sample1"] = it
	e := newTestEngine(f)

	// alice is a creator but not the base owner; submitting a list that
	// excludes her must not remove her own access.
	err := e.UpdatePermissions(context.Background(), alice(), "AAAAAA", []model.Person{
		{ImmutableID: "bob"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"u0", "alice", "bob"}, f.creatorUpdates["sample1"])
}

func TestUpdatePermissions_EmptyCreators(t *testing.T) {
	f := newFakeStore()
	it := samplePayload("sample1")
	it.Refcode = "test:AAAAAA"
	it.CreatorIDs = []string{"alice"}
	f.items["sample1"] = it
	e := newTestEngine(f)

	err := e.UpdatePermissions(context.Background(), alice(), "AAAAAA", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdatePermissions_UnknownUser(t *testing.T) {
	f := newFakeStore()
	f.users["alice"] = model.Person{ImmutableID: "alice"}
	it := samplePayload("sample1")
	it.Refcode = "test:AAAAAA"
	it.CreatorIDs = []string{"alice"}
	f.items["sample1"] = it
	e := newTestEngine(f)

	err := e.UpdatePermissions(context.Background(), alice(), "AAAAAA", []model.Person{
		{ImmutableID: "ghost"},
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, f.creatorUpdates)
}

func TestUpdatePermissions_RequiresCreatorAccess(t *testing.T) {
	f := newFakeStore()
	f.users["bob"] = model.Person{ImmutableID: "bob"}
	it := samplePayload("sample1")
	it.Refcode = "test:AAAAAA"
	it.CreatorIDs = []string{"bob"}
	f.items["sample1"] = it
	e := newTestEngine(f)

	err := e.UpdatePermissions(context.Background(), alice(), "AAAAAA", []model.Person{
		{ImmutableID: "bob"},
	})
	assert.ErrorIs(t, err, ErrUnresolvedReference)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
}

func TestSaveItem_UpdatesFields(t *testing.T) {
	f := newFakeStore()
	it := samplePayload("sample1")
	it.Refcode = "test:AAAAAA"
	it.ImmutableID = "imm1"
	it.Date = time.Now().UTC()
	it.CreatorIDs = []string{"alice"}
	f.items["sample1"] = it
	e := newTestEngine(f)

	name := "Renamed"
	desc := "Updated description"
	saved, err := e.SaveItem(context.Background(), alice(), "sample1", &ItemUpdate{
		Name:        &name,
		Description: &desc,
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", saved.Name)
	assert.Equal(t, "Updated description", saved.Description)
	assert.NotEmpty(t, saved.LastModified)
	assert.Equal(t, "Renamed", f.items["sample1"].Name)
}

func TestSaveItem_Forbidden(t *testing.T) {
	f := newFakeStore()
	it := samplePayload("sample1")
	it.Refcode = "test:AAAAAA"
	it.CreatorIDs = []string{"bob"}
	f.items["sample1"] = it
	e := newTestEngine(f)

	name := "Renamed"
	_, err := e.SaveItem(context.Background(), alice(), "sample1", &ItemUpdate{Name: &name})
	// Invisible items read as not found rather than leaking their existence
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveItem_OpenAccessEditableByAnyone(t *testing.T) {
	f := newFakeStore()
	it := &model.Item{
		ItemID:  "furnace1",
		Refcode: "test:AAAAAA",
		Type:    model.TypeEquipment,
		Date:    time.Now().UTC(),
	}
	f.items["furnace1"] = it
	e := newTestEngine(f)

	loc := "Lab 3"
	saved, err := e.SaveItem(context.Background(), alice(), "furnace1", &ItemUpdate{Location: &loc})
	require.NoError(t, err)
	assert.Equal(t, "Lab 3", saved.Location)
}

func TestSaveItem_ReconcilesMemberships(t *testing.T) {
	f := newFakeStore()
	f.collections["col1"] = &store.Collection{
		ImmutableID: "col1-imm", CollectionID: "col1", Type: model.TypeCollections, CreatorIDs: []string{"alice"},
	}
	f.collections["col2"] = &store.Collection{
		ImmutableID: "col2-imm", CollectionID: "col2", Type: model.TypeCollections, CreatorIDs: []string{"alice"},
	}
	it := samplePayload("sample1")
	it.Refcode = "test:AAAAAA"
	it.Date = time.Now().UTC()
	it.CreatorIDs = []string{"alice"}
	it.Relationships = []model.TypedRelationship{
		{Relation: model.RelationParent, Type: model.TypeSamples, ItemID: "parent1"},
		model.CollectionMembership("col1-imm"),
	}
	f.items["sample1"] = it
	e := newTestEngine(f)

	saved, err := e.SaveItem(context.Background(), alice(), "sample1", &ItemUpdate{
		Collections: &[]model.CollectionRef{{CollectionID: "col2"}},
	})
	require.NoError(t, err)

	var memberships, others int
	for _, r := range saved.Relationships {
		if r.IsCollectionMembership() {
			memberships++
			assert.Equal(t, "col2-imm", r.ImmutableID)
		} else {
			others++
		}
	}
	assert.Equal(t, 1, memberships)
	assert.Equal(t, 1, others)
}

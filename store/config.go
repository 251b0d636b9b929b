package store

// Config holds table names and sharding for the Store.
type Config struct {
	// ItemsTable holds one document per item, hash key "item_id".
	// A "refcode-index" GSI enables refcode lookup.
	ItemsTable string

	// LinksTable holds relationship mirror records keyed by target
	// reference, the index behind incoming-relationship queries.
	LinksTable string

	// ConstraintsTable holds refcode uniqueness records whose conditional
	// put is the final arbiter of refcode allocation.
	ConstraintsTable string

	// CollectionsTable holds one document per collection, hash key
	// "collection_id", with an "immutable-index" GSI on "immutable_id".
	CollectionsTable string

	// UsersTable holds one document per user, hash key "immutable_id".
	UsersTable string

	// LinkShards is the number of shards for the links table.
	// Higher values increase write throughput for heavily referenced
	// targets but require more queries on the fan-in path.
	// Default: 1 (no sharding, single query)
	// Max: 256
	LinkShards int
}

// DefaultConfig returns sensible defaults for small deployments.
func DefaultConfig() Config {
	return Config{
		ItemsTable:       "specimen_items",
		LinksTable:       "specimen_links",
		ConstraintsTable: "specimen_constraints",
		CollectionsTable: "specimen_collections",
		UsersTable:       "specimen_users",
		LinkShards:       1,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	defaults := DefaultConfig()
	if c.ItemsTable == "" {
		c.ItemsTable = defaults.ItemsTable
	}
	if c.LinksTable == "" {
		c.LinksTable = defaults.LinksTable
	}
	if c.ConstraintsTable == "" {
		c.ConstraintsTable = defaults.ConstraintsTable
	}
	if c.CollectionsTable == "" {
		c.CollectionsTable = defaults.CollectionsTable
	}
	if c.UsersTable == "" {
		c.UsersTable = defaults.UsersTable
	}
	if c.LinkShards < 1 {
		c.LinkShards = 1
	}
	if c.LinkShards > 256 {
		c.LinkShards = 256
	}
}

// RefcodeIndex is the GSI on the items table enabling refcode lookup.
const RefcodeIndex = "refcode-index"

// CollectionImmutableIndex is the GSI on the collections table enabling
// lookup by store-assigned immutable ID.
const CollectionImmutableIndex = "immutable-index"

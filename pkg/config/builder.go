package config

// Builder assembles a Config for a Dev environment. The zero value is not
// usable; start with NewBuilder, which seeds the mainnet limits.
type Builder struct {
	cfg Config
}

// NewBuilder returns a builder pre-populated with the default limits and an
// empty schema map.
func NewBuilder() *Builder {
	return &Builder{cfg: Config{
		SDKMaxUsersGraphSize:      1000,
		SDKMaxStaleFriendshipDays: 90,
		MaxGraphPageSizeBytes:     1024,
		MaxPageID:                 16,
		MaxKeyPageSizeBytes:       65536,
		SchemaMap:                 make(map[SchemaID]SchemaConfig),
		DsnpVersions:              []DsnpVersion{DsnpVersion1_0},
	}}
}

// WithMaxUsersGraphSize caps the number of users in one state.
func (b *Builder) WithMaxUsersGraphSize(n uint32) *Builder {
	b.cfg.SDKMaxUsersGraphSize = n
	return b
}

// WithMaxStaleFriendshipDays sets the private friendship staleness cutoff.
func (b *Builder) WithMaxStaleFriendshipDays(days uint32) *Builder {
	b.cfg.SDKMaxStaleFriendshipDays = days
	return b
}

// WithMaxGraphPageSizeBytes caps serialized graph page blobs.
func (b *Builder) WithMaxGraphPageSizeBytes(n uint32) *Builder {
	b.cfg.MaxGraphPageSizeBytes = n
	return b
}

// WithMaxPageID sets the highest usable page id.
func (b *Builder) WithMaxPageID(id uint32) *Builder {
	b.cfg.MaxPageID = id
	return b
}

// WithMaxKeyPageSizeBytes caps serialized key page blobs.
func (b *Builder) WithMaxKeyPageSizeBytes(n uint32) *Builder {
	b.cfg.MaxKeyPageSizeBytes = n
	return b
}

// WithSchema maps a schema id to a graph.
func (b *Builder) WithSchema(id SchemaID, sc SchemaConfig) *Builder {
	b.cfg.SchemaMap[id] = sc
	return b
}

// WithDsnpVersions replaces the accepted spec versions.
func (b *Builder) WithDsnpVersions(versions ...DsnpVersion) *Builder {
	b.cfg.DsnpVersions = versions
	return b
}

// Build returns the assembled config.
func (b *Builder) Build() Config {
	return b.cfg
}

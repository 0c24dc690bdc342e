// Package config defines the environments supported by the graph SDK and the
// per-environment limits and schema mappings that govern graph state.
//
// Built-in environments (Mainnet, Rococo) are loaded from embedded TOML
// resources at startup. A Dev environment carries a caller-supplied Config,
// typically assembled with Builder, and is the way tests and local chains
// override limits.
package config

import (
	"embed"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/dsnplabs/graphsdk/pkg/errors"
)

// SchemaID identifies an on-chain schema used to store a graph type.
type SchemaID uint16

// PageID identifies a page within a user's graph for one schema.
type PageID uint16

// PrivacyType describes who can read a graph.
type PrivacyType string

const (
	// PrivacyPublic graphs are readable by anyone.
	PrivacyPublic PrivacyType = "public"
	// PrivacyPrivate graphs are only readable with the owner's keys.
	PrivacyPrivate PrivacyType = "private"
)

// GraphType describes the direction of a connection.
type GraphType string

const (
	// GraphFollow is one-way and stored only on the follower side.
	GraphFollow GraphType = "follow"
	// GraphFriendship is two-way and stored on both sides.
	GraphFriendship GraphType = "friendship"
)

// ConnectionType pairs a graph direction with its privacy.
type ConnectionType struct {
	Graph   GraphType
	Privacy PrivacyType
}

// Named connection types for the four supported graphs.
var (
	FollowPublic      = ConnectionType{Graph: GraphFollow, Privacy: PrivacyPublic}
	FollowPrivate     = ConnectionType{Graph: GraphFollow, Privacy: PrivacyPrivate}
	FriendshipPublic  = ConnectionType{Graph: GraphFriendship, Privacy: PrivacyPublic}
	FriendshipPrivate = ConnectionType{Graph: GraphFriendship, Privacy: PrivacyPrivate}
)

// AllConnectionTypes lists every supported graph.
var AllConnectionTypes = []ConnectionType{
	FollowPublic,
	FriendshipPublic,
	FollowPrivate,
	FriendshipPrivate,
}

// String renders the connection type as e.g. "Follow(Private)".
func (c ConnectionType) String() string {
	graph := "Follow"
	if c.Graph == GraphFriendship {
		graph = "Friendship"
	}
	privacy := "Public"
	if c.Privacy == PrivacyPrivate {
		privacy = "Private"
	}
	return fmt.Sprintf("%s(%s)", graph, privacy)
}

// DsnpVersion is a supported version of the DSNP spec.
type DsnpVersion string

// DsnpVersion1_0 is the only version currently supported.
const DsnpVersion1_0 DsnpVersion = "1.0"

// SchemaConfig maps a schema id to the DSNP version and connection type it
// stores.
type SchemaConfig struct {
	DsnpVersion    DsnpVersion
	ConnectionType ConnectionType
}

// Config holds the limits and schema mappings for one environment.
type Config struct {
	// SDKMaxUsersGraphSize caps the number of users held in one state.
	SDKMaxUsersGraphSize uint32
	// SDKMaxStaleFriendshipDays is how long an unverifiable private
	// friendship survives before it is pruned on export.
	SDKMaxStaleFriendshipDays uint32
	// MaxGraphPageSizeBytes caps a serialized graph page blob.
	MaxGraphPageSizeBytes uint32
	// MaxPageID is the highest usable page id; page ids start at 0.
	MaxPageID uint32
	// MaxKeyPageSizeBytes caps a serialized key page blob.
	MaxKeyPageSizeBytes uint32
	// SchemaMap maps each on-chain schema id to the graph it stores.
	SchemaMap map[SchemaID]SchemaConfig
	// DsnpVersions lists the spec versions this environment accepts.
	DsnpVersions []DsnpVersion
}

// DsnpVersionForSchema returns the DSNP version for a schema id.
func (c *Config) DsnpVersionForSchema(id SchemaID) (DsnpVersion, bool) {
	sc, ok := c.SchemaMap[id]
	if !ok {
		return "", false
	}
	return sc.DsnpVersion, true
}

// ConnectionTypeForSchema returns the connection type for a schema id.
func (c *Config) ConnectionTypeForSchema(id SchemaID) (ConnectionType, bool) {
	sc, ok := c.SchemaMap[id]
	if !ok {
		return ConnectionType{}, false
	}
	return sc.ConnectionType, true
}

// SchemaForConnectionType returns the schema id storing the given graph.
func (c *Config) SchemaForConnectionType(ct ConnectionType) (SchemaID, bool) {
	var (
		best  SchemaID
		found bool
	)
	for id, sc := range c.SchemaMap {
		if sc.ConnectionType != ct {
			continue
		}
		if !found || id < best {
			best = id
			found = true
		}
	}
	return best, found
}

// Environment selects the configuration a graph state operates under.
type Environment struct {
	kind EnvironmentKind
	cfg  *Config
}

// EnvironmentKind names a supported environment.
type EnvironmentKind string

const (
	// EnvironmentMainnet is the Frequency production chain.
	EnvironmentMainnet EnvironmentKind = "mainnet"
	// EnvironmentRococo is the Frequency public test chain.
	EnvironmentRococo EnvironmentKind = "rococo"
	// EnvironmentDev is a locally configured environment.
	EnvironmentDev EnvironmentKind = "dev"
)

//go:embed resources/*.toml
var resources embed.FS

// rawSchemaEntry is the TOML shape of one schema mapping.
type rawSchemaEntry struct {
	SchemaID       uint16 `toml:"schemaId"`
	DsnpVersion    string `toml:"dsnpVersion"`
	ConnectionType string `toml:"connectionType"`
	PrivacyType    string `toml:"privacyType"`
}

// rawConfig is the TOML shape of an environment resource.
type rawConfig struct {
	SDKMaxUsersGraphSize      uint32           `toml:"sdkMaxUsersGraphSize"`
	SDKMaxStaleFriendshipDays uint32           `toml:"sdkMaxStaleFriendshipDays"`
	MaxGraphPageSizeBytes     uint32           `toml:"maxGraphPageSizeBytes"`
	MaxPageID                 uint32           `toml:"maxPageId"`
	MaxKeyPageSizeBytes       uint32           `toml:"maxKeyPageSizeBytes"`
	Schemas                   []rawSchemaEntry `toml:"schema"`
	DsnpVersions              []string         `toml:"dsnpVersions"`
}

// ParseConfig decodes an environment config from TOML.
func ParseConfig(data []byte) (Config, error) {
	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "parsing environment config")
	}

	cfg := Config{
		SDKMaxUsersGraphSize:      raw.SDKMaxUsersGraphSize,
		SDKMaxStaleFriendshipDays: raw.SDKMaxStaleFriendshipDays,
		MaxGraphPageSizeBytes:     raw.MaxGraphPageSizeBytes,
		MaxPageID:                 raw.MaxPageID,
		MaxKeyPageSizeBytes:       raw.MaxKeyPageSizeBytes,
		SchemaMap:                 make(map[SchemaID]SchemaConfig, len(raw.Schemas)),
	}
	for _, v := range raw.DsnpVersions {
		cfg.DsnpVersions = append(cfg.DsnpVersions, DsnpVersion(v))
	}
	for _, entry := range raw.Schemas {
		ct := ConnectionType{
			Graph:   GraphType(entry.ConnectionType),
			Privacy: PrivacyType(entry.PrivacyType),
		}
		switch ct.Graph {
		case GraphFollow, GraphFriendship:
		default:
			return Config{}, errors.New(errors.ErrCodeInvalidInput,
				"unknown connection type %q", entry.ConnectionType)
		}
		switch ct.Privacy {
		case PrivacyPublic, PrivacyPrivate:
		default:
			return Config{}, errors.New(errors.ErrCodeInvalidInput,
				"unknown privacy type %q", entry.PrivacyType)
		}
		cfg.SchemaMap[SchemaID(entry.SchemaID)] = SchemaConfig{
			DsnpVersion:    DsnpVersion(entry.DsnpVersion),
			ConnectionType: ct,
		}
	}
	return cfg, nil
}

var (
	mainnetConfig Config
	rococoConfig  Config
)

func init() {
	mainnetConfig = mustLoad("resources/mainnet.toml")
	rococoConfig = mustLoad("resources/rococo.toml")
}

func mustLoad(path string) Config {
	raw, err := resources.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: missing embedded resource %s: %v", path, err))
	}
	cfg, err := ParseConfig(raw)
	if err != nil {
		panic(fmt.Sprintf("config: invalid embedded resource %s: %v", path, err))
	}
	return cfg
}

// Mainnet returns the production environment.
func Mainnet() Environment {
	return Environment{kind: EnvironmentMainnet, cfg: &mainnetConfig}
}

// Rococo returns the test-chain environment.
func Rococo() Environment {
	return Environment{kind: EnvironmentRococo, cfg: &rococoConfig}
}

// Dev returns an environment backed by a caller-supplied config.
func Dev(cfg Config) Environment {
	return Environment{kind: EnvironmentDev, cfg: &cfg}
}

// Kind reports which environment this is.
func (e Environment) Kind() EnvironmentKind {
	return e.kind
}

// Config returns the environment's configuration.
func (e Environment) Config() *Config {
	if e.cfg == nil {
		return &mainnetConfig
	}
	return e.cfg
}

// Parse resolves a named built-in environment. Dev environments cannot be
// parsed from a name; construct them with Dev.
func Parse(name string) (Environment, error) {
	switch EnvironmentKind(name) {
	case EnvironmentMainnet:
		return Mainnet(), nil
	case EnvironmentRococo:
		return Rococo(), nil
	default:
		return Environment{}, errors.New(errors.ErrCodeInvalidInput,
			"unknown environment %q", name)
	}
}

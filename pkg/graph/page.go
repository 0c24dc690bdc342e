package graph

import (
	"github.com/dsnplabs/graphsdk/pkg/codec"
	"github.com/dsnplabs/graphsdk/pkg/config"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
)

// pageCapacities is the trivial fullness limit per connection type: the
// number of connections that always fits in a page without serializing it.
var pageCapacities = map[config.ConnectionType]int{
	config.FollowPrivate:     88,
	config.FriendshipPublic:  93,
	config.FollowPublic:      93,
	config.FriendshipPrivate: 49,
}

// fullnessMode picks how aggressively a page is packed.
type fullnessMode int

const (
	// fullnessTrivial compares the connection count against the fixed
	// per-type capacity.
	fullnessTrivial fullnessMode = iota
	// fullnessAggressive serializes the page and compares its byte size
	// against the page size limit.
	fullnessAggressive
)

// GraphPage is the in-memory form of one graph page.
type GraphPage struct {
	pageID      config.PageID
	privacy     config.PrivacyType
	contentHash PageHash
	prids       []dsnp.PRID
	connections []dsnp.GraphEdge
}

// newGraphPage creates an empty page.
func newGraphPage(privacy config.PrivacyType, pageID config.PageID) *GraphPage {
	return &GraphPage{pageID: pageID, privacy: privacy}
}

// parsePublicPage decodes an imported public page.
func parsePublicPage(data *PageData) (*GraphPage, error) {
	connections, err := codec.ReadPublicGraph(data.Content)
	if err != nil {
		return nil, err
	}
	return &GraphPage{
		pageID:      data.PageID,
		privacy:     config.PrivacyPublic,
		contentHash: data.ContentHash,
		connections: connections,
	}, nil
}

// parsePrivatePage decodes an imported private page, trying the key the
// chunk names first and falling back to every other resolved key.
func parsePrivatePage(data *PageData, keys []ResolvedKeyPair) (*GraphPage, error) {
	chunk, err := codec.ReadPrivateGraphChunk(data.Content)
	if err != nil {
		return nil, err
	}

	var decrypted *dsnp.DecryptedPrivateGraph
	for _, key := range keys {
		if key.KeyID != chunk.KeyID {
			continue
		}
		if d, err := codec.DecryptPrivateGraph(chunk, key.KeyPair); err == nil {
			decrypted = &d
		}
		break
	}
	if decrypted == nil {
		for _, key := range keys {
			if key.KeyID == chunk.KeyID {
				continue
			}
			if d, err := codec.DecryptPrivateGraph(chunk, key.KeyPair); err == nil {
				decrypted = &d
				break
			}
		}
	}
	if decrypted == nil {
		return nil, errors.New(errors.ErrCodeCodecDecrypt,
			"unable to decrypt private page %d with any resolved key", data.PageID)
	}

	return &GraphPage{
		pageID:      data.PageID,
		privacy:     config.PrivacyPrivate,
		contentHash: data.ContentHash,
		prids:       decrypted.PRIDs,
		connections: decrypted.InnerGraph,
	}, nil
}

// PageID returns the page's id.
func (p *GraphPage) PageID() config.PageID { return p.pageID }

// ContentHash returns the hash the page was imported with.
func (p *GraphPage) ContentHash() PageHash { return p.contentHash }

// SetContentHash records a new on-chain hash for the page.
func (p *GraphPage) SetContentHash(h PageHash) { p.contentHash = h }

// Connections returns the page's edges.
func (p *GraphPage) Connections() []dsnp.GraphEdge { return p.connections }

// SetConnections replaces the page's edges.
func (p *GraphPage) SetConnections(edges []dsnp.GraphEdge) { p.connections = edges }

// PRIDs returns the page's relationship identifiers.
func (p *GraphPage) PRIDs() []dsnp.PRID { return p.prids }

// IsEmpty reports whether the page has no connections.
func (p *GraphPage) IsEmpty() bool { return len(p.connections) == 0 }

// Contains reports whether the page holds a connection to the user.
func (p *GraphPage) Contains(id dsnp.UserID) bool {
	for _, c := range p.connections {
		if c.UserID == id {
			return true
		}
	}
	return false
}

// ContainsAny reports whether the page holds a connection to any listed
// user.
func (p *GraphPage) ContainsAny(ids []dsnp.UserID) bool {
	for _, id := range ids {
		if p.Contains(id) {
			return true
		}
	}
	return false
}

// AddConnection appends a connection stamped with the current time. Adding
// a duplicate is an error.
func (p *GraphPage) AddConnection(id dsnp.UserID) error {
	if p.Contains(id) {
		return errors.New(errors.ErrCodeDuplicateConnection,
			"connection to %d already in page %d", id, p.pageID)
	}
	p.connections = append(p.connections, dsnp.GraphEdge{UserID: id, Since: timeInKsecs()})
	return nil
}

// RemoveConnection removes a connection. Removing an absent connection is
// an error.
func (p *GraphPage) RemoveConnection(id dsnp.UserID) error {
	if !p.Contains(id) {
		return errors.New(errors.ErrCodeConnectionNotFound,
			"connection to %d not found in page %d", id, p.pageID)
	}
	kept := p.connections[:0]
	for _, c := range p.connections {
		if c.UserID != id {
			kept = append(kept, c)
		}
	}
	p.connections = kept
	return nil
}

// RemoveConnections removes every listed connection present in the page;
// absent ids are ignored.
func (p *GraphPage) RemoveConnections(ids []dsnp.UserID) {
	drop := make(map[dsnp.UserID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := p.connections[:0]
	for _, c := range p.connections {
		if _, gone := drop[c.UserID]; !gone {
			kept = append(kept, c)
		}
	}
	p.connections = kept
}

// SetPRIDs replaces the page's relationship identifiers; the count must
// match the connection count.
func (p *GraphPage) SetPRIDs(prids []dsnp.PRID) error {
	if len(prids) != len(p.connections) {
		return errors.New(errors.ErrCodeInvalidInput,
			"page %d: prid count %d does not match connection count %d",
			p.pageID, len(prids), len(p.connections))
	}
	p.prids = prids
	return nil
}

// ClearPRIDs drops the page's relationship identifiers.
func (p *GraphPage) ClearPRIDs() { p.prids = nil }

// toRemovedPageData renders the page as an empty payload, which exports as
// a page deletion.
func (p *GraphPage) toRemovedPageData() PageData {
	return PageData{PageID: p.pageID, ContentHash: p.contentHash}
}

// toPublicPageData serializes a public page for export.
func (p *GraphPage) toPublicPageData() (PageData, error) {
	if p.privacy != config.PrivacyPublic {
		return PageData{}, errors.New(errors.ErrCodeWrongPrivacyType,
			"cannot export private page as public blob")
	}
	content, err := codec.WritePublicGraph(p.connections)
	if err != nil {
		return PageData{}, err
	}
	return PageData{PageID: p.pageID, ContentHash: p.contentHash, Content: content}, nil
}

// toPrivatePageData serializes and seals a private page for export with
// the given resolved key.
func (p *GraphPage) toPrivatePageData(key ResolvedKeyPair) (PageData, error) {
	if p.privacy != config.PrivacyPrivate {
		return PageData{}, errors.New(errors.ErrCodeWrongPrivacyType,
			"cannot export public page as private blob")
	}
	content, err := codec.WritePrivateGraph(dsnp.DecryptedPrivateGraph{
		KeyID:      key.KeyID,
		PRIDs:      p.prids,
		InnerGraph: p.connections,
	}, key.KeyPair.Public)
	if err != nil {
		return PageData{}, err
	}
	return PageData{PageID: p.pageID, ContentHash: p.contentHash, Content: content}, nil
}

// clone returns a deep copy of the page.
func (p *GraphPage) clone() *GraphPage {
	return &GraphPage{
		pageID:      p.pageID,
		privacy:     p.privacy,
		contentHash: p.contentHash,
		prids:       append([]dsnp.PRID(nil), p.prids...),
		connections: append([]dsnp.GraphEdge(nil), p.connections...),
	}
}

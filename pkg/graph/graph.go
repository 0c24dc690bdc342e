package graph

import (
	"sort"

	"github.com/dsnplabs/graphsdk/pkg/config"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
	"github.com/dsnplabs/graphsdk/pkg/transactional"
)

// Graph holds the pages of one user's connections of a single type.
type Graph struct {
	cfg            *config.Config
	userID         dsnp.UserID
	schemaID       config.SchemaID
	connectionType config.ConnectionType
	pages          *transactional.Map[config.PageID, *GraphPage]
	keyManager     *UserKeyManager
}

// NewGraph creates an empty graph for one schema of a user.
func NewGraph(cfg *config.Config, userID dsnp.UserID, schemaID config.SchemaID, km *UserKeyManager) (*Graph, error) {
	ct, ok := cfg.ConnectionTypeForSchema(schemaID)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidSchemaID,
			"schema id %d is not configured", schemaID)
	}
	return &Graph{
		cfg:            cfg,
		userID:         userID,
		schemaID:       schemaID,
		connectionType: ct,
		pages:          transactional.NewMap[config.PageID, *GraphPage](),
		keyManager:     km,
	}, nil
}

// UserID returns the graph owner.
func (g *Graph) UserID() dsnp.UserID { return g.userID }

// SchemaID returns the schema this graph is stored under.
func (g *Graph) SchemaID() config.SchemaID { return g.schemaID }

// ConnectionType returns the graph's connection type.
func (g *Graph) ConnectionType() config.ConnectionType { return g.connectionType }

// Len returns the total connection count across all pages.
func (g *Graph) Len() int {
	n := 0
	for _, page := range g.pages.Inner() {
		n += len(page.Connections())
	}
	return n
}

// Clear removes all pages.
func (g *Graph) Clear() {
	g.pages.Clear()
}

// sortedPageIDs returns the graph's page ids in ascending order; page
// iteration is ordered to keep exported updates deterministic.
func (g *Graph) sortedPageIDs() []config.PageID {
	ids := make([]config.PageID, 0, g.pages.Len())
	for id := range g.pages.Inner() {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// nextAvailablePageID returns the lowest unused page id, if any is left.
func (g *Graph) nextAvailablePageID() (config.PageID, bool) {
	for pid := config.PageID(0); pid <= config.PageID(g.cfg.MaxPageID); pid++ {
		if _, used := g.pages.Get(pid); !used {
			return pid, true
		}
	}
	return 0, false
}

// ImportPublic replaces the graph's pages with decoded public chain pages.
func (g *Graph) ImportPublic(pages []PageData) error {
	if g.connectionType.Privacy != config.PrivacyPublic {
		return errors.New(errors.ErrCodeWrongPrivacyType,
			"cannot import public pages into %s graph", g.connectionType)
	}
	parsed := make(map[config.PageID]*GraphPage, len(pages))
	for i := range pages {
		if uint32(pages[i].PageID) > g.cfg.MaxPageID {
			return errors.New(errors.ErrCodeInvalidPageID,
				"page id %d exceeds maximum %d", pages[i].PageID, g.cfg.MaxPageID)
		}
		page, err := parsePublicPage(&pages[i])
		if err != nil {
			return err
		}
		parsed[page.PageID()] = page
	}
	g.pages.Clear()
	for id, page := range parsed {
		g.pages.Set(id, page)
	}
	return nil
}

// ImportPrivate replaces the graph's pages with decrypted private chain
// pages, using every resolved key of the owner.
func (g *Graph) ImportPrivate(pages []PageData) error {
	if g.connectionType.Privacy != config.PrivacyPrivate {
		return errors.New(errors.ErrCodeWrongPrivacyType,
			"cannot import private pages into %s graph", g.connectionType)
	}
	keys := g.keyManager.GetAllResolvedKeys()
	parsed := make(map[config.PageID]*GraphPage, len(pages))
	for i := range pages {
		if uint32(pages[i].PageID) > g.cfg.MaxPageID {
			return errors.New(errors.ErrCodeInvalidPageID,
				"page id %d exceeds maximum %d", pages[i].PageID, g.cfg.MaxPageID)
		}
		page, err := parsePrivatePage(&pages[i], keys)
		if err != nil {
			return err
		}
		if err := g.verifyPagePRIDs(page); err != nil {
			return err
		}
		parsed[page.PageID()] = page
	}
	g.pages.Clear()
	for id, page := range parsed {
		g.pages.Set(id, page)
	}
	return nil
}

// verifyPagePRIDs checks imported private friendship pages carry one PRID
// per connection.
func (g *Graph) verifyPagePRIDs(page *GraphPage) error {
	if g.connectionType != config.FriendshipPrivate {
		return nil
	}
	if len(page.PRIDs()) != len(page.Connections()) {
		return errors.New(errors.ErrCodeInvalidInput,
			"page %d: prid count %d does not match connection count %d",
			page.PageID(), len(page.PRIDs()), len(page.Connections()))
	}
	return nil
}

// GetPage returns the page with the given id.
func (g *Graph) GetPage(pageID config.PageID) (*GraphPage, bool) {
	return g.pages.Get(pageID)
}

// HasConnection reports whether the graph holds a connection to the user.
func (g *Graph) HasConnection(id dsnp.UserID) bool {
	_, found := g.findConnection(id)
	return found
}

// findConnection returns the page id holding the connection, if present.
func (g *Graph) findConnection(id dsnp.UserID) (config.PageID, bool) {
	for _, pid := range g.sortedPageIDs() {
		page, _ := g.pages.Get(pid)
		if page.Contains(id) {
			return pid, true
		}
	}
	return 0, false
}

// findConnections returns all page ids holding any of the listed users.
func (g *Graph) findConnections(ids []dsnp.UserID) []config.PageID {
	found := make([]config.PageID, 0)
	for _, pid := range g.sortedPageIDs() {
		page, _ := g.pages.Get(pid)
		if page.ContainsAny(ids) {
			found = append(found, pid)
		}
	}
	return found
}

// Connections returns every edge across all pages.
func (g *Graph) Connections() []dsnp.GraphEdge {
	edges := make([]dsnp.GraphEdge, 0, g.Len())
	for _, pid := range g.sortedPageIDs() {
		page, _ := g.pages.Get(pid)
		edges = append(edges, page.Connections()...)
	}
	return edges
}

// AddConnectionToPage inserts a connection into the given page, creating
// the page if needed. Adding a user already present anywhere in the graph
// is an error.
func (g *Graph) AddConnectionToPage(pageID config.PageID, id dsnp.UserID) error {
	if _, exists := g.findConnection(id); exists {
		return errors.New(errors.ErrCodeConnectionExists,
			"connection to %d already exists in graph", id)
	}
	var updated *GraphPage
	if page, ok := g.pages.Get(pageID); ok {
		updated = page.clone()
	} else {
		updated = newGraphPage(g.connectionType.Privacy, pageID)
	}
	if err := updated.AddConnection(id); err != nil {
		return err
	}
	g.pages.Set(pageID, updated)
	return nil
}

// RemoveConnection removes a connection, returning the page id it was
// removed from. Removing an absent connection is a no-op.
func (g *Graph) RemoveConnection(id dsnp.UserID) (config.PageID, bool, error) {
	pageID, found := g.findConnection(id)
	if !found {
		return 0, false, nil
	}
	page, _ := g.pages.Get(pageID)
	updated := page.clone()
	if err := updated.RemoveConnection(id); err != nil {
		return 0, false, err
	}
	g.pages.Set(pageID, updated)
	return pageID, true, nil
}

// GetOneSidedFriendships returns private friendship connections whose
// other side can no longer be verified from imported PRIDs.
func (g *Graph) GetOneSidedFriendships() ([]dsnp.GraphEdge, error) {
	if g.connectionType != config.FriendshipPrivate {
		return nil, errors.New(errors.ErrCodeWrongPrivacyType,
			"one-sided friendships only exist in private friendship graphs")
	}
	oneSided := make([]dsnp.GraphEdge, 0)
	for _, edge := range g.Connections() {
		verified, err := g.keyManager.VerifyConnection(edge.UserID)
		if err != nil {
			return nil, err
		}
		if !verified {
			oneSided = append(oneSided, edge)
		}
	}
	return oneSided, nil
}

// encryptionKey returns the owner's resolved active key for private
// graphs, or nil for public ones.
func (g *Graph) encryptionKey() *ResolvedKeyPair {
	if g.connectionType.Privacy != config.PrivacyPrivate {
		return nil
	}
	if key, ok := g.keyManager.GetResolvedActiveKey(g.userID); ok {
		return &key
	}
	return nil
}

// CalculateUpdates turns pending tracker events into chain updates,
// packing additions into as few touched pages as possible: pages with
// removals first, then the emptiest existing pages, then fresh pages.
func (g *Graph) CalculateUpdates(events []UpdateEvent) ([]Update, error) {
	encryptionKey := g.encryptionKey()

	idsToRemove := make([]dsnp.UserID, 0)
	idsToAdd := make([]dsnp.UserID, 0)
	for _, e := range events {
		switch e.Kind {
		case EventRemove:
			idsToRemove = append(idsToRemove, e.UserID)
		case EventAdd:
			idsToAdd = append(idsToAdd, e.UserID)
		}
	}

	// pages that lose connections are preferred targets for additions,
	// to keep the number of updated pages small
	updatedPages := make(map[config.PageID]*GraphPage)
	for _, pid := range g.findConnections(idsToRemove) {
		page, _ := g.pages.Get(pid)
		updated := page.clone()
		updated.RemoveConnections(idsToRemove)
		updatedPages[pid] = updated
	}

	addQueue := idsToAdd
	for _, mode := range []fullnessMode{fullnessTrivial, fullnessAggressive} {
		if len(addQueue) == 0 {
			break
		}
		for _, pid := range sortedKeys(updatedPages) {
			addQueue = g.fillPage(updatedPages[pid], addQueue, mode, encryptionKey)
			if len(addQueue) == 0 {
				break
			}
		}
	}

	// remaining existing pages, emptiest first, packed aggressively
	if len(addQueue) > 0 {
		remaining := make([]*GraphPage, 0)
		for _, pid := range g.sortedPageIDs() {
			if _, touched := updatedPages[pid]; !touched {
				page, _ := g.pages.Get(pid)
				remaining = append(remaining, page)
			}
		}
		sort.SliceStable(remaining, func(i, j int) bool {
			return len(remaining[i].Connections()) < len(remaining[j].Connections())
		})
		for _, page := range remaining {
			updated := page.clone()
			before := len(addQueue)
			addQueue = g.fillPage(updated, addQueue, fullnessAggressive, encryptionKey)
			if len(addQueue) != before {
				updatedPages[updated.PageID()] = updated
			}
			if len(addQueue) == 0 {
				break
			}
		}
	}

	// all existing pages are full; open fresh pages for the rest
	for len(addQueue) > 0 {
		pid, ok := g.nextAvailablePageIDExcluding(updatedPages)
		if !ok {
			return nil, errors.New(errors.ErrCodeGraphFull, "graph is full")
		}
		fresh := newGraphPage(g.connectionType.Privacy, pid)
		before := len(addQueue)
		addQueue = g.fillPage(fresh, addQueue, fullnessAggressive, encryptionKey)
		if len(addQueue) == before {
			return nil, errors.New(errors.ErrCodeGraphFull,
				"connection does not fit in an empty page")
		}
		updatedPages[pid] = fresh
	}

	return g.pagesToUpdates(updatedPages, encryptionKey, idsToAdd)
}

// nextAvailablePageIDExcluding returns the lowest page id unused by both
// the graph and the in-progress update set.
func (g *Graph) nextAvailablePageIDExcluding(updated map[config.PageID]*GraphPage) (config.PageID, bool) {
	for pid := config.PageID(0); pid <= config.PageID(g.cfg.MaxPageID); pid++ {
		if _, used := g.pages.Get(pid); used {
			continue
		}
		if _, used := updated[pid]; used {
			continue
		}
		return pid, true
	}
	return 0, false
}

// fillPage adds queued connections to the page until it is full under the
// given mode, returning the connections that did not fit.
func (g *Graph) fillPage(page *GraphPage, queue []dsnp.UserID, mode fullnessMode, key *ResolvedKeyPair) []dsnp.UserID {
	for len(queue) > 0 {
		if err := g.tryAddConnectionToPage(page, queue[0], mode, key); err != nil {
			break
		}
		queue = queue[1:]
	}
	return queue
}

// tryAddConnectionToPage adds a connection if the page is not full. A
// trivially non-full page always accepts; otherwise aggressive mode
// serializes the page to check the real size.
func (g *Graph) tryAddConnectionToPage(page *GraphPage, id dsnp.UserID, mode fullnessMode, key *ResolvedKeyPair) error {
	capacity, ok := pageCapacities[g.connectionType]
	if !ok {
		capacity = smallestPageCapacity()
	}

	if len(page.Connections()) < capacity {
		return page.AddConnection(id)
	}
	if mode == fullnessTrivial {
		return errors.New(errors.ErrCodePageTriviallyFull, "page is trivially full")
	}

	temp := page.clone()
	if err := temp.AddConnection(id); err != nil {
		return err
	}
	blob, err := g.renderPage(temp, key, []dsnp.UserID{id})
	if err != nil {
		return err
	}
	if len(blob.Content) > int(g.cfg.MaxGraphPageSizeBytes) {
		return errors.New(errors.ErrCodePageAggressivelyFull, "page is aggressively full")
	}
	return page.AddConnection(id)
}

// renderPage serializes one page for export, refreshing PRIDs or clearing
// them as the connection type demands.
func (g *Graph) renderPage(page *GraphPage, key *ResolvedKeyPair, idsToAdd []dsnp.UserID) (PageData, error) {
	switch g.connectionType {
	case config.FollowPublic, config.FriendshipPublic:
		return page.toPublicPageData()
	case config.FollowPrivate:
		if key == nil {
			return PageData{}, errors.New(errors.ErrCodeNoActiveKey, "no resolved active key found")
		}
		rendered := page.clone()
		rendered.ClearPRIDs()
		return rendered.toPrivatePageData(*key)
	default: // private friendship
		if key == nil {
			return PageData{}, errors.New(errors.ErrCodeNoActiveKey, "no resolved active key found")
		}
		rendered := page.clone()
		if err := g.applyPRIDs(rendered, idsToAdd, *key); err != nil {
			return PageData{}, err
		}
		return rendered.toPrivatePageData(*key)
	}
}

// applyPRIDs drops stale unverifiable friendships from the page and
// recalculates a PRID for every remaining connection.
func (g *Graph) applyPRIDs(page *GraphPage, idsToAdd []dsnp.UserID, key ResolvedKeyPair) error {
	if g.connectionType != config.FriendshipPrivate {
		return errors.New(errors.ErrCodeWrongPrivacyType,
			"prids only apply to private friendship graphs")
	}

	adding := make(map[dsnp.UserID]struct{}, len(idsToAdd))
	for _, id := range idsToAdd {
		adding[id] = struct{}{}
	}

	maxStaleDays := uint64(g.cfg.SDKMaxStaleFriendshipDays)
	existing := append([]dsnp.GraphEdge(nil), page.Connections()...)
	for _, c := range existing {
		if _, fresh := adding[c.UserID]; fresh {
			continue
		}
		if durationDaysSince(c.Since) <= maxStaleDays {
			continue
		}
		verified, err := g.keyManager.VerifyConnection(c.UserID)
		if err != nil {
			return err
		}
		if !verified {
			// the other side removed the friendship
			if err := page.RemoveConnection(c.UserID); err != nil {
				return err
			}
		}
	}

	prids := make([]dsnp.PRID, 0, len(page.Connections()))
	for _, c := range page.Connections() {
		prid, err := g.keyManager.CalculatePRID(g.userID, c.UserID, key.KeyPair.Secret)
		if err != nil {
			return err
		}
		prids = append(prids, prid)
	}
	return page.SetPRIDs(prids)
}

// pagesToUpdates converts the calculated page set to chain updates; pages
// left empty export as deletions.
func (g *Graph) pagesToUpdates(updatedPages map[config.PageID]*GraphPage, key *ResolvedKeyPair, idsToAdd []dsnp.UserID) ([]Update, error) {
	updates := make([]Update, 0, len(updatedPages))
	removed := make([]PageData, 0)

	for _, pid := range sortedKeys(updatedPages) {
		page := updatedPages[pid]
		if page.IsEmpty() {
			removed = append(removed, page.toRemovedPageData())
			continue
		}
		blob, err := g.renderPage(page, key, idsToAdd)
		if err != nil {
			return nil, err
		}
		updates = append(updates, updateFromPageData(g.userID, g.schemaID, blob))
	}
	for _, blob := range removed {
		updates = append(updates, updateFromPageData(g.userID, g.schemaID, blob))
	}
	return updates, nil
}

// ForceRecalculate re-exports every page as-is, refreshing PRIDs and
// re-encrypting with the current active key. Empty pages export as
// deletions.
func (g *Graph) ForceRecalculate() ([]Update, error) {
	encryptionKey := g.encryptionKey()
	updates := make([]Update, 0, g.pages.Len())

	for _, pid := range g.sortedPageIDs() {
		page, _ := g.pages.Get(pid)
		var (
			blob PageData
			err  error
		)
		if page.IsEmpty() {
			blob = page.toRemovedPageData()
		} else {
			blob, err = g.renderPage(page, encryptionKey, nil)
			if err != nil {
				return nil, err
			}
		}
		updates = append(updates, updateFromPageData(g.userID, g.schemaID, blob))
	}
	return updates, nil
}

// Commit makes page changes permanent.
func (g *Graph) Commit() {
	g.pages.Commit()
}

// Rollback restores the pages at the last commit.
func (g *Graph) Rollback() {
	g.pages.Rollback()
}

// smallestPageCapacity is the fallback trivial capacity for unknown
// connection types.
func smallestPageCapacity() int {
	smallest := 0
	for _, c := range pageCapacities {
		if smallest == 0 || c < smallest {
			smallest = c
		}
	}
	return smallest
}

// sortedKeys returns a map's page ids in ascending order.
func sortedKeys(m map[config.PageID]*GraphPage) []config.PageID {
	ids := make([]config.PageID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

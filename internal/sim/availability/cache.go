package availability

import (
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"

	"autoequip.ai/internal/sim/world/kernel/model"
)

const (
	treeMinChildren = 25
	treeMaxChildren = 50

	// Half side of the box a weapon occupies in the index (one cell).
	cellTol = 0.5
)

// entry is what the R-tree stores. Its bounds are fixed at insert time so a
// later move can still find and delete the old node.
type entry struct {
	w    model.Weapon
	rect rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect { return e.rect }

func newEntry(w model.Weapon) *entry {
	p := rtreego.Point{float64(w.Pos.X), float64(w.Pos.Z)}
	return &entry{w: w, rect: p.ToRect(cellTol)}
}

type mapIndex struct {
	tree *rtreego.Rtree
	byID map[string]*entry
}

func newMapIndex() *mapIndex {
	return &mapIndex{
		tree: rtreego.NewTree(2, treeMinChildren, treeMaxChildren),
		byID: map[string]*entry{},
	}
}

// Cache tracks weapons lying in the world, indexed per map for radius
// queries. Safe for concurrent readers; mutations are exclusive.
type Cache struct {
	mu    sync.RWMutex
	maps  map[string]*mapIndex
	where map[string]string // weapon id -> map id
}

func New() *Cache {
	return &Cache{
		maps:  map[string]*mapIndex{},
		where: map[string]string{},
	}
}

// Register inserts w, or refreshes it when the id is already tracked.
func (c *Cache) Register(w model.Weapon) {
	if w.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(w.ID)
	c.insertLocked(w)
}

// Unregister drops id. Unknown ids are ignored.
func (c *Cache) Unregister(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(id)
}

type Change struct {
	MapID   *string
	Pos     *model.Vec3i
	Quality *model.Quality
	Mass    *float64
}

// Update applies a partial change. It reports false when id is not tracked.
func (c *Cache) Update(id string, ch Change) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	mid, ok := c.where[id]
	if !ok {
		return false
	}
	e := c.maps[mid].byID[id]
	w := e.w
	if ch.MapID != nil {
		w.MapID = *ch.MapID
	}
	if ch.Pos != nil {
		w.Pos = *ch.Pos
	}
	if ch.Quality != nil {
		w.Quality = *ch.Quality
	}
	if ch.Mass != nil {
		w.Mass = *ch.Mass
	}

	if w.MapID == e.w.MapID && w.Pos == e.w.Pos {
		// Same bounds: swap the payload in place.
		e.w = w
		return true
	}
	c.removeLocked(id)
	c.insertLocked(w)
	return true
}

func (c *Cache) Move(id, mapID string, pos model.Vec3i) bool {
	return c.Update(id, Change{MapID: &mapID, Pos: &pos})
}

func (c *Cache) SetQuality(id string, q model.Quality) bool {
	return c.Update(id, Change{Quality: &q})
}

func (c *Cache) Get(id string) (model.Weapon, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mid, ok := c.where[id]
	if !ok {
		return model.Weapon{}, false
	}
	return c.maps[mid].byID[id].w, true
}

func (c *Cache) Exists(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.where[id]
	return ok
}

// QueryNear returns copies of every weapon on mapID within radius of origin
// on the X/Z plane. Order is unspecified.
func (c *Cache) QueryNear(mapID string, origin model.Vec3i, radius float64) []model.Weapon {
	if radius <= 0 {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx := c.maps[mapID]
	if idx == nil || idx.tree.Size() == 0 {
		return nil
	}
	p := rtreego.Point{float64(origin.X), float64(origin.Z)}
	hits := idx.tree.SearchIntersect(p.ToRect(radius))
	out := make([]model.Weapon, 0, len(hits))
	for _, h := range hits {
		e := h.(*entry)
		if model.DistXZ(origin, e.w.Pos) > radius {
			continue
		}
		out = append(out, e.w)
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.where)
}

func (c *Cache) MapLen(mapID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if idx := c.maps[mapID]; idx != nil {
		return len(idx.byID)
	}
	return 0
}

func (c *Cache) Maps() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.maps))
	for id := range c.maps {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DropMap forgets every weapon on mapID (map unloaded).
func (c *Cache) DropMap(mapID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.maps[mapID]
	if idx == nil {
		return nil
	}
	ids := make([]string, 0, len(idx.byID))
	for id := range idx.byID {
		ids = append(ids, id)
		delete(c.where, id)
	}
	delete(c.maps, mapID)
	sort.Strings(ids)
	return ids
}

func (c *Cache) insertLocked(w model.Weapon) {
	idx := c.maps[w.MapID]
	if idx == nil {
		idx = newMapIndex()
		c.maps[w.MapID] = idx
	}
	e := newEntry(w)
	idx.tree.Insert(e)
	idx.byID[w.ID] = e
	c.where[w.ID] = w.MapID
}

func (c *Cache) removeLocked(id string) bool {
	mid, ok := c.where[id]
	if !ok {
		return false
	}
	idx := c.maps[mid]
	e := idx.byID[id]
	idx.tree.Delete(e)
	delete(idx.byID, id)
	delete(c.where, id)
	if len(idx.byID) == 0 {
		delete(c.maps, mid)
	}
	return true
}

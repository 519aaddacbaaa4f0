package livedoc

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// stable integer identity for a resolved node, used to synchronize with the
// external layout solver across resolution passes
type LayoutId int32

// component layout id of nodes outside any component instance
const RootComponentLayoutId LayoutId = 0

// ParentComponentChain records (instanceId, componentInfo) from the root to
// the current node's nearest component ancestor. Links are append-only and
// shared between siblings descending from the same ancestor. Each link
// precomputes a combined hash of itself and its parent so identity lookups
// by chain are O(1).
type ParentComponentChain struct {
	parent     *ParentComponentChain
	instanceId string
	info       *ComponentInfo
	hash       uint64
}

func (self *ParentComponentChain) Push(instanceId string, info *ComponentInfo) *ParentComponentChain {
	h := fnv.New64a()
	var parentHash uint64
	if self != nil {
		parentHash = self.hash
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], parentHash)
	h.Write(buf[:])
	h.Write([]byte(instanceId))
	h.Write([]byte{0})
	if info != nil {
		h.Write([]byte(info.Id))
	}
	return &ParentComponentChain{
		parent:     self,
		instanceId: instanceId,
		info:       info,
		hash:       h.Sum64(),
	}
}

func (self *ParentComponentChain) Hash() uint64 {
	if self == nil {
		return 0
	}
	return self.hash
}

func (self *ParentComponentChain) Info() *ComponentInfo {
	if self == nil {
		return nil
	}
	return self.info
}

// comparable
type nodeIdKey struct {
	componentId LayoutId
	uniqueId    string
}

// comparable
type syntheticIdKey struct {
	parentId LayoutId
	index    int
}

// LayoutIdAllocator assigns layout ids that are stable across resolution
// passes for unchanged structure. It persists across passes; a pass brackets
// allocations between BeginPass and EndPass. Not safe for concurrent use by
// design: allocation happens synchronously on the context that owns the
// resolution pass.
type LayoutIdAllocator struct {
	nextId LayoutId

	// chain hash -> component layout id
	chainIds map[uint64]LayoutId
	// (component layout id, authored unique id) -> layout id
	nodeIds map[nodeIdKey]LayoutId
	// (parent layout id, child index) -> layout id, namespaced apart from
	// authored nodes
	syntheticIds map[syntheticIdKey]LayoutId

	visited map[LayoutId]bool
	live    map[LayoutId]bool
}

func NewLayoutIdAllocator() *LayoutIdAllocator {
	return &LayoutIdAllocator{
		nextId:       1,
		chainIds:     map[uint64]LayoutId{},
		nodeIds:      map[nodeIdKey]LayoutId{},
		syntheticIds: map[syntheticIdKey]LayoutId{},
		visited:      map[LayoutId]bool{},
		live:         map[LayoutId]bool{},
	}
}

func (self *LayoutIdAllocator) BeginPass() {
	self.visited = map[LayoutId]bool{}
}

// ComponentLayoutId derives an id namespace from the component chain's
// precomputed hash, not from tree position, so sibling instances of one
// component never collide and an instance maps back to the same range even
// when unrelated siblings are added or removed.
func (self *LayoutIdAllocator) ComponentLayoutId(chain *ParentComponentChain) LayoutId {
	if chain == nil {
		return RootComponentLayoutId
	}
	if componentId, ok := self.chainIds[chain.Hash()]; ok {
		return componentId
	}
	componentId := self.nextId
	self.nextId += 1
	self.chainIds[chain.Hash()] = componentId
	return componentId
}

// NodeLayoutId allocates the id for an authored node. A node's unique id is
// assigned once at authoring time and never reused, so the composition with
// the component layout id is injective within one chain.
func (self *LayoutIdAllocator) NodeLayoutId(componentId LayoutId, uniqueId string) LayoutId {
	key := nodeIdKey{
		componentId: componentId,
		uniqueId:    uniqueId,
	}
	layoutId, ok := self.nodeIds[key]
	if !ok {
		layoutId = self.nextId
		self.nextId += 1
		self.nodeIds[key] = layoutId
	}
	self.visit(layoutId)
	return layoutId
}

// SyntheticLayoutId allocates the id for a node synthesized at resolution
// time, e.g. a content-replacement list's per-item wrapper. Keyed by the
// parent's layout id plus the child index so synthesized ids never collide
// with authored ones.
func (self *LayoutIdAllocator) SyntheticLayoutId(parentId LayoutId, index int) LayoutId {
	key := syntheticIdKey{
		parentId: parentId,
		index:    index,
	}
	layoutId, ok := self.syntheticIds[key]
	if !ok {
		layoutId = self.nextId
		self.nextId += 1
		self.syntheticIds[key] = layoutId
	}
	self.visit(layoutId)
	return layoutId
}

func (self *LayoutIdAllocator) visit(layoutId LayoutId) {
	if self.visited[layoutId] {
		panic(fmt.Errorf("layout id %d allocated twice in one pass", layoutId))
	}
	self.visited[layoutId] = true
}

// EndPass returns the ids allocated in a previous pass but not visited in
// this one. The caller removes them from the external solver's tree; the
// allocator itself never issues removals.
func (self *LayoutIdAllocator) EndPass() []LayoutId {
	stale := []LayoutId{}
	for layoutId := range self.live {
		if !self.visited[layoutId] {
			stale = append(stale, layoutId)
		}
	}
	slices.Sort(stale)

	self.live = map[LayoutId]bool{}
	maps.Copy(self.live, self.visited)
	return stale
}

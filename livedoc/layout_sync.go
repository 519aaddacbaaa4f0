package livedoc

// computed placement of one node, in the parent's coordinate space
type Layout struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// LayoutSolver is the contract with the external layout engine. The engine
// owns a mirror of the resolved trees keyed by layout id; this package only
// pushes structure and styles in and reads computed placements out.
type LayoutSolver interface {
	// AddNode upserts a node under `parentLayoutId` at `childIndex`.
	// `rootLayoutId` names the tree the node belongs to. `useMeasure` marks
	// nodes whose intrinsic size the host must measure, e.g. text.
	AddNode(
		layoutId LayoutId,
		parentLayoutId LayoutId,
		rootLayoutId LayoutId,
		childIndex int,
		style LayoutStyle,
		name string,
		useMeasure bool,
	)

	// SetNodeSize pins a measured size onto a node.
	SetNodeSize(layoutId LayoutId, rootLayoutId LayoutId, width float32, height float32)

	// RemoveNode detaches a node. `computeLayout` requests an immediate
	// recompute of the node's tree; batch removals pass false until the last.
	RemoveNode(layoutId LayoutId, rootLayoutId LayoutId, computeLayout bool)

	// ComputeLayout recomputes the tree rooted at `rootLayoutId`.
	ComputeLayout(rootLayoutId LayoutId)

	// GetNodeLayout returns the computed placement. A missing id is not an
	// error: the node may not have been computed yet.
	GetNodeLayout(layoutId LayoutId) (Layout, bool)
}

// LayoutSync mirrors resolved trees into a LayoutSolver and retires stale
// nodes between passes. One LayoutSync per document consumer, sharing the
// consumer's allocator. Not safe for concurrent use.
type LayoutSync struct {
	solver    LayoutSolver
	allocator *LayoutIdAllocator

	// root layout id of every node pushed in the live pass
	roots map[LayoutId]LayoutId
	// carried from the previous pass so stale removals can name their root
	previousRoots map[LayoutId]LayoutId
}

func NewLayoutSync(solver LayoutSolver, allocator *LayoutIdAllocator) *LayoutSync {
	return &LayoutSync{
		solver:        solver,
		allocator:     allocator,
		roots:         map[LayoutId]LayoutId{},
		previousRoots: map[LayoutId]LayoutId{},
	}
}

func (self *LayoutSync) Allocator() *LayoutIdAllocator {
	return self.allocator
}

// BeginPass brackets one resolution pass. Every tree applied before EndPass
// belongs to the pass.
func (self *LayoutSync) BeginPass() {
	self.allocator.BeginPass()
	self.previousRoots = self.roots
	self.roots = map[LayoutId]LayoutId{}
}

// ApplyTree pushes a resolved tree into the solver and recomputes it. An
// empty tree (invisible root) pushes nothing.
func (self *LayoutSync) ApplyTree(tree *ResolvedTree) {
	rootHandle := tree.Root()
	if rootHandle == InvalidHandle {
		return
	}
	rootLayoutId := tree.Node(rootHandle).LayoutId
	self.addSubtree(tree, rootHandle, rootLayoutId, rootLayoutId, 0)
	self.solver.ComputeLayout(rootLayoutId)
}

func (self *LayoutSync) addSubtree(
	tree *ResolvedTree,
	handle NodeHandle,
	parentLayoutId LayoutId,
	rootLayoutId LayoutId,
	childIndex int,
) {
	node := tree.Node(handle)
	self.solver.AddNode(
		node.LayoutId,
		parentLayoutId,
		rootLayoutId,
		childIndex,
		node.Style.LayoutStyle(),
		node.Raw.Name,
		node.Raw.Type == NodeTypeText,
	)
	self.roots[node.LayoutId] = rootLayoutId

	i := 0
	for childHandle := node.FirstChild; childHandle != InvalidHandle; childHandle = tree.Node(childHandle).NextSibling {
		self.addSubtree(tree, childHandle, node.LayoutId, rootLayoutId, i)
		i += 1
	}
}

// SetMeasuredSize reports a host-measured intrinsic size back to the solver.
func (self *LayoutSync) SetMeasuredSize(layoutId LayoutId, width float32, height float32) {
	rootLayoutId, ok := self.roots[layoutId]
	if !ok {
		return
	}
	self.solver.SetNodeSize(layoutId, rootLayoutId, width, height)
	self.solver.ComputeLayout(rootLayoutId)
}

func (self *LayoutSync) NodeLayout(layoutId LayoutId) (Layout, bool) {
	return self.solver.GetNodeLayout(layoutId)
}

// EndPass removes every node the pass no longer produced, batching the
// recompute onto the last removal per tree.
func (self *LayoutSync) EndPass() {
	stale := self.allocator.EndPass()

	// group stale ids by the root they were last pushed under
	staleByRoot := map[LayoutId][]LayoutId{}
	for _, layoutId := range stale {
		if rootLayoutId, ok := self.previousRoots[layoutId]; ok {
			staleByRoot[rootLayoutId] = append(staleByRoot[rootLayoutId], layoutId)
		}
	}
	for rootLayoutId, layoutIds := range staleByRoot {
		for i, layoutId := range layoutIds {
			self.solver.RemoveNode(layoutId, rootLayoutId, i == len(layoutIds)-1)
		}
	}
	self.previousRoots = map[LayoutId]LayoutId{}
}

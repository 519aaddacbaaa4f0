package livedoc

import (
	"fmt"
)

// index into a ResolvedTree arena
type NodeHandle int32

const InvalidHandle NodeHandle = -1

// ResolvedNode is one node after variant substitution, override application,
// and customization. Children are linked first-child/next-sibling through the
// owning arena.
type ResolvedNode struct {
	// the authored node this resolved from, post variant substitution
	Raw *RawNode

	Style NodeStyle
	Text  string
	// customized image bytes, when a caller supplied them. Otherwise the
	// renderer loads Raw.ImageKey from the document image cache.
	Image []byte

	LayoutId LayoutId

	// set on a parent whose direct children include a mask node. The
	// renderer groups such children into an offscreen compositing layer.
	NeedsMaskGroup bool

	FirstChild  NodeHandle
	NextSibling NodeHandle
}

// ResolvedTree is the arena-backed output of one resolution pass over one
// view root. Handles are only meaningful against the tree that issued them.
type ResolvedTree struct {
	nodes []ResolvedNode
	root  NodeHandle

	// node handle -> caller-supplied content replacement, recorded
	// out-of-band for the renderer
	replacements map[NodeHandle]*ContentReplacement
}

// Root is InvalidHandle when the root node resolved invisible.
func (self *ResolvedTree) Root() NodeHandle {
	return self.root
}

func (self *ResolvedTree) Node(handle NodeHandle) *ResolvedNode {
	if handle == InvalidHandle {
		return nil
	}
	return &self.nodes[handle]
}

func (self *ResolvedTree) Len() int {
	return len(self.nodes)
}

func (self *ResolvedTree) Replacement(handle NodeHandle) (*ContentReplacement, bool) {
	replacement, ok := self.replacements[handle]
	return replacement, ok
}

// Walk visits every node in first-child-then-next-sibling order starting at
// the root.
func (self *ResolvedTree) Walk(visit func(handle NodeHandle, node *ResolvedNode)) {
	self.walk(self.root, visit)
}

func (self *ResolvedTree) walk(handle NodeHandle, visit func(handle NodeHandle, node *ResolvedNode)) {
	for ; handle != InvalidHandle; handle = self.nodes[handle].NextSibling {
		visit(handle, &self.nodes[handle])
		self.walk(self.nodes[handle].FirstChild, visit)
	}
}

// Resolver turns a decoded view into a ResolvedTree against the caller's
// customizations and the current interaction state. A resolver is built per
// pass over one document version; the allocator persists across passes to
// keep layout ids stable.
type Resolver struct {
	doc            *DecodedDocument
	customizations CustomizationContext
	interactions   InteractionState
	allocator      *LayoutIdAllocator
}

func NewResolver(
	doc *DecodedDocument,
	customizations CustomizationContext,
	interactions InteractionState,
	allocator *LayoutIdAllocator,
) *Resolver {
	return &Resolver{
		doc:            doc,
		customizations: customizations,
		interactions:   interactions,
		allocator:      allocator,
	}
}

// Resolve resolves the view for one query. The caller brackets one or more
// Resolve calls between allocator BeginPass and EndPass.
func (self *Resolver) Resolve(query NodeQuery) (*ResolvedTree, error) {
	root := self.doc.View(query)
	if root == nil {
		return nil, fmt.Errorf("no view for query %s in document %s", query, self.doc.DocumentId)
	}

	tree := &ResolvedTree{
		nodes:        []ResolvedNode{},
		root:         InvalidHandle,
		replacements: map[NodeHandle]*ContentReplacement{},
	}
	tree.root = self.resolveNode(tree, root, nil)
	return tree, nil
}

// resolveNode resolves one authored node. Returns InvalidHandle when the node
// resolves invisible; an invisible node consumes no layout id and its subtree
// is never visited.
func (self *Resolver) resolveNode(tree *ResolvedTree, raw *RawNode, chain *ParentComponentChain) NodeHandle {
	if !self.visible(raw) {
		return InvalidHandle
	}

	if raw.IsComponentInstance() {
		// substitution changes the node used, not the instance identity:
		// the chain keys on the authored instance id so sibling instances
		// substituting to one variant stay disjoint
		instanceId := raw.Id
		raw = self.substituteVariant(raw)
		chain = chain.Push(instanceId, raw.ComponentInfo)
	}

	style := raw.Style
	text := raw.Text
	if info := chain.Info(); info != nil {
		if override, ok := info.OverridesTable[raw.Name]; ok {
			if override.Style != nil {
				style = MergeStyles(style, *override.Style)
			}
			if override.Text != "" {
				text = override.Text
			}
		}
	}
	// caller customizations shadow authored overrides
	if customText, ok := self.customizations.GetText(raw.Name); ok {
		text = customText
	}

	componentId := self.allocator.ComponentLayoutId(chain)
	layoutId := self.allocator.NodeLayoutId(componentId, raw.Id)

	handle := NodeHandle(len(tree.nodes))
	tree.nodes = append(tree.nodes, ResolvedNode{
		Raw:         raw,
		Style:       style,
		Text:        text,
		LayoutId:    layoutId,
		FirstChild:  InvalidHandle,
		NextSibling: InvalidHandle,
	})

	if image, ok := self.customizations.GetImage(raw.Name); ok {
		tree.nodes[handle].Image = image
	}

	if replacement, ok := self.customizations.GetContentReplacement(raw.Name); ok {
		tree.replacements[handle] = replacement
		if 0 < len(replacement.ListContent) {
			self.resolveListContent(tree, handle, raw, replacement.ListContent, chain, layoutId)
		}
		// authored children are superseded by the replacement
		return handle
	}

	self.resolveChildren(tree, handle, raw.Children, chain)
	return handle
}

func (self *Resolver) resolveChildren(tree *ResolvedTree, parent NodeHandle, children []*RawNode, chain *ParentComponentChain) {
	previousSibling := InvalidHandle
	for _, child := range children {
		childHandle := self.resolveNode(tree, child, chain)
		if childHandle == InvalidHandle {
			continue
		}
		if child.IsMask {
			tree.nodes[parent].NeedsMaskGroup = true
		}
		if previousSibling == InvalidHandle {
			tree.nodes[parent].FirstChild = childHandle
		} else {
			tree.nodes[previousSibling].NextSibling = childHandle
		}
		previousSibling = childHandle
	}
}

// resolveListContent synthesizes the children of a list replacement. Each
// item root gets a layout id in the parent's synthetic namespace, and the
// item's descendants resolve under a per-item chain link so repeated item
// templates never collide on authored ids.
func (self *Resolver) resolveListContent(
	tree *ResolvedTree,
	parent NodeHandle,
	raw *RawNode,
	items []*RawNode,
	chain *ParentComponentChain,
	parentLayoutId LayoutId,
) {
	previousSibling := InvalidHandle
	for i, item := range items {
		if !self.visible(item) {
			continue
		}
		itemChain := chain.Push(fmt.Sprintf("%s/%d", raw.Id, i), nil)
		layoutId := self.allocator.SyntheticLayoutId(parentLayoutId, i)

		itemHandle := NodeHandle(len(tree.nodes))
		tree.nodes = append(tree.nodes, ResolvedNode{
			Raw:         item,
			Style:       item.Style,
			Text:        item.Text,
			LayoutId:    layoutId,
			FirstChild:  InvalidHandle,
			NextSibling: InvalidHandle,
		})
		self.resolveChildren(tree, itemHandle, item.Children, itemChain)

		if previousSibling == InvalidHandle {
			tree.nodes[parent].FirstChild = itemHandle
		} else {
			tree.nodes[previousSibling].NextSibling = itemHandle
		}
		previousSibling = itemHandle
	}
}

// substituteVariant swaps a component instance for a sibling variant. An
// interaction-forced variant always wins; the caller's declared properties
// are consulted only when no interaction forced one. A lookup miss keeps the
// authored node.
func (self *Resolver) substituteVariant(raw *RawNode) *RawNode {
	info := raw.ComponentInfo

	if forcedName, ok := self.interactions.ForcedVariant(raw.Id); ok {
		if variant := self.doc.VariantNode(forcedName, info.ComponentSetName); variant != nil {
			return variant
		}
		return raw
	}

	declared, ok := self.customizations.GetVariantProperties(raw.Name)
	if !ok {
		return raw
	}
	properties := ParseVariantName(info.Name)
	overlaid, changed := OverlayVariantProperties(properties, declared)
	if !changed {
		return raw
	}
	if variant := self.doc.VariantNode(EncodeVariantName(overlaid), info.ComponentSetName); variant != nil {
		return variant
	}
	return raw
}

func (self *Resolver) visible(raw *RawNode) bool {
	if visible, ok := self.customizations.GetVisible(raw.Name); ok {
		return visible
	}
	return !raw.Hidden
}

package livedoc

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

type forcedVariants map[string]string

func (self forcedVariants) ForcedVariant(nodeId string) (string, bool) {
	variantName, ok := self[nodeId]
	return variantName, ok
}

func testDoc(views ...*QueryView) *DecodedDocument {
	return NewDecodedDocument(
		NewDocumentId("doc1"),
		DocumentHeader{
			Name:    "Test Doc",
			Version: "v1",
		},
		views,
		nil,
		nil,
		nil,
	)
}

func cardInstance(instanceNodeId string) *RawNode {
	return &RawNode{
		Id:   instanceNodeId,
		Name: "Card",
		Type: NodeTypeFrame,
		ComponentInfo: &ComponentInfo{
			Id:               "component:card",
			Name:             "state=idle",
			ComponentSetName: "CardSet",
			OverridesTable: map[string]*ComponentOverride{
				"Label": {
					Style: &NodeStyle{
						TextColor: "#ff0000",
					},
					Text: "Hello",
				},
			},
		},
		Children: []*RawNode{
			{
				Id:   "10:1",
				Name: "Label",
				Type: NodeTypeText,
				Style: NodeStyle{
					FontSize:  12,
					TextColor: "#000000",
				},
				Text: "Default",
			},
		},
	}
}

func mainFrameDoc(extraViews ...*QueryView) *DecodedDocument {
	mainFrame := &RawNode{
		Id:   "1:1",
		Name: "MainFrame",
		Type: NodeTypeFrame,
		Children: []*RawNode{
			cardInstance("1:2"),
			{
				Id:   "1:3",
				Name: "Footer",
				Type: NodeTypeText,
				Text: "footer",
			},
		},
	}
	views := []*QueryView{
		{
			Query: QueryName("MainFrame"),
			Root:  mainFrame,
		},
	}
	views = append(views, extraViews...)
	return testDoc(views...)
}

func pressedVariantView() *QueryView {
	return &QueryView{
		Query: QueryVariant("state=pressed", "CardSet"),
		Root: &RawNode{
			Id:   "2:1",
			Name: "state=pressed",
			Type: NodeTypeFrame,
			ComponentInfo: &ComponentInfo{
				Id:               "component:card",
				Name:             "state=pressed",
				ComponentSetName: "CardSet",
			},
			Children: []*RawNode{
				{
					Id:   "2:2",
					Name: "Label",
					Type: NodeTypeText,
					Text: "Pressed",
				},
			},
		},
	}
}

func findByName(tree *ResolvedTree, name string) NodeHandle {
	found := InvalidHandle
	tree.Walk(func(handle NodeHandle, node *ResolvedNode) {
		if found == InvalidHandle && node.Raw.Name == name {
			found = handle
		}
	})
	return found
}

func resolveMain(t *testing.T, doc *DecodedDocument, customizations CustomizationContext, interactions InteractionState, allocator *LayoutIdAllocator) *ResolvedTree {
	resolver := NewResolver(doc, customizations, interactions, allocator)
	allocator.BeginPass()
	tree, err := resolver.Resolve(QueryName("MainFrame"))
	assert.Equal(t, nil, err)
	allocator.EndPass()
	return tree
}

func TestResolveComponentOverrides(t *testing.T) {
	doc := mainFrameDoc()
	tree := resolveMain(t, doc, NewCustomizations(), NoInteractions{}, NewLayoutIdAllocator())

	labelHandle := findByName(tree, "Label")
	assert.NotEqual(t, InvalidHandle, labelHandle)
	label := tree.Node(labelHandle)

	// the override shadows only the fields it sets
	assert.Equal(t, "#ff0000", label.Style.TextColor)
	assert.Equal(t, float32(12), label.Style.FontSize)
	assert.Equal(t, "Hello", label.Text)
}

func TestResolveTextCustomizationShadowsOverride(t *testing.T) {
	doc := mainFrameDoc()
	customizations := NewCustomizations()
	customizations.SetText("Label", "Custom")

	tree := resolveMain(t, doc, customizations, NoInteractions{}, NewLayoutIdAllocator())
	label := tree.Node(findByName(tree, "Label"))
	assert.Equal(t, "Custom", label.Text)
}

func TestResolveMergeSelfNoOp(t *testing.T) {
	style := NodeStyle{
		Background: "#ffffff",
		FontSize:   14,
		Opacity:    0.5,
		BlendMode:  BlendModeMultiply,
		Width:      100,
	}
	assert.Equal(t, style, MergeStyles(style, style))
}

func TestResolveVisibility(t *testing.T) {
	doc := mainFrameDoc()
	allocator := NewLayoutIdAllocator()

	tree := resolveMain(t, doc, NewCustomizations(), NoInteractions{}, allocator)
	footerId := tree.Node(findByName(tree, "Footer")).LayoutId
	cardId := tree.Node(findByName(tree, "Card")).LayoutId

	customizations := NewCustomizations()
	customizations.SetVisible("Card", false)
	tree = resolveMain(t, doc, customizations, NoInteractions{}, allocator)

	// the hidden subtree is absent entirely
	assert.Equal(t, InvalidHandle, findByName(tree, "Card"))
	assert.Equal(t, InvalidHandle, findByName(tree, "Label"))
	// siblings keep their ids
	assert.Equal(t, footerId, tree.Node(findByName(tree, "Footer")).LayoutId)

	// reappearing restores the retired id
	tree = resolveMain(t, doc, NewCustomizations(), NoInteractions{}, allocator)
	assert.Equal(t, cardId, tree.Node(findByName(tree, "Card")).LayoutId)
}

func TestResolveHiddenRoot(t *testing.T) {
	doc := mainFrameDoc()
	customizations := NewCustomizations()
	customizations.SetVisible("MainFrame", false)

	tree := resolveMain(t, doc, customizations, NoInteractions{}, NewLayoutIdAllocator())
	assert.Equal(t, InvalidHandle, tree.Root())
	assert.Equal(t, 0, tree.Len())
}

func TestResolveDeclaredVariant(t *testing.T) {
	doc := mainFrameDoc(pressedVariantView())
	customizations := NewCustomizations()
	customizations.SetVariantProperties("Card", map[string]string{
		"state": "pressed",
	})

	tree := resolveMain(t, doc, customizations, NoInteractions{}, NewLayoutIdAllocator())
	card := tree.Node(tree.Node(tree.Root()).FirstChild)
	assert.Equal(t, "state=pressed", card.Raw.Name)
	label := tree.Node(findByName(tree, "Label"))
	assert.Equal(t, "Pressed", label.Text)
}

func TestResolveDeclaredVariantMissKeepsAuthored(t *testing.T) {
	doc := mainFrameDoc()
	customizations := NewCustomizations()
	customizations.SetVariantProperties("Card", map[string]string{
		"state": "pressed",
	})

	tree := resolveMain(t, doc, customizations, NoInteractions{}, NewLayoutIdAllocator())
	assert.NotEqual(t, InvalidHandle, findByName(tree, "Card"))
}

func TestResolveInteractionVariantWins(t *testing.T) {
	doc := mainFrameDoc(pressedVariantView())
	customizations := NewCustomizations()
	customizations.SetVariantProperties("Card", map[string]string{
		"state": "idle",
	})
	interactions := forcedVariants{
		"1:2": "state=pressed",
	}

	tree := resolveMain(t, doc, customizations, interactions, NewLayoutIdAllocator())
	card := tree.Node(tree.Node(tree.Root()).FirstChild)
	assert.Equal(t, "state=pressed", card.Raw.Name)
}

func TestResolveSiblingInstancesDisjoint(t *testing.T) {
	mainFrame := &RawNode{
		Id:   "1:1",
		Name: "MainFrame",
		Type: NodeTypeFrame,
		Children: []*RawNode{
			cardInstance("1:2"),
			cardInstance("1:4"),
		},
	}
	doc := testDoc(&QueryView{
		Query: QueryName("MainFrame"),
		Root:  mainFrame,
	})
	allocator := NewLayoutIdAllocator()

	tree := resolveMain(t, doc, NewCustomizations(), NoInteractions{}, allocator)

	seen := map[LayoutId]bool{}
	layoutIds := map[NodeHandle]LayoutId{}
	tree.Walk(func(handle NodeHandle, node *ResolvedNode) {
		assert.Equal(t, false, seen[node.LayoutId])
		seen[node.LayoutId] = true
		layoutIds[handle] = node.LayoutId
	})
	// root plus two instances with a label each
	assert.Equal(t, 5, len(seen))

	// a second pass reproduces the same assignment
	tree2 := resolveMain(t, doc, NewCustomizations(), NoInteractions{}, allocator)
	tree2.Walk(func(handle NodeHandle, node *ResolvedNode) {
		assert.Equal(t, layoutIds[handle], node.LayoutId)
	})
}

func TestResolveSiblingInstancesSharedVariant(t *testing.T) {
	mainFrame := &RawNode{
		Id:   "1:1",
		Name: "MainFrame",
		Type: NodeTypeFrame,
		Children: []*RawNode{
			cardInstance("1:2"),
			cardInstance("1:4"),
		},
	}
	doc := testDoc(
		&QueryView{
			Query: QueryName("MainFrame"),
			Root:  mainFrame,
		},
		pressedVariantView(),
	)
	customizations := NewCustomizations()
	customizations.SetVariantProperties("Card", map[string]string{
		"state": "pressed",
	})
	allocator := NewLayoutIdAllocator()

	tree := resolveMain(t, doc, customizations, NoInteractions{}, allocator)

	// both siblings substituted to the same variant, and identity still
	// keys on the authored instance
	first := tree.Node(tree.Node(tree.Root()).FirstChild)
	second := tree.Node(first.NextSibling)
	assert.Equal(t, "state=pressed", first.Raw.Name)
	assert.Equal(t, "state=pressed", second.Raw.Name)

	seen := map[LayoutId]bool{}
	tree.Walk(func(handle NodeHandle, node *ResolvedNode) {
		assert.Equal(t, false, seen[node.LayoutId])
		seen[node.LayoutId] = true
	})
	assert.Equal(t, 5, len(seen))

	tree2 := resolveMain(t, doc, customizations, NoInteractions{}, allocator)
	assert.Equal(t, first.LayoutId, tree2.Node(tree2.Node(tree2.Root()).FirstChild).LayoutId)
}

func TestResolveListContent(t *testing.T) {
	mainFrame := &RawNode{
		Id:   "1:1",
		Name: "MainFrame",
		Type: NodeTypeFrame,
		Children: []*RawNode{
			{
				Id:   "1:5",
				Name: "List",
				Type: NodeTypeFrame,
				Children: []*RawNode{
					{
						Id:   "1:6",
						Name: "Placeholder",
						Type: NodeTypeText,
					},
				},
			},
		},
	}
	doc := testDoc(&QueryView{
		Query: QueryName("MainFrame"),
		Root:  mainFrame,
	})

	customizations := NewCustomizations()
	customizations.SetContentReplacement("List", &ContentReplacement{
		ListContent: []*RawNode{
			{
				Id:   "item",
				Name: "Item",
				Type: NodeTypeText,
				Text: "one",
			},
			{
				Id:   "item",
				Name: "Item",
				Type: NodeTypeText,
				Text: "two",
			},
		},
	})
	allocator := NewLayoutIdAllocator()

	tree := resolveMain(t, doc, customizations, NoInteractions{}, allocator)

	listHandle := findByName(tree, "List")
	_, ok := tree.Replacement(listHandle)
	assert.Equal(t, true, ok)
	// the authored placeholder is superseded
	assert.Equal(t, InvalidHandle, findByName(tree, "Placeholder"))

	item0 := tree.Node(tree.Node(listHandle).FirstChild)
	item1 := tree.Node(item0.NextSibling)
	assert.Equal(t, "one", item0.Text)
	assert.Equal(t, "two", item1.Text)
	assert.NotEqual(t, item0.LayoutId, item1.LayoutId)

	// synthesized ids are stable across passes
	tree2 := resolveMain(t, doc, customizations, NoInteractions{}, allocator)
	listHandle2 := findByName(tree2, "List")
	assert.Equal(t, item0.LayoutId, tree2.Node(tree2.Node(listHandle2).FirstChild).LayoutId)
}

func TestResolveMaskGroup(t *testing.T) {
	mainFrame := &RawNode{
		Id:   "1:1",
		Name: "MainFrame",
		Type: NodeTypeFrame,
		Children: []*RawNode{
			{
				Id:     "1:7",
				Name:   "Mask",
				Type:   NodeTypeVector,
				IsMask: true,
			},
			{
				Id:   "1:8",
				Name: "Content",
				Type: NodeTypeFrame,
			},
		},
	}
	doc := testDoc(&QueryView{
		Query: QueryName("MainFrame"),
		Root:  mainFrame,
	})

	tree := resolveMain(t, doc, NewCustomizations(), NoInteractions{}, NewLayoutIdAllocator())
	assert.Equal(t, true, tree.Node(tree.Root()).NeedsMaskGroup)
	assert.Equal(t, false, tree.Node(findByName(tree, "Content")).NeedsMaskGroup)
}

package livedoc

import (
	"strings"
)

// A variant node's name encodes its properties as
// "property=value, property=value". Order is authored and preserved, so a
// substituted name re-encodes with the original property order.
type VariantProperty struct {
	Property string
	Value    string
}

func ParseVariantName(variantName string) []VariantProperty {
	properties := []VariantProperty{}
	for _, part := range strings.Split(variantName, ",") {
		property, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		properties = append(properties, VariantProperty{
			Property: strings.TrimSpace(property),
			Value:    strings.TrimSpace(value),
		})
	}
	return properties
}

func EncodeVariantName(properties []VariantProperty) string {
	parts := make([]string, len(properties))
	for i, property := range properties {
		parts[i] = property.Property + "=" + property.Value
	}
	return strings.Join(parts, ", ")
}

// OverlayVariantProperties applies caller-declared values onto parsed
// properties, preserving order, and reports whether any value changed.
func OverlayVariantProperties(properties []VariantProperty, declared map[string]string) ([]VariantProperty, bool) {
	if len(declared) == 0 {
		return properties, false
	}
	changed := false
	overlaid := make([]VariantProperty, len(properties))
	for i, property := range properties {
		overlaid[i] = property
		if value, ok := declared[property.Property]; ok && value != property.Value {
			overlaid[i].Value = value
			changed = true
		}
	}
	return overlaid, changed
}

// content replacement recorded out-of-band for the caller to render
type ContentReplacement struct {
	// a replacement component, when the whole node is swapped
	Component *RawNode
	// synthesized list children, when the node's content is generated
	ListContent []*RawNode
}

// CustomizationContext exposes the caller's declarative per-node-name
// overrides. The resolver depends only on this closed set of operations.
type CustomizationContext interface {
	GetText(nodeName string) (string, bool)
	GetImage(nodeName string) ([]byte, bool)
	GetVisible(nodeName string) (bool, bool)
	GetVariantProperties(nodeName string) (map[string]string, bool)
	GetContentReplacement(nodeName string) (*ContentReplacement, bool)
}

// InteractionState reports variants forced by a live interaction, e.g. a
// pressed state. Consumed, not re-specified: dispatch and undo of the
// actions that set this state live with the provider.
type InteractionState interface {
	// ForcedVariant returns the variant name an interaction has forced for
	// the node id, if any.
	ForcedVariant(nodeId string) (string, bool)
}

type customizationEntry struct {
	text              string
	hasText           bool
	image             []byte
	hasImage          bool
	visible           bool
	hasVisible        bool
	variantProperties map[string]string
	replacement       *ContentReplacement
}

// Customizations is the map-backed CustomizationContext implementation.
// Not safe for concurrent use; it is built per resolution pass.
type Customizations struct {
	entries map[string]*customizationEntry
}

func NewCustomizations() *Customizations {
	return &Customizations{
		entries: map[string]*customizationEntry{},
	}
}

func (self *Customizations) entry(nodeName string) *customizationEntry {
	entry, ok := self.entries[nodeName]
	if !ok {
		entry = &customizationEntry{}
		self.entries[nodeName] = entry
	}
	return entry
}

func (self *Customizations) SetText(nodeName string, text string) {
	entry := self.entry(nodeName)
	entry.text = text
	entry.hasText = true
}

func (self *Customizations) SetImage(nodeName string, image []byte) {
	entry := self.entry(nodeName)
	entry.image = image
	entry.hasImage = true
}

func (self *Customizations) SetVisible(nodeName string, visible bool) {
	entry := self.entry(nodeName)
	entry.visible = visible
	entry.hasVisible = true
}

func (self *Customizations) SetVariantProperties(nodeName string, variantProperties map[string]string) {
	self.entry(nodeName).variantProperties = variantProperties
}

func (self *Customizations) SetContentReplacement(nodeName string, replacement *ContentReplacement) {
	self.entry(nodeName).replacement = replacement
}

// CustomizationContext

func (self *Customizations) GetText(nodeName string) (string, bool) {
	if entry, ok := self.entries[nodeName]; ok && entry.hasText {
		return entry.text, true
	}
	return "", false
}

func (self *Customizations) GetImage(nodeName string) ([]byte, bool) {
	if entry, ok := self.entries[nodeName]; ok && entry.hasImage {
		return entry.image, true
	}
	return nil, false
}

func (self *Customizations) GetVisible(nodeName string) (bool, bool) {
	if entry, ok := self.entries[nodeName]; ok && entry.hasVisible {
		return entry.visible, true
	}
	return false, false
}

func (self *Customizations) GetVariantProperties(nodeName string) (map[string]string, bool) {
	if entry, ok := self.entries[nodeName]; ok && entry.variantProperties != nil {
		return entry.variantProperties, true
	}
	return nil, false
}

func (self *Customizations) GetContentReplacement(nodeName string) (*ContentReplacement, bool) {
	if entry, ok := self.entries[nodeName]; ok && entry.replacement != nil {
		return entry.replacement, true
	}
	return nil, false
}

// NoInteractions is the zero InteractionState.
type NoInteractions struct{}

func (self NoInteractions) ForcedVariant(nodeId string) (string, bool) {
	return "", false
}

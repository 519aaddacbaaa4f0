package livedoc

import (
	"fmt"
	"time"
)

type NodeType string

const (
	NodeTypeFrame  NodeType = "frame"
	NodeTypeText   NodeType = "text"
	NodeTypeVector NodeType = "vector"
)

// style and content overridden on one named child of a component instance
type ComponentOverride struct {
	Style *NodeStyle `json:"style,omitempty" msgpack:"style"`
	Text  string     `json:"text,omitempty" msgpack:"text"`
}

// component membership of an instance root node
type ComponentInfo struct {
	Id               string `json:"id" msgpack:"id"`
	Name             string `json:"name" msgpack:"name"`
	ComponentSetName string `json:"component_set_name" msgpack:"component_set_name"`
	// child node name -> override
	OverridesTable map[string]*ComponentOverride `json:"overrides_table,omitempty" msgpack:"overrides_table"`
}

// an immutable node as decoded from the document.
// `Id` is assigned once when the node is first authored and never reused.
type RawNode struct {
	Id            string         `json:"id" msgpack:"id"`
	Name          string         `json:"name" msgpack:"name"`
	Type          NodeType       `json:"type" msgpack:"type"`
	Style         NodeStyle      `json:"style" msgpack:"style"`
	ComponentInfo *ComponentInfo `json:"component_info,omitempty" msgpack:"component_info"`
	Children      []*RawNode     `json:"children,omitempty" msgpack:"children"`
	Text          string         `json:"text,omitempty" msgpack:"text"`
	ImageKey      string         `json:"image_key,omitempty" msgpack:"image_key"`
	IsMask        bool           `json:"is_mask,omitempty" msgpack:"is_mask"`
	Hidden        bool           `json:"hidden,omitempty" msgpack:"hidden"`
}

func (self *RawNode) IsComponentInstance() bool {
	return self.ComponentInfo != nil
}

// one decoded root per requested query
type QueryView struct {
	Query NodeQuery `json:"query" msgpack:"query"`
	Root  *RawNode  `json:"root" msgpack:"root"`
}

type DocumentHeader struct {
	Name         string `json:"name" msgpack:"name"`
	LastModified string `json:"last_modified" msgpack:"last_modified"`
	Version      string `json:"version" msgpack:"version"`
	// opaque token the remote source uses to compute incremental replies
	SessionToken string `json:"session_token,omitempty" msgpack:"session_token"`
}

type DocInfo struct {
	Id   string `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}

// DecodedDocument owns one fetched-and-decoded document version. It is
// immutable once built; the coordinator replaces the whole document on
// update (copy-on-write at document granularity).
type DecodedDocument struct {
	DocumentId DocumentId     `json:"document_id" msgpack:"document_id"`
	Header     DocumentHeader `json:"header" msgpack:"header"`
	Views      []*QueryView   `json:"views" msgpack:"views"`
	Branches   []DocInfo      `json:"branches,omitempty" msgpack:"branches"`
	// image key (optionally density-suffixed) -> encoded bytes
	Images map[string][]byte `json:"images,omitempty" msgpack:"images"`

	viewIndex    map[NodeQuery]*RawNode
	variantIndex map[NodeQuery]*RawNode
}

func NewDecodedDocument(
	documentId DocumentId,
	header DocumentHeader,
	views []*QueryView,
	branches []DocInfo,
	images map[string][]byte,
	previous *DecodedDocument,
) *DecodedDocument {
	doc := &DecodedDocument{
		DocumentId: documentId,
		Header:     header,
		Views:      views,
		Branches:   branches,
		Images:     carryOverImages(images, previous),
	}
	doc.buildIndex()
	return doc
}

// carryOverImages reuses image bytes from the previous document wherever the
// new payload supplies a zero-length placeholder for a key the previous
// document already decoded. The remote source intentionally omits bytes for
// images the client reported having, so a re-decode here would be wasted
// work and a placeholder left in place would be data loss.
func carryOverImages(images map[string][]byte, previous *DecodedDocument) map[string][]byte {
	if previous == nil {
		return images
	}
	merged := map[string][]byte{}
	for key, imageBytes := range images {
		if len(imageBytes) == 0 {
			if previousBytes, ok := previous.Images[key]; ok && 0 < len(previousBytes) {
				// carried over by reference, not copied
				merged[key] = previousBytes
				continue
			}
		}
		merged[key] = imageBytes
	}
	return merged
}

func (self *DecodedDocument) buildIndex() {
	self.viewIndex = map[NodeQuery]*RawNode{}
	self.variantIndex = map[NodeQuery]*RawNode{}
	for _, view := range self.Views {
		self.viewIndex[view.Query] = view.Root
		if view.Query.Kind == NodeQueryByVariant {
			self.variantIndex[view.Query] = view.Root
		}
	}
}

// View returns the decoded root for a query, or nil if the query was not
// satisfied by this document version.
func (self *DecodedDocument) View(query NodeQuery) *RawNode {
	if self.viewIndex == nil {
		self.buildIndex()
	}
	return self.viewIndex[query]
}

// VariantNode looks up a variant by its encoded property name and owning
// component set name.
func (self *DecodedDocument) VariantNode(variantName string, componentSetName string) *RawNode {
	if self.variantIndex == nil {
		self.buildIndex()
	}
	return self.variantIndex[QueryVariant(variantName, componentSetName)]
}

// Image returns the bytes for an image key.
func (self *DecodedDocument) Image(key string) ([]byte, bool) {
	imageBytes, ok := self.Images[key]
	return imageBytes, ok
}

// ImageAtDensity prefers a density-suffixed cache entry ("key@2x") and falls
// back to the base key.
func (self *DecodedDocument) ImageAtDensity(key string, density int) ([]byte, bool) {
	if 1 < density {
		if imageBytes, ok := self.Images[fmt.Sprintf("%s@%dx", key, density)]; ok {
			return imageBytes, true
		}
	}
	return self.Image(key)
}

type FetchStatus int

const (
	FetchUnchanged FetchStatus = iota
	FetchUpdated
	FetchFailed
)

// tagged result of one differential fetch
type FetchOutcome struct {
	Status FetchStatus
	// set when Status == FetchUpdated
	Doc *DecodedDocument
	// set when Status == FetchFailed
	Err *FetchError

	FetchTime time.Time
}

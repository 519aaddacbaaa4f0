package livedoc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// id for a document plus an optional version pin.
// A zero version means "head".

// comparable
type DocumentId struct {
	Id        string
	VersionId string
}

func NewDocumentId(id string) DocumentId {
	return DocumentId{
		Id: id,
	}
}

func NewDocumentIdWithVersion(id string, versionId string) DocumentId {
	return DocumentId{
		Id:        id,
		VersionId: versionId,
	}
}

// ParseDocumentId validates `idStr` against the document id grammar before
// any store or fetch lookup. Ids are opaque alphanumeric keys.
func ParseDocumentId(idStr string) (DocumentId, error) {
	id, versionId, hasVersion := strings.Cut(idStr, "@")
	if !validDocumentKey(id) {
		return DocumentId{}, fmt.Errorf("invalid document id %q", idStr)
	}
	if hasVersion && !validDocumentKey(versionId) {
		return DocumentId{}, fmt.Errorf("invalid document version %q", versionId)
	}
	return DocumentId{
		Id:        id,
		VersionId: versionId,
	}, nil
}

func validDocumentKey(key string) bool {
	if len(key) == 0 || 64 < len(key) {
		return false
	}
	for _, c := range key {
		switch {
		case '0' <= c && c <= '9':
		case 'a' <= c && c <= 'z':
		case 'A' <= c && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

func (self DocumentId) Head() DocumentId {
	return DocumentId{
		Id: self.Id,
	}
}

func (self DocumentId) String() string {
	if self.VersionId != "" {
		return fmt.Sprintf("%s@%s", self.Id, self.VersionId)
	}
	return self.Id
}

// comparable
type ConsumerId [16]byte

func NewConsumerId() ConsumerId {
	return ConsumerId(ulid.Make())
}

func ConsumerIdFromBytes(idBytes []byte) (ConsumerId, error) {
	if len(idBytes) != 16 {
		return ConsumerId{}, errors.New("ConsumerId must be 16 bytes")
	}
	return ConsumerId(idBytes), nil
}

func (self ConsumerId) Bytes() []byte {
	return self[0:16]
}

func (self ConsumerId) String() string {
	return ulid.ULID(self).String()
}

// a query names one root node to decode out of a document
type NodeQueryKind int

const (
	NodeQueryById NodeQueryKind = iota
	NodeQueryByName
	NodeQueryByVariant
	NodeQueryByComponentSet
)

// comparable
type NodeQuery struct {
	Kind NodeQueryKind
	Name string
	// set name for variant queries
	Parent string
}

func QueryId(nodeId string) NodeQuery {
	return NodeQuery{
		Kind: NodeQueryById,
		Name: nodeId,
	}
}

func QueryName(nodeName string) NodeQuery {
	return NodeQuery{
		Kind: NodeQueryByName,
		Name: nodeName,
	}
}

func QueryVariant(variantName string, componentSetName string) NodeQuery {
	return NodeQuery{
		Kind:   NodeQueryByVariant,
		Name:   variantName,
		Parent: componentSetName,
	}
}

func QueryComponentSet(componentSetName string) NodeQuery {
	return NodeQuery{
		Kind: NodeQueryByComponentSet,
		Name: componentSetName,
	}
}

func (self NodeQuery) String() string {
	switch self.Kind {
	case NodeQueryById:
		return fmt.Sprintf("id(%s)", self.Name)
	case NodeQueryByVariant:
		return fmt.Sprintf("variant(%s, %s)", self.Name, self.Parent)
	case NodeQueryByComponentSet:
		return fmt.Sprintf("set(%s)", self.Name)
	default:
		return self.Name
	}
}

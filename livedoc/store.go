package livedoc

import (
	"sync"

	"golang.org/x/exp/slices"
)

// DocumentStore is the in-memory map from document id to the latest decoded
// content, plus the reverse branch table. Reads are non-blocking and never
// observe a partially constructed document because documents are immutable
// and replaced whole.
type DocumentStore struct {
	mutex sync.Mutex

	// head id -> latest document
	docs map[DocumentId]*DecodedDocument
	// any reachable id (own id or branch id) -> shared branch list
	branches map[string][]DocInfo

	updateMonitor *Monitor
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:          map[DocumentId]*DecodedDocument{},
		branches:      map[string][]DocInfo{},
		updateMonitor: NewMonitor(),
	}
}

func (self *DocumentStore) Get(documentId DocumentId) *DecodedDocument {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.docs[documentId]
}

func (self *DocumentStore) Put(documentId DocumentId, doc *DecodedDocument) {
	self.mutex.Lock()
	self.docs[documentId] = doc
	self.mutex.Unlock()

	self.updateMonitor.NotifyAll()
}

func (self *DocumentStore) Remove(documentId DocumentId) {
	self.mutex.Lock()
	delete(self.docs, documentId)
	self.mutex.Unlock()

	self.updateMonitor.NotifyAll()
}

func (self *DocumentStore) UpdateMonitor() *Monitor {
	return self.updateMonitor
}

// UpdateBranches merges the branches discovered on `doc` into the reverse
// lookup table so that the document resolves to one shared branch list
// whether reached via its own id or any branch id. When branches exist and
// none points back to the original id, a synthetic "main" entry is added for
// the original so a consumer can always navigate back.
func (self *DocumentStore) UpdateBranches(documentId DocumentId, doc *DecodedDocument) {
	if len(doc.Branches) == 0 {
		return
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()

	branchList := slices.Clone(self.branches[documentId.Id])
	for _, branch := range doc.Branches {
		if !slices.ContainsFunc(branchList, func(info DocInfo) bool {
			return info.Id == branch.Id
		}) {
			branchList = append(branchList, branch)
		}
	}
	if !slices.ContainsFunc(branchList, func(info DocInfo) bool {
		return info.Id == documentId.Id
	}) {
		branchList = append(branchList, DocInfo{
			Id:   documentId.Id,
			Name: "main",
		})
	}

	self.branches[documentId.Id] = branchList
	for _, branch := range branchList {
		self.branches[branch.Id] = branchList
	}
}

// Branches returns the shared branch list for any alias of a document.
func (self *DocumentStore) Branches(documentId DocumentId) []DocInfo {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.branches[documentId.Id]
}

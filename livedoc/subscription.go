package livedoc

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// called on the coordination context with the new document and, when a save
// path is configured, the serialized snapshot bytes
type UpdateFunction func(doc *DecodedDocument, snapshot []byte)

type Subscription struct {
	DocumentId DocumentId
	ConsumerId ConsumerId
	OnUpdate   UpdateFunction
	// node queries this consumer needs satisfied
	Queries []NodeQuery
	// node name -> image names the consumer renders itself
	IgnoredImages map[string][]string
	// when set, each update is serialized to this path
	SavePath string
}

// comparable
type SubscriptionHandle struct {
	subscriptionId ConsumerId
}

// merged fetch parameters for all subscribers of one document
type FetchParams struct {
	Queries       []NodeQuery
	IgnoredImages map[string][]string
	SavePaths     []string
}

// SubscriptionRegistry tracks interested consumers per document id.
// Mutations are serialized against the sync loop's snapshot reads, so a
// fetch in progress always operates on the subscriber set as of fetch start;
// a subscription added mid-fetch is picked up on the next cycle.
type SubscriptionRegistry struct {
	mutex sync.Mutex

	// document id -> handle -> subscription, in registration order
	subscriptions map[DocumentId]map[SubscriptionHandle]*Subscription
	order         map[DocumentId][]SubscriptionHandle
}

func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		subscriptions: map[DocumentId]map[SubscriptionHandle]*Subscription{},
		order:         map[DocumentId][]SubscriptionHandle{},
	}
}

func (self *SubscriptionRegistry) Subscribe(subscription *Subscription) SubscriptionHandle {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	handle := SubscriptionHandle{
		subscriptionId: NewConsumerId(),
	}
	documentSubscriptions, ok := self.subscriptions[subscription.DocumentId]
	if !ok {
		documentSubscriptions = map[SubscriptionHandle]*Subscription{}
		self.subscriptions[subscription.DocumentId] = documentSubscriptions
	}
	documentSubscriptions[handle] = subscription
	self.order[subscription.DocumentId] = append(self.order[subscription.DocumentId], handle)
	return handle
}

func (self *SubscriptionRegistry) Unsubscribe(handle SubscriptionHandle) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	for documentId, documentSubscriptions := range self.subscriptions {
		if _, ok := documentSubscriptions[handle]; ok {
			delete(documentSubscriptions, handle)
			i := slices.Index(self.order[documentId], handle)
			if 0 <= i {
				self.order[documentId] = slices.Delete(self.order[documentId], i, i+1)
			}
			if len(documentSubscriptions) == 0 {
				delete(self.subscriptions, documentId)
				delete(self.order, documentId)
			}
			return
		}
	}
}

// SubscribedDocuments snapshots the set of document ids with at least one
// subscriber.
func (self *SubscriptionRegistry) SubscribedDocuments() []DocumentId {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	documentIds := maps.Keys(self.subscriptions)
	slices.SortFunc(documentIds, func(a DocumentId, b DocumentId) int {
		if a.Id != b.Id {
			if a.Id < b.Id {
				return -1
			}
			return 1
		}
		if a.VersionId < b.VersionId {
			return -1
		} else if b.VersionId < a.VersionId {
			return 1
		}
		return 0
	})
	return documentIds
}

// Subscribers snapshots the subscriptions for one document in registration
// order.
func (self *SubscriptionRegistry) Subscribers(documentId DocumentId) []*Subscription {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	subscribers := []*Subscription{}
	for _, handle := range self.order[documentId] {
		if subscription, ok := self.subscriptions[documentId][handle]; ok {
			subscribers = append(subscribers, subscription)
		}
	}
	return subscribers
}

// FetchParams merges the fetch parameters of all current subscribers of one
// document: the union of queries and ignored images, and every configured
// save path.
func (self *SubscriptionRegistry) FetchParams(documentId DocumentId) *FetchParams {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	params := &FetchParams{
		IgnoredImages: map[string][]string{},
	}
	seenQueries := map[NodeQuery]bool{}
	for _, handle := range self.order[documentId] {
		subscription, ok := self.subscriptions[documentId][handle]
		if !ok {
			continue
		}
		for _, query := range subscription.Queries {
			if !seenQueries[query] {
				seenQueries[query] = true
				params.Queries = append(params.Queries, query)
			}
		}
		for nodeName, imageNames := range subscription.IgnoredImages {
			merged := params.IgnoredImages[nodeName]
			for _, imageName := range imageNames {
				if !slices.Contains(merged, imageName) {
					merged = append(merged, imageName)
				}
			}
			params.IgnoredImages[nodeName] = merged
		}
		if subscription.SavePath != "" && !slices.Contains(params.SavePaths, subscription.SavePath) {
			params.SavePaths = append(params.SavePaths, subscription.SavePath)
		}
	}
	return params
}

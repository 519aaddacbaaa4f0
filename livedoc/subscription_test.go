package livedoc

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestRegistryFetchParams(t *testing.T) {
	registry := NewSubscriptionRegistry()
	documentId := NewDocumentId("doc1")

	registry.Subscribe(&Subscription{
		DocumentId: documentId,
		ConsumerId: NewConsumerId(),
		Queries:    []NodeQuery{QueryName("Main"), QueryName("Settings")},
		IgnoredImages: map[string][]string{
			"Main": {"hero"},
		},
		SavePath: "/tmp/a.ld",
		OnUpdate: func(doc *DecodedDocument, snapshot []byte) {},
	})
	registry.Subscribe(&Subscription{
		DocumentId: documentId,
		ConsumerId: NewConsumerId(),
		Queries:    []NodeQuery{QueryName("Main"), QueryName("About")},
		IgnoredImages: map[string][]string{
			"Main": {"hero", "banner"},
		},
		OnUpdate: func(doc *DecodedDocument, snapshot []byte) {},
	})

	params := registry.FetchParams(documentId)
	// union, first-seen order, no duplicates
	assert.Equal(t, []NodeQuery{
		QueryName("Main"),
		QueryName("Settings"),
		QueryName("About"),
	}, params.Queries)
	assert.Equal(t, []string{"hero", "banner"}, params.IgnoredImages["Main"])
	assert.Equal(t, []string{"/tmp/a.ld"}, params.SavePaths)
}

func TestRegistryUnsubscribe(t *testing.T) {
	registry := NewSubscriptionRegistry()
	documentId := NewDocumentId("doc1")

	handle := registry.Subscribe(&Subscription{
		DocumentId: documentId,
		ConsumerId: NewConsumerId(),
		Queries:    []NodeQuery{QueryName("Main")},
		OnUpdate:   func(doc *DecodedDocument, snapshot []byte) {},
	})
	assert.Equal(t, []DocumentId{documentId}, registry.SubscribedDocuments())

	registry.Unsubscribe(handle)
	assert.Equal(t, 0, len(registry.SubscribedDocuments()))
	assert.Equal(t, 0, len(registry.FetchParams(documentId).Queries))
}

func TestRegistrySubscribedDocumentsSorted(t *testing.T) {
	registry := NewSubscriptionRegistry()
	for _, id := range []string{"docc", "doca", "docb"} {
		registry.Subscribe(&Subscription{
			DocumentId: NewDocumentId(id),
			ConsumerId: NewConsumerId(),
			Queries:    []NodeQuery{QueryName("Main")},
			OnUpdate:   func(doc *DecodedDocument, snapshot []byte) {},
		})
	}
	assert.Equal(t, []DocumentId{
		NewDocumentId("doca"),
		NewDocumentId("docb"),
		NewDocumentId("docc"),
	}, registry.SubscribedDocuments())
}

func TestRegistrySubscriberOrder(t *testing.T) {
	registry := NewSubscriptionRegistry()
	documentId := NewDocumentId("doc1")

	first := &Subscription{
		DocumentId: documentId,
		ConsumerId: NewConsumerId(),
		Queries:    []NodeQuery{QueryName("Main")},
		OnUpdate:   func(doc *DecodedDocument, snapshot []byte) {},
	}
	second := &Subscription{
		DocumentId: documentId,
		ConsumerId: NewConsumerId(),
		Queries:    []NodeQuery{QueryName("Main")},
		OnUpdate:   func(doc *DecodedDocument, snapshot []byte) {},
	}
	registry.Subscribe(first)
	registry.Subscribe(second)

	subscribers := registry.Subscribers(documentId)
	assert.Equal(t, 2, len(subscribers))
	assert.Equal(t, first.ConsumerId, subscribers[0].ConsumerId)
	assert.Equal(t, second.ConsumerId, subscribers[1].ConsumerId)
}

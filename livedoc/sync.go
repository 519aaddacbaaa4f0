package livedoc

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

type LiveSyncSettings struct {
	// interval between fetch cycles. The single polling tunable.
	PollInterval time.Duration

	CoordinationBufferSize int
}

func DefaultLiveSyncSettings() *LiveSyncSettings {
	return &LiveSyncSettings{
		PollInterval:           5 * time.Second,
		CoordinationBufferSize: 32,
	}
}

type DocumentRenderStatus int

const (
	RenderStatusFetching DocumentRenderStatus = iota
	RenderStatusReady
	RenderStatusNotAvailable
	RenderStatusNodeNotFound
)

func (self DocumentRenderStatus) String() string {
	switch self {
	case RenderStatusFetching:
		return "fetching"
	case RenderStatusReady:
		return "ready"
	case RenderStatusNotAvailable:
		return "document not available"
	case RenderStatusNodeNotFound:
		return "node not found"
	default:
		return "unknown"
	}
}

// LiveSync drives the fixed-interval polling loop over all subscribed
// documents. Fetch i/o runs on the sync goroutine; outcome application
// (store mutation and subscriber notification) is marshalled onto a single
// coordination goroutine so subscribers never observe a document update
// concurrently with a registry mutation.
type LiveSync struct {
	ctx    context.Context
	cancel context.CancelFunc

	store    *DocumentStore
	registry *SubscriptionRegistry
	fetcher  DocumentFetcher

	settings *LiveSyncSettings

	// stop cancels the next scheduled cycle. An in-flight cycle runs to
	// completion.
	stop     chan struct{}
	stopOnce sync.Once

	trigger chan DocumentId
	coord   chan func()

	mutex sync.Mutex
	// original id -> switched-to id (optimistic document switch)
	aliases             map[DocumentId]DocumentId
	lastFetch           map[DocumentId]time.Time
	lastUpdateFromFetch map[DocumentId]time.Time
	renderStatus        map[DocumentId]DocumentRenderStatus
	credentialWarned    bool
}

func NewLiveSyncWithDefaults(
	ctx context.Context,
	store *DocumentStore,
	registry *SubscriptionRegistry,
	fetcher DocumentFetcher,
) *LiveSync {
	return NewLiveSync(ctx, store, registry, fetcher, DefaultLiveSyncSettings())
}

func NewLiveSync(
	ctx context.Context,
	store *DocumentStore,
	registry *SubscriptionRegistry,
	fetcher DocumentFetcher,
	settings *LiveSyncSettings,
) *LiveSync {
	cancelCtx, cancel := context.WithCancel(ctx)
	liveSync := &LiveSync{
		ctx:                 cancelCtx,
		cancel:              cancel,
		store:               store,
		registry:            registry,
		fetcher:             fetcher,
		settings:            settings,
		stop:                make(chan struct{}),
		trigger:             make(chan DocumentId, settings.CoordinationBufferSize),
		coord:               make(chan func(), settings.CoordinationBufferSize),
		aliases:             map[DocumentId]DocumentId{},
		lastFetch:           map[DocumentId]time.Time{},
		lastUpdateFromFetch: map[DocumentId]time.Time{},
		renderStatus:        map[DocumentId]DocumentRenderStatus{},
	}
	go liveSync.coordinate()
	go liveSync.run()
	return liveSync
}

// SwitchDocument optimistically points consumers of `originalId` at
// `switchedId`. The alias is reverted if a fetch of the switched-to id
// fails, so consumers are never left pointed at a broken target.
func (self *LiveSync) SwitchDocument(originalId DocumentId, switchedId DocumentId) {
	self.mutex.Lock()
	self.aliases[originalId] = switchedId
	self.mutex.Unlock()

	self.TriggerFetch(originalId)
}

// TriggerFetch schedules an immediate fetch for one document, ahead of the
// next polling cycle. Used by the push channel.
func (self *LiveSync) TriggerFetch(documentId DocumentId) {
	select {
	case self.trigger <- documentId:
	default:
		// a fetch is already pending. The polling loop covers it.
	}
}

func (self *LiveSync) RenderStatus(documentId DocumentId) DocumentRenderStatus {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if status, ok := self.renderStatus[documentId]; ok {
		return status
	}
	return RenderStatusFetching
}

func (self *LiveSync) LastFetchTime(documentId DocumentId) time.Time {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.lastFetch[documentId]
}

func (self *LiveSync) LastUpdateTime(documentId DocumentId) time.Time {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.lastUpdateFromFetch[documentId]
}

// Stop cancels the next scheduled cycle. An in-flight cycle runs to
// completion and its outcomes are still applied.
func (self *LiveSync) Stop() {
	self.stopOnce.Do(func() {
		close(self.stop)
	})
}

// Close stops scheduling and cancels any in-flight fetch.
func (self *LiveSync) Close() {
	self.Stop()
	self.cancel()
}

func (self *LiveSync) coordinate() {
	for {
		select {
		case <-self.ctx.Done():
			return
		case apply := <-self.coord:
			apply()
		}
	}
}

func (self *LiveSync) run() {
	ticker := time.NewTicker(self.settings.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-self.ctx.Done():
			return
		case <-self.stop:
			return
		case documentId := <-self.trigger:
			self.fetchOne(documentId)
		case <-ticker.C:
			self.FetchCycle()
		}
	}
}

// FetchCycle fetches every currently subscribed document once, in order.
// A failure on one document never blocks the others: each outcome is
// classified and applied independently.
func (self *LiveSync) FetchCycle() {
	for _, documentId := range self.registry.SubscribedDocuments() {
		self.fetchOne(documentId)
	}
}

func (self *LiveSync) fetchOne(documentId DocumentId) {
	// subscribers-at-fetch-start snapshot
	params := self.registry.FetchParams(documentId)
	if len(params.Queries) == 0 {
		return
	}

	targetId := self.effectiveTarget(documentId)
	// differential headers and image carryover only apply to content fetched
	// from the same target
	previous := self.store.Get(documentId)
	if previous != nil && previous.DocumentId != targetId {
		previous = nil
	}

	request := &FetchRequest{
		DocumentId:    targetId,
		Queries:       params.Queries,
		IgnoredImages: params.IgnoredImages,
	}
	if previous != nil {
		request.LastModified = previous.Header.LastModified
		request.Version = previous.Header.Version
		request.SessionToken = previous.Header.SessionToken
	}

	fetchTime := time.Now()
	response, fetchErr := self.fetcher.Fetch(self.ctx, request)
	outcome := classifyOutcome(targetId, response, fetchErr, previous, fetchTime)

	applied := make(chan struct{})
	select {
	case self.coord <- func() {
		defer close(applied)
		self.apply(documentId, targetId, params, outcome)
	}:
	case <-self.ctx.Done():
		return
	}
	// keep per-document application in fetch-issue order
	select {
	case <-applied:
	case <-self.ctx.Done():
	}
}

func classifyOutcome(
	targetId DocumentId,
	response *FetchResponse,
	fetchErr *FetchError,
	previous *DecodedDocument,
	fetchTime time.Time,
) *FetchOutcome {
	outcome := &FetchOutcome{
		FetchTime: fetchTime,
	}
	switch {
	case fetchErr != nil:
		outcome.Status = FetchFailed
		outcome.Err = fetchErr
	case response.Unmodified:
		outcome.Status = FetchUnchanged
	case response.Document == nil:
		outcome.Status = FetchFailed
		outcome.Err = newFetchError(KindDecodeError, targetId, "response carried no document", nil)
	default:
		payload := response.Document
		header := payload.Header
		if payload.SessionToken != "" {
			header.SessionToken = payload.SessionToken
		}
		outcome.Status = FetchUpdated
		outcome.Doc = NewDecodedDocument(
			targetId,
			header,
			payload.Views,
			payload.Branches,
			payload.Images,
			previous,
		)
	}
	return outcome
}

// a fetched document that satisfies none of the requested queries has
// nothing to render
func anyQuerySatisfied(doc *DecodedDocument, queries []NodeQuery) bool {
	for _, query := range queries {
		if doc.View(query) != nil {
			return true
		}
	}
	return false
}

// apply runs on the coordination goroutine.
func (self *LiveSync) apply(documentId DocumentId, targetId DocumentId, params *FetchParams, outcome *FetchOutcome) {
	self.mutex.Lock()
	self.lastFetch[documentId] = outcome.FetchTime
	self.mutex.Unlock()

	switch outcome.Status {
	case FetchUnchanged:
		glog.V(2).Infof("[sync]%s unchanged\n", documentId)

	case FetchFailed:
		self.applyFailure(documentId, targetId, outcome.Err)

	case FetchUpdated:
		doc := outcome.Doc
		self.store.UpdateBranches(documentId, doc)
		self.store.Put(documentId, doc)

		status := RenderStatusReady
		if !anyQuerySatisfied(doc, params.Queries) {
			status = RenderStatusNodeNotFound
		}
		self.mutex.Lock()
		self.lastUpdateFromFetch[documentId] = outcome.FetchTime
		self.renderStatus[documentId] = status
		self.mutex.Unlock()

		var snapshot []byte
		if 0 < len(params.SavePaths) {
			snapshotBytes, err := EncodeDocument(doc)
			if err != nil {
				glog.Errorf("[sync]%s encode snapshot error = %s\n", documentId, err)
			} else {
				snapshot = snapshotBytes
				for _, savePath := range params.SavePaths {
					if err := SaveDocument(savePath, doc); err != nil {
						glog.Errorf("[sync]%s save %s error = %s\n", documentId, savePath, err)
					}
				}
			}
		}

		for _, subscription := range self.registry.Subscribers(documentId) {
			func() {
				defer func() {
					if r := recover(); r != nil {
						glog.Errorf("[sync]%s subscriber panic = %v\n", documentId, r)
					}
				}()
				if subscription.SavePath != "" {
					subscription.OnUpdate(doc, snapshot)
				} else {
					subscription.OnUpdate(doc, nil)
				}
			}()
		}
		glog.V(1).Infof("[sync]%s updated to version %s\n", documentId, doc.Header.Version)
	}
}

func (self *LiveSync) applyFailure(documentId DocumentId, targetId DocumentId, fetchErr *FetchError) {
	self.mutex.Lock()
	if fetchErr.Kind == KindCredentialMissing {
		if !self.credentialWarned {
			self.credentialWarned = true
			self.mutex.Unlock()
			glog.Infof("[sync]fetch skipped, no access token configured\n")
			return
		}
		self.mutex.Unlock()
		return
	}

	switch fetchErr.Kind {
	case KindNotFound, KindAccessDenied:
		self.renderStatus[documentId] = RenderStatusNotAvailable
	default:
		// keep the previous status. Previous content remains usable.
	}

	// revert an optimistic switch only when the switched-to id failed
	reverted := false
	if targetId != documentId {
		if switchedId, ok := self.aliases[documentId]; ok && switchedId == targetId {
			delete(self.aliases, documentId)
			reverted = true
		}
	}
	self.mutex.Unlock()

	if reverted {
		glog.Infof("[sync]%s fetch of switched document %s failed, reverting = %s\n", documentId, targetId, fetchErr)
	} else {
		glog.Infof("[sync]%s fetch error = %s\n", documentId, fetchErr)
	}
}

func (self *LiveSync) effectiveTarget(documentId DocumentId) DocumentId {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if switchedId, ok := self.aliases[documentId]; ok {
		return switchedId
	}
	return documentId
}

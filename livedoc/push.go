package livedoc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

type PushChannelSettings struct {
	ConnectTimeout   time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	ReconnectTimeout time.Duration
}

func DefaultPushChannelSettings() *PushChannelSettings {
	return &PushChannelSettings{
		ConnectTimeout:   5 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		ReconnectTimeout: 15 * time.Second,
	}
}

// wire format of one dirty event from the remote source
type pushEvent struct {
	DocumentId string `json:"document_id"`
}

// PushChannel listens on a websocket for dirty-document events and triggers
// an immediate fetch, so edits surface faster than the polling interval. The
// channel is advisory: when it is down, polling still covers every document.
type PushChannel struct {
	ctx    context.Context
	cancel context.CancelFunc

	pushUrl    string
	credential *Credential
	liveSync   *LiveSync

	settings *PushChannelSettings

	stateLock sync.Mutex
	conn      *websocket.Conn
}

func NewPushChannelWithDefaults(
	ctx context.Context,
	pushUrl string,
	credential *Credential,
	liveSync *LiveSync,
) *PushChannel {
	return NewPushChannel(ctx, pushUrl, credential, liveSync, DefaultPushChannelSettings())
}

func NewPushChannel(
	ctx context.Context,
	pushUrl string,
	credential *Credential,
	liveSync *LiveSync,
	settings *PushChannelSettings,
) *PushChannel {
	cancelCtx, cancel := context.WithCancel(ctx)
	pushChannel := &PushChannel{
		ctx:        cancelCtx,
		cancel:     cancel,
		pushUrl:    pushUrl,
		credential: credential,
		liveSync:   liveSync,
		settings:   settings,
	}
	go pushChannel.run()
	return pushChannel
}

func (self *PushChannel) run() {
	for {
		select {
		case <-self.ctx.Done():
			return
		default:
		}

		conn, err := self.connect()
		if err != nil {
			glog.V(1).Infof("[push]connect error = %s\n", err)
			select {
			case <-self.ctx.Done():
				return
			case <-time.After(self.settings.ReconnectTimeout):
			}
			continue
		}

		self.listen(conn)

		self.stateLock.Lock()
		self.conn = nil
		self.stateLock.Unlock()
		conn.Close()
	}
}

func (self *PushChannel) connect() (*websocket.Conn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: self.settings.ConnectTimeout,
	}
	header := http.Header{}
	if !self.credential.IsMissing() {
		header.Add(accessTokenHeader, self.credential.Token)
	}
	conn, _, err := dialer.DialContext(self.ctx, self.pushUrl, header)
	if err != nil {
		return nil, err
	}

	self.stateLock.Lock()
	self.conn = conn
	self.stateLock.Unlock()
	return conn, nil
}

func (self *PushChannel) listen(conn *websocket.Conn) {
	pingDone := make(chan struct{})
	defer close(pingDone)
	go self.ping(conn, pingDone)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			glog.V(1).Infof("[push]read error = %s\n", err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		event := &pushEvent{}
		if err := json.Unmarshal(message, event); err != nil {
			glog.V(1).Infof("[push]decode error = %s\n", err)
			continue
		}
		documentId, err := ParseDocumentId(event.DocumentId)
		if err != nil {
			glog.V(1).Infof("[push]event error = %s\n", err)
			continue
		}
		glog.V(2).Infof("[push]%s dirty\n", documentId)
		self.liveSync.TriggerFetch(documentId)
	}
}

func (self *PushChannel) ping(conn *websocket.Conn, done chan struct{}) {
	for {
		select {
		case <-self.ctx.Done():
			return
		case <-done:
			return
		case <-time.After(self.settings.PingInterval):
		}
		deadline := time.Now().Add(self.settings.WriteTimeout)
		if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			conn.Close()
			return
		}
	}
}

func (self *PushChannel) Close() {
	self.cancel()

	self.stateLock.Lock()
	if self.conn != nil {
		self.conn.Close()
		self.conn = nil
	}
	self.stateLock.Unlock()
}

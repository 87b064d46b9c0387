////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/backend"
)

// Session is the chat state of one signed-in user. It owns every live
// subscription and the observable view built from them.
//
// All subscription callbacks are posted to a single update thread that is the
// only writer of the view. Each callback carries the generation of the peer
// selection that opened it; callbacks from an older generation are dropped,
// so late deliveries from torn-down subscriptions never reach the view.
type Session struct {
	store    backend.DocumentStore
	media    backend.MediaHost
	identity backend.IdentityProvider
	params   Params
	events   EventModel

	presence  *Presence
	typing    *TypingTracker
	channel   *MessageChannel
	outbox    *Outbox
	directory *Directory

	// ctrl serialises peer selection, staging and teardown.
	ctrl    sync.Mutex
	peer    *User
	key     ConversationKey
	subs    []backend.Unsubscribe
	pending *backend.Attachment
	closed  bool

	generation atomic.Uint64

	updates   []update
	signal    chan struct{}
	quit      chan struct{}
	updateMux sync.Mutex

	self     User
	view     view
	viewMux  sync.RWMutex
	quitOnce sync.Once
}

// view is the observable state written only by the update thread.
type view struct {
	peer     *User
	key      ConversationKey
	messages []Message
	typing   bool
	online   map[string]bool
}

// update is a change to be applied on the update thread. A generation of zero
// is not tied to a peer selection and is always applied.
type update struct {
	generation uint64
	apply      func()
}

// newSession builds a session for the signed-in user and starts its update
// thread.
func newSession(self User, store backend.DocumentStore,
	media backend.MediaHost, identity backend.IdentityProvider, p Params,
	events EventModel) *Session {
	if events == nil {
		events = nopEventModel{}
	}

	s := &Session{
		store:    store,
		media:    media,
		identity: identity,
		params:   p,
		events:   events,
		signal:   make(chan struct{}, 1),
		quit:     make(chan struct{}),
		self:     self,
		view:     view{online: make(map[string]bool)},
	}

	s.presence = newPresence(store, self.ID)
	s.typing = newTypingTracker(store, self.ID, p.TypingIdle, p.Clock)
	s.channel = newMessageChannel(store)
	s.outbox = newOutbox(store, media, s.typing, p)
	s.directory = newDirectory(store, self.ID, p.PageSize,
		func(users []User, state DirectoryState, filtering bool) {
			s.post(0, func() { s.events.DirectoryUpdated(users, state, filtering) })
		},
		func(err error) { s.post(0, func() { s.events.ErrorReported(err) }) })

	go s.processUpdates()

	jww.INFO.Printf("[CHAT] Started session for %s (%s)", self.ID, self.Email)

	return s
}

////////////////////////////////////////////////////////////////////////////////
// Peer Selection                                                             //
////////////////////////////////////////////////////////////////////////////////

// SelectPeer switches the session to the conversation with peer. The previous
// peer's subscriptions are cancelled before the new ones are opened, and the
// message list and typing flag are reset to empty.
func (s *Session) SelectPeer(ctx context.Context, peer User) error {
	if peer.ID == "" {
		return newError(ValidationError, "SelectPeer", errors.New("empty peer ID"))
	}
	if err := ctx.Err(); err != nil {
		return newError(StateError, "SelectPeer", err)
	}

	s.ctrl.Lock()
	defer s.ctrl.Unlock()
	if s.closed {
		return newError(StateError, "SelectPeer", ErrClosed)
	}

	s.teardownLocked()

	gen := s.generation.Add(1)
	key := ResolveConversation(s.self.ID, peer.ID)
	s.peer = &peer
	s.key = key

	jww.INFO.Printf("[CHAT] Selected peer %s in conversation %s (generation %d)",
		peer.ID, key, gen)

	s.resetView(&peer, key)
	s.post(gen, func() { s.events.PeerSelected(peer, key) })

	unsub, err := s.channel.Open(key, func(messages []Message, err error) {
		s.post(gen, func() { s.applyMessages(key, messages, err) })
	})
	if err != nil {
		s.abortSelectLocked()
		return err
	}
	s.subs = append(s.subs, unsub)

	unsub, err = s.typing.WatchPeer(key, peer.ID, func(typing bool, err error) {
		s.post(gen, func() { s.applyTyping(key, peer.ID, typing, err) })
	})
	if err != nil {
		s.abortSelectLocked()
		return err
	}
	s.subs = append(s.subs, unsub)

	unsub, err = s.presence.WatchOnline(peer.ID, func(online bool, err error) {
		s.post(gen, func() { s.applyOnline(peer.ID, online, err) })
	})
	if err != nil {
		s.abortSelectLocked()
		return err
	}
	s.subs = append(s.subs, unsub)

	return nil
}

// abortSelectLocked undoes a partially opened peer selection. Must be called
// with ctrl held.
func (s *Session) abortSelectLocked() {
	s.teardownLocked()
	s.peer = nil
	s.key = ""
	s.resetView(nil, "")
}

// resetView replaces the selected peer in the view and empties the message
// list and typing flag.
func (s *Session) resetView(peer *User, key ConversationKey) {
	s.viewMux.Lock()
	defer s.viewMux.Unlock()
	s.view.peer = peer
	s.view.key = key
	s.view.messages = nil
	s.view.typing = false
}

// teardownLocked cancels every peer subscription and invalidates their
// pending updates. Must be called with ctrl held.
func (s *Session) teardownLocked() {
	for _, unsub := range s.subs {
		unsub()
	}
	if len(s.subs) > 0 {
		jww.DEBUG.Printf("[CHAT] Cancelled %d subscriptions for %s",
			len(s.subs), s.key)
	}
	s.subs = nil
	s.generation.Add(1)
}

////////////////////////////////////////////////////////////////////////////////
// Sending                                                                    //
////////////////////////////////////////////////////////////////////////////////

// SendText sends text to the selected peer. A staged attachment is sent first.
// Blank text with nothing staged does nothing.
func (s *Session) SendText(ctx context.Context, text string) error {
	s.ctrl.Lock()
	if strings.TrimSpace(text) == "" && s.pending == nil {
		s.ctrl.Unlock()
		return nil
	}
	peer, err := s.peerLocked("SendText")
	if err != nil {
		s.ctrl.Unlock()
		return err
	}
	pending := s.pending
	s.pending = nil
	s.ctrl.Unlock()

	if pending != nil {
		err = s.outbox.SendAttachment(ctx, s.self.ID, peer.ID, *pending)
		if err != nil {
			return err
		}
	}

	return s.outbox.SendText(ctx, s.self.ID, peer.ID, text)
}

// SendAttachment uploads the attachment and sends it to the selected peer.
func (s *Session) SendAttachment(ctx context.Context, a backend.Attachment) error {
	s.ctrl.Lock()
	peer, err := s.peerLocked("SendAttachment")
	s.ctrl.Unlock()
	if err != nil {
		return err
	}

	return s.outbox.SendAttachment(ctx, s.self.ID, peer.ID, a)
}

// StageAttachment holds an attachment to be sent with the next SendText. It
// replaces any previously staged attachment. Oversized attachments are
// rejected immediately.
func (s *Session) StageAttachment(a backend.Attachment) error {
	if err := s.outbox.checkSize(a); err != nil {
		return newError(ValidationError, "StageAttachment", err)
	}

	s.ctrl.Lock()
	defer s.ctrl.Unlock()
	if s.closed {
		return newError(StateError, "StageAttachment", ErrClosed)
	}
	s.pending = &a
	return nil
}

// ClearStagedAttachment drops the staged attachment, if any.
func (s *Session) ClearStagedAttachment() {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()
	s.pending = nil
}

// NotifyTyping reports a keystroke in the selected conversation.
func (s *Session) NotifyTyping(ctx context.Context) error {
	s.ctrl.Lock()
	_, err := s.peerLocked("NotifyTyping")
	key := s.key
	s.ctrl.Unlock()
	if err != nil {
		return err
	}

	return s.typing.Notify(ctx, key)
}

// peerLocked returns the selected peer. Must be called with ctrl held.
func (s *Session) peerLocked(op string) (User, error) {
	if s.closed {
		return User{}, newError(StateError, op, ErrClosed)
	} else if s.peer == nil {
		return User{}, newError(StateError, op, ErrNoPeer)
	}
	return *s.peer, nil
}

////////////////////////////////////////////////////////////////////////////////
// Profile                                                                    //
////////////////////////////////////////////////////////////////////////////////

// UpdateProfile changes the user name and, if an avatar is given, uploads it
// and replaces the photo. Both the identity provider profile and the user
// record are updated. Returns the updated user.
//
// If the avatar upload fails, the name is still saved with the old photo and
// the returned user is accompanied by a NetworkError.
func (s *Session) UpdateProfile(ctx context.Context, form ProfileForm) (User, error) {
	if err := form.validate(s.params.MaxAttachmentSize); err != nil {
		return User{}, newError(ValidationError, "UpdateProfile", err)
	}

	self := s.Self()
	userName := strings.TrimSpace(form.UserName)
	photoURL := self.PhotoURL

	var uploadErr error
	if form.Avatar != nil {
		if s.media == nil {
			return User{}, newError(StateError, "UpdateProfile",
				errors.New("no media host configured"))
		}
		url, err := s.media.Upload(ctx, *form.Avatar, s.params.ProfileMediaFolder)
		if err != nil {
			jww.ERROR.Printf("[CHAT] Failed to upload avatar of %s, keeping "+
				"the current photo: %+v", self.ID, err)
			uploadErr = newError(NetworkError, "UpdateProfile",
				errors.WithMessage(err, "failed to upload avatar"))
		} else {
			photoURL = url
		}
	}

	err := s.identity.UpdateProfile(ctx,
		backend.Profile{DisplayName: userName, PhotoURL: photoURL})
	if err != nil {
		return User{}, identityError("UpdateProfile", err)
	}

	err = s.store.UpdateDoc(ctx, userPath(self.ID), backend.Fields{
		fieldUserName: userName,
		fieldPhotoURL: nullable(photoURL),
	})
	if err != nil {
		return User{}, newError(NetworkError, "UpdateProfile", err)
	}

	s.viewMux.Lock()
	s.self.UserName = userName
	s.self.PhotoURL = photoURL
	self = s.self
	s.viewMux.Unlock()

	jww.INFO.Printf("[CHAT] Updated profile of %s", self.ID)
	return self, uploadErr
}

////////////////////////////////////////////////////////////////////////////////
// Lifecycle                                                                  //
////////////////////////////////////////////////////////////////////////////////

// GoingAway marks the user offline. It is meant to be called when the page is
// being unloaded and is best-effort.
func (s *Session) GoingAway(ctx context.Context) error {
	err := s.presence.SetOnline(ctx, false)
	if err != nil {
		jww.WARN.Printf("[CHAT] Failed to go offline: %+v", err)
	}
	return err
}

// Logout cancels every subscription, clears the typing flag, marks the user
// offline, ends the identity session and stops the update thread. Failures of
// the best-effort writes are logged. Calling Logout again does nothing.
func (s *Session) Logout(ctx context.Context) error {
	s.ctrl.Lock()
	if s.closed {
		s.ctrl.Unlock()
		return nil
	}
	s.closed = true
	key := s.key
	s.teardownLocked()
	s.peer = nil
	s.pending = nil
	s.ctrl.Unlock()

	s.directory.Close()
	s.typing.Stop()

	if key != "" {
		if err := s.typing.Clear(ctx, key); err != nil {
			jww.WARN.Printf("[CHAT] Failed to clear typing on logout: %+v", err)
		}
	}
	if err := s.presence.SetOnline(ctx, false); err != nil {
		jww.WARN.Printf("[CHAT] Failed to go offline on logout: %+v", err)
	}

	err := s.identity.EndSession(ctx)
	s.stop()

	if err != nil {
		return identityError("Logout", err)
	}

	jww.INFO.Printf("[CHAT] Logged out %s", s.self.ID)
	return nil
}

// stop terminates the update thread.
func (s *Session) stop() {
	s.quitOnce.Do(func() { close(s.quit) })
}

////////////////////////////////////////////////////////////////////////////////
// Update Thread                                                              //
////////////////////////////////////////////////////////////////////////////////

// post queues an update for the update thread. It never blocks.
func (s *Session) post(generation uint64, apply func()) {
	s.updateMux.Lock()
	s.updates = append(s.updates, update{generation, apply})
	s.updateMux.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// processUpdates applies queued updates in order until the session stops.
func (s *Session) processUpdates() {
	jww.DEBUG.Printf("[CHAT] Starting update thread for %s", s.self.ID)
	for {
		select {
		case <-s.quit:
			jww.DEBUG.Printf("[CHAT] Stopping update thread for %s", s.self.ID)
			return
		case <-s.signal:
			s.updateMux.Lock()
			batch := s.updates
			s.updates = nil
			s.updateMux.Unlock()

			for _, u := range batch {
				if u.generation != 0 && u.generation != s.generation.Load() {
					jww.TRACE.Printf("[CHAT] Dropping update from generation "+
						"%d", u.generation)
					continue
				}
				u.apply()
			}
		}
	}
}

func (s *Session) applyMessages(
	key ConversationKey, messages []Message, err error) {
	if err != nil {
		s.report(err)
		return
	}

	s.viewMux.Lock()
	if s.view.key != key {
		s.viewMux.Unlock()
		return
	}
	s.view.messages = messages
	s.viewMux.Unlock()

	jww.TRACE.Printf("[CHAT] %d messages in %s", len(messages), key)
	s.events.MessagesUpdated(key, append([]Message(nil), messages...))
}

func (s *Session) applyTyping(
	key ConversationKey, peerID string, typing bool, err error) {
	if err != nil {
		s.report(err)
		return
	}

	s.viewMux.Lock()
	if s.view.key != key {
		s.viewMux.Unlock()
		return
	}
	changed := s.view.typing != typing
	s.view.typing = typing
	s.viewMux.Unlock()

	if changed {
		s.events.TypingUpdated(key, peerID, typing)
	}
}

func (s *Session) applyOnline(userID string, online bool, err error) {
	if err != nil {
		s.report(err)
		return
	}

	s.viewMux.Lock()
	s.view.online[userID] = online
	s.viewMux.Unlock()

	s.events.PresenceUpdated(userID, online)
}

func (s *Session) report(err error) {
	jww.ERROR.Printf("[CHAT] Subscription failed: %+v", err)
	s.events.ErrorReported(err)
}

////////////////////////////////////////////////////////////////////////////////
// Getters                                                                    //
////////////////////////////////////////////////////////////////////////////////

// Self returns the signed-in user.
func (s *Session) Self() User {
	s.viewMux.RLock()
	defer s.viewMux.RUnlock()
	return s.self
}

// Peer returns the selected peer and its conversation key. Returns false if no
// peer is selected.
func (s *Session) Peer() (User, ConversationKey, bool) {
	s.viewMux.RLock()
	defer s.viewMux.RUnlock()
	if s.view.peer == nil {
		return User{}, "", false
	}
	return *s.view.peer, s.view.key, true
}

// Messages returns the messages of the selected conversation.
func (s *Session) Messages() []Message {
	s.viewMux.RLock()
	defer s.viewMux.RUnlock()
	return append([]Message(nil), s.view.messages...)
}

// PeerTyping returns true if the selected peer is typing.
func (s *Session) PeerTyping() bool {
	s.viewMux.RLock()
	defer s.viewMux.RUnlock()
	return s.view.typing
}

// Online returns the last observed online flags keyed on user ID.
func (s *Session) Online() map[string]bool {
	s.viewMux.RLock()
	defer s.viewMux.RUnlock()
	online := make(map[string]bool, len(s.view.online))
	for id, o := range s.view.online {
		online[id] = o
	}
	return online
}

// Directory returns the user directory of the session.
func (s *Session) Directory() *Directory { return s.directory }

// Params returns the session parameters.
func (s *Session) Params() Params { return s.params }

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"time"

	"gitlab.com/parley/parley-wasm/backend"
)

// User is a record in the user directory.
type User struct {
	ID        string    `json:"id"`
	UserName  string    `json:"userName,omitempty"`
	Email     string    `json:"email"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	IsOnline  bool      `json:"isOnline"`
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayName returns the user name, falling back to the email for accounts
// that never set one.
func (u User) DisplayName() string {
	if u.UserName != "" {
		return u.UserName
	}
	return u.Email
}

// userFromDoc normalises a users document. The document ID is authoritative
// over the id field.
func userFromDoc(d backend.Doc) User {
	return User{
		ID:        d.ID,
		UserName:  d.String(fieldUserName),
		Email:     d.String(fieldEmail),
		PhotoURL:  d.String(fieldPhotoURL),
		Provider:  d.String(fieldProvider),
		IsOnline:  d.Bool(fieldIsOnline),
		CreatedAt: d.Time(fieldCreatedAt),
	}
}

// newUserFields returns the fields of a freshly created user record.
func newUserFields(p backend.Principal, userName string) backend.Fields {
	return backend.Fields{
		fieldID:        p.ID,
		fieldUserName:  nullable(userName),
		fieldEmail:     p.Email,
		fieldPhotoURL:  nullable(p.PhotoURL),
		fieldProvider:  p.Provider,
		fieldCreatedAt: backend.ServerTimestamp,
		fieldIsOnline:  true,
	}
}

// Message is a single immutable chat message. Exactly one of Text and MediaURL
// is set.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	MediaURL   string    `json:"mediaUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IsMedia returns true if the message carries an attachment.
func (m Message) IsMedia() bool { return m.MediaURL != "" }

func messageFromDoc(d backend.Doc) Message {
	return Message{
		ID:         d.ID,
		SenderID:   d.String(fieldSenderID),
		ReceiverID: d.String(fieldReceiver),
		Text:       d.String(fieldText),
		MediaURL:   d.String(fieldMediaURL),
		CreatedAt:  d.Time(fieldCreatedAt),
	}
}

func messageFields(from, to, text, mediaURL string) backend.Fields {
	return backend.Fields{
		fieldText:      nullable(text),
		fieldMediaURL:  nullable(mediaURL),
		fieldSenderID:  from,
		fieldReceiver:  to,
		fieldCreatedAt: backend.ServerTimestamp,
	}
}

// nullable returns nil for the empty string so that absent values are stored
// as null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

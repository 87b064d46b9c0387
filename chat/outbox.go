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

	"github.com/aquilax/truncate"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/backend"
)

// Outbox appends messages to conversations. It never reads or mutates any
// local view; sent messages arrive through the MessageChannel like any other.
// Sends are independent and may complete in any order.
type Outbox struct {
	store  backend.DocumentStore
	media  backend.MediaHost
	typing *TypingTracker

	maxAttachmentSize int64
	folder            string
}

func newOutbox(store backend.DocumentStore, media backend.MediaHost,
	typing *TypingTracker, p Params) *Outbox {
	return &Outbox{
		store:             store,
		media:             media,
		typing:            typing,
		maxAttachmentSize: p.MaxAttachmentSize,
		folder:            p.ChatMediaFolder,
	}
}

// SendText appends a text message from one user to another. Blank text is
// ignored. After the message is written the sender's typing flag is cleared;
// a failure to clear it is logged and does not fail the send.
func (o *Outbox) SendText(ctx context.Context, from, to, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	key := ResolveConversation(from, to)
	id, err := o.store.AddDoc(
		ctx, messagesPath(key), messageFields(from, to, text, ""))
	if err != nil {
		return newError(NetworkError, "SendText", err)
	}

	jww.DEBUG.Printf("[OUTBOX] Sent message %s in %s: %s", id, key,
		truncate.Truncate(text, 32, "...", truncate.PositionEnd))

	if o.typing != nil {
		if err = o.typing.Clear(ctx, key); err != nil {
			jww.WARN.Printf("[OUTBOX] Failed to clear typing flag after "+
				"sending in %s: %+v", key, err)
		}
	}

	return nil
}

// SendAttachment uploads the attachment to the media host and appends a
// message referring to it. Oversized attachments are rejected before upload.
// If the upload fails nothing is written.
func (o *Outbox) SendAttachment(
	ctx context.Context, from, to string, a backend.Attachment) error {
	if err := o.checkSize(a); err != nil {
		return newError(ValidationError, "SendAttachment", err)
	}
	if o.media == nil {
		return newError(StateError, "SendAttachment",
			errors.New("no media host configured"))
	}

	url, err := o.media.Upload(ctx, a, o.folder)
	if err != nil {
		return newError(NetworkError, "SendAttachment",
			errors.WithMessagef(err, "failed to upload %q", a.Name))
	}

	key := ResolveConversation(from, to)
	id, err := o.store.AddDoc(
		ctx, messagesPath(key), messageFields(from, to, "", url))
	if err != nil {
		return newError(NetworkError, "SendAttachment", err)
	}

	jww.DEBUG.Printf("[OUTBOX] Sent attachment %s (%d bytes) as message %s "+
		"in %s", a.Name, a.Size(), id, key)
	return nil
}

// checkSize returns ErrAttachmentTooLarge if the attachment exceeds the limit.
func (o *Outbox) checkSize(a backend.Attachment) error {
	if a.Size() > o.maxAttachmentSize {
		return errors.WithMessagef(ErrAttachmentTooLarge,
			"%q is %d bytes, limit is %d", a.Name, a.Size(), o.maxAttachmentSize)
	}
	return nil
}

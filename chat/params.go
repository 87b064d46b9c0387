////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"encoding/json"
	"time"

	"github.com/benbjohnson/clock"
)

// Default values of Params.
const (
	defaultPageSize          = 15
	defaultTypingIdle        = 2 * time.Second
	defaultMaxAttachmentSize = 10 << 20
	defaultChatMediaFolder   = "chat_media"
	defaultProfileFolder     = "profile_images"
)

// Params contains the tunable parameters of a Session.
type Params struct {
	// PageSize is the number of directory records fetched per page.
	PageSize int `json:"pageSize"`

	// TypingIdle is how long after the last keystroke the typing flag is
	// cleared.
	TypingIdle time.Duration `json:"typingIdle"`

	// MaxAttachmentSize is the largest attachment, in bytes, that is uploaded.
	MaxAttachmentSize int64 `json:"maxAttachmentSize"`

	// ChatMediaFolder and ProfileMediaFolder are the media host folders
	// attachments and avatars are uploaded to.
	ChatMediaFolder    string `json:"chatMediaFolder"`
	ProfileMediaFolder string `json:"profileMediaFolder"`

	// Clock drives the typing idle timer. It is not serialised.
	Clock clock.Clock `json:"-"`
}

// DefaultParams returns the default Params.
func DefaultParams() Params {
	return Params{
		PageSize:           defaultPageSize,
		TypingIdle:         defaultTypingIdle,
		MaxAttachmentSize:  defaultMaxAttachmentSize,
		ChatMediaFolder:    defaultChatMediaFolder,
		ProfileMediaFolder: defaultProfileFolder,
		Clock:              clock.New(),
	}
}

// GetParameters returns the Params decoded from JSON on top of the defaults.
// An empty input returns the defaults.
func GetParameters(data []byte) (Params, error) {
	p := DefaultParams()
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Params{}, err
	}
	p.fill()
	return p, nil
}

// fill replaces unset values with their defaults.
func (p *Params) fill() {
	d := DefaultParams()
	if p.PageSize <= 0 {
		p.PageSize = d.PageSize
	}
	if p.TypingIdle <= 0 {
		p.TypingIdle = d.TypingIdle
	}
	if p.MaxAttachmentSize <= 0 {
		p.MaxAttachmentSize = d.MaxAttachmentSize
	}
	if p.ChatMediaFolder == "" {
		p.ChatMediaFolder = d.ChatMediaFolder
	}
	if p.ProfileMediaFolder == "" {
		p.ProfileMediaFolder = d.ProfileMediaFolder
	}
	if p.Clock == nil {
		p.Clock = d.Clock
	}
}

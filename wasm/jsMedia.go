////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package wasm

import (
	"context"
	"syscall/js"

	"github.com/hack-pad/safejs"
	"github.com/pkg/errors"

	"gitlab.com/parley/parley-wasm/backend"
	"gitlab.com/parley/parley-wasm/media"
	"gitlab.com/parley/parley-wasm/utils"
)

// jsMediaHost wraps a Javascript object with the method
//
//	upload({name, contentType, data: Uint8Array}, folder) => Promise<string>
//
// to adhere to the [backend.MediaHost] interface.
type jsMediaHost struct {
	v safejs.Value
}

func (mh *jsMediaHost) Upload(
	ctx context.Context, a backend.Attachment, folder string) (string, error) {
	p, err := mh.v.Call("upload", attachmentToJS(a), folder)
	if err != nil {
		return "", errors.Wrap(err, "upload threw")
	}

	v, err := utils.Await(ctx, safejs.Unsafe(p))
	if err != nil {
		return "", errors.WithMessagef(err, "failed to upload %s", a.Name)
	} else if v.Type() != js.TypeString || v.String() == "" {
		return "", errors.Errorf("upload of %s returned no URL", a.Name)
	}
	return v.String(), nil
}

// newMediaHost returns the media host described by the Javascript value:
// nothing, an object with an upload method or a Cloudinary configuration
// ({cloudName, uploadPreset, baseURL?}).
func newMediaHost(v js.Value) (backend.MediaHost, error) {
	switch {
	case v.IsUndefined() || v.IsNull():
		return nil, nil
	case utils.HasMethod(v, "upload"):
		return &jsMediaHost{v: safejs.Safe(v)}, nil
	}

	var cfg media.CloudinaryConfig
	if err := utils.FromJS(v, &cfg); err != nil {
		return nil, errors.WithMessage(err, "invalid media configuration")
	}
	return media.NewCloudinary(cfg, nil)
}

func attachmentToJS(a backend.Attachment) js.Value {
	obj := utils.Object.New()
	obj.Set("name", a.Name)
	obj.Set("contentType", a.ContentType)
	obj.Set("data", utils.CopyBytesToJS(a.Data))
	return obj
}

// attachmentFromJS reads {name, contentType, data: Uint8Array}.
func attachmentFromJS(v js.Value) (backend.Attachment, error) {
	if v.Type() != js.TypeObject {
		return backend.Attachment{}, errors.New("attachment must be an object")
	}
	data := v.Get("data")
	if !data.InstanceOf(utils.Uint8Array) {
		return backend.Attachment{},
			errors.New("attachment data must be a Uint8Array")
	}

	a := backend.Attachment{Data: utils.CopyBytesToGo(data)}
	if name := v.Get("name"); name.Type() == js.TypeString {
		a.Name = name.String()
	}
	if ct := v.Get("contentType"); ct.Type() == js.TypeString {
		a.ContentType = ct.String()
	}
	return a, nil
}

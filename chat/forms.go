////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"strings"

	"github.com/badoux/checkmail"
	"github.com/pkg/errors"

	"gitlab.com/parley/parley-wasm/backend"
)

const (
	minUserNameLen = 3
	minPasswordLen = 6
)

// RegisterForm is the input of Client.Register.
type RegisterForm struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInForm is the input of Client.SignIn.
type SignInForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileForm is the input of Session.UpdateProfile. Avatar is optional.
type ProfileForm struct {
	UserName string              `json:"userName"`
	Avatar   *backend.Attachment `json:"avatar,omitempty"`
}

func (f RegisterForm) validate() error {
	if err := validateUserName(f.UserName); err != nil {
		return err
	}
	if err := validateEmail(f.Email); err != nil {
		return err
	}
	return validatePassword(f.Password)
}

func (f SignInForm) validate() error {
	if err := validateEmail(f.Email); err != nil {
		return err
	}
	return validatePassword(f.Password)
}

func (f ProfileForm) validate(maxAvatarSize int64) error {
	if err := validateUserName(f.UserName); err != nil {
		return err
	}
	if f.Avatar != nil && f.Avatar.Size() > maxAvatarSize {
		return errors.WithMessagef(ErrAttachmentTooLarge,
			"avatar is %d bytes, limit is %d", f.Avatar.Size(), maxAvatarSize)
	}
	return nil
}

func validateUserName(userName string) error {
	if len(strings.TrimSpace(userName)) < minUserNameLen {
		return errors.Errorf(
			"user name must be at least %d characters", minUserNameLen)
	}
	return nil
}

func validateEmail(email string) error {
	err := checkmail.ValidateFormat(strings.TrimSpace(email))
	if err != nil {
		return errors.Wrapf(err, "invalid email %q", email)
	}
	return nil
}

func validatePassword(password string) error {
	if len(strings.TrimSpace(password)) < minPasswordLen {
		return errors.Errorf(
			"password must be at least %d characters", minPasswordLen)
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/backend"
	"gitlab.com/parley/parley-wasm/chat"
)

// lookupTimeout bounds the wait for the directory search that finds a peer.
const lookupTimeout = 10 * time.Second

// Flag variables.
var (
	userName, searchText, avatarPath string
	allPages                         bool
)

// sessionFunc opens a session with the client.
type sessionFunc func(ctx context.Context, c *chat.Client,
	events chat.EventModel) (*chat.Session, error)

// signIn opens a session with the configured account.
func signIn(ctx context.Context, c *chat.Client,
	events chat.EventModel) (*chat.Session, error) {
	return c.SignIn(ctx, chat.SignInForm{
		Email:    cfg.Account.Email,
		Password: cfg.Account.Password,
	}, events)
}

// withSession opens a session, runs f and logs out, even if f fails.
func withSession(ctx context.Context, open sessionFunc,
	f func(s *chat.Session, events *terminalEvents) error) error {
	c, closeBackend, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	events := newTerminalEvents(os.Stdout)
	s, err := open(ctx, c, events)
	if err != nil {
		return err
	}
	events.setSelf(s.Self().ID)

	err = f(s, events)

	// Log out with a fresh context so an interrupt still marks us offline
	logoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if logoutErr := s.Logout(logoutCtx); logoutErr != nil {
		jww.ERROR.Printf("Failed to log out: %+v", logoutErr)
	}
	return err
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Creates an account with the configured email and password.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		register := func(ctx context.Context, c *chat.Client,
			events chat.EventModel) (*chat.Session, error) {
			return c.Register(ctx, chat.RegisterForm{
				UserName: userName,
				Email:    cfg.Account.Email,
				Password: cfg.Account.Password,
			}, events)
		}

		return withSession(cmd.Context(), register,
			func(s *chat.Session, _ *terminalEvents) error {
				self := s.Self()
				fmt.Printf("Registered %s <%s> as %s\n",
					self.DisplayName(), self.Email, self.ID)
				return nil
			})
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Lists the user directory. * marks users who are online.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, signIn,
			func(s *chat.Session, events *terminalEvents) error {
				d := s.Directory()
				if searchText != "" {
					users, err := search(ctx, d, events, searchText)
					if err != nil {
						return err
					}
					printUsers(os.Stdout, users)
					return nil
				}

				if err := d.LoadInitialPage(ctx); err != nil {
					return err
				}
				for allPages && d.State() != chat.DirectoryExhausted {
					if err := d.LoadNextPage(ctx); err != nil {
						return err
					}
				}
				printUsers(os.Stdout, d.Users())
				return nil
			})
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <peer>",
	Short: "Chats with the user with the given email or user name.",
	Long: "Chats with the user with the given email or user name. Each line " +
		"typed is sent. \"/attach <file>\" sends a file and \"/quit\" logs " +
		"out.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, signIn,
			func(s *chat.Session, events *terminalEvents) error {
				peer, err := findUser(ctx, s.Directory(), events, args[0])
				if err != nil {
					return err
				}
				if err = s.SelectPeer(ctx, peer); err != nil {
					return err
				}
				return chatLoop(ctx, s, os.Stdin)
			})
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Changes the user name and optionally the avatar.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, signIn,
			func(s *chat.Session, _ *terminalEvents) error {
				form := chat.ProfileForm{UserName: userName}
				if avatarPath != "" {
					a, err := readAttachment(avatarPath)
					if err != nil {
						return err
					}
					form.Avatar = &a
				}

				u, err := s.UpdateProfile(ctx, form)
				if err != nil {
					return err
				}
				fmt.Printf("Updated profile: %s %s\n", u.DisplayName(), u.PhotoURL)
				return nil
			})
	},
}

func init() {
	registerCmd.Flags().StringVarP(&userName, "name", "n", "",
		"User name of the new account.")
	_ = registerCmd.MarkFlagRequired("name")

	usersCmd.Flags().StringVarP(&searchText, "search", "s", "",
		"Only list users whose name or email contains the text.")
	usersCmd.Flags().BoolVarP(&allPages, "all", "a", false,
		"Load every page of the directory.")

	profileCmd.Flags().StringVarP(&userName, "name", "n", "",
		"New user name.")
	profileCmd.Flags().StringVar(&avatarPath, "avatar", "",
		"Path to an image to use as the avatar.")
	_ = profileCmd.MarkFlagRequired("name")
}

// search filters the directory and waits for the first result.
func search(ctx context.Context, d *chat.Directory, events *terminalEvents,
	text string) ([]chat.User, error) {
	if err := d.Search(ctx, text); err != nil {
		return nil, err
	}

	select {
	case users := <-events.directory:
		return users, nil
	case <-time.After(lookupTimeout):
		return nil, errors.Errorf("timed out searching for %q", text)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// findUser returns the user whose email or user name equals name, ignoring
// case.
func findUser(ctx context.Context, d *chat.Directory, events *terminalEvents,
	name string) (chat.User, error) {
	users, err := search(ctx, d, events, name)
	if err != nil {
		return chat.User{}, err
	}

	for _, u := range users {
		if strings.EqualFold(u.Email, name) ||
			strings.EqualFold(u.UserName, name) {
			return u, nil
		}
	}
	return chat.User{}, errors.Errorf("no user named %q", name)
}

// chatLoop sends every line read from in until "/quit", the end of input or
// the context is done.
func chatLoop(ctx context.Context, s *chat.Session, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-lines:
			if !ok {
				return nil
			}
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case strings.HasPrefix(line, "/attach "):
			a, err := readAttachment(strings.TrimSpace(
				strings.TrimPrefix(line, "/attach ")))
			if err == nil {
				err = s.SendAttachment(ctx, a)
			}
			reportSendError(err)
		default:
			reportSendError(s.SendText(ctx, line))
		}
	}
}

// reportSendError prints failures the user can act on. State errors are
// dropped.
func reportSendError(err error) {
	if err == nil || chat.IsKind(err, chat.StateError) {
		return
	}
	fmt.Printf("error: %v\n", err)
}

// readAttachment reads the file and detects its content type.
func readAttachment(path string) (backend.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return backend.Attachment{}, errors.Wrapf(err, "failed to read %s", path)
	}
	return backend.Attachment{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

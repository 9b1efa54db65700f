package telegram

import (
	"context"
	"errors"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// Prompter supplies the answers of an interactive login.
type Prompter interface {
	Phone(ctx context.Context) (string, error)
	Code(ctx context.Context) (string, error)
	// Password returns the two-step verification password. An empty string
	// means the account has none.
	Password(ctx context.Context) (string, error)
}

// Login performs the interactive phone + code (+ password) flow against a
// fresh session and returns the resulting credential. It is only used by
// the one-time setup command.
func (m *Manager) Login(ctx context.Context, p Prompter) (string, error) {
	storage := NewMemorySession()
	client := m.newClient(storage, nil)

	err := client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(promptAuth{p: p}, auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return &AuthenticationError{Err: err}
		}

		self, err := client.Self(ctx)
		if err != nil {
			return err
		}
		m.logger.Info("Logged in", "user_id", self.ID, "username", self.Username)
		return nil
	})
	if err != nil {
		return "", classify(err)
	}

	return storage.Credential()
}

// promptAuth adapts a Prompter to gotd's user authenticator.
type promptAuth struct {
	p Prompter
}

func (a promptAuth) Phone(ctx context.Context) (string, error) {
	phone, err := a.p.Phone(ctx)
	return strings.TrimSpace(phone), err
}

func (a promptAuth) Password(ctx context.Context) (string, error) {
	pwd, err := a.p.Password(ctx)
	if err != nil {
		return "", err
	}
	if pwd == "" {
		return "", auth.ErrPasswordNotProvided
	}
	return pwd, nil
}

func (a promptAuth) Code(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	code, err := a.p.Code(ctx)
	return strings.TrimSpace(code), err
}

func (promptAuth) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return errors.New("account requires accepting terms of service in an official client")
}

func (promptAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("phone number is not registered with Telegram")
}

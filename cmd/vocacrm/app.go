package main

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/vocacrm/vocacrm-go/auth"
	"github.com/vocacrm/vocacrm-go/credentials"
	"github.com/vocacrm/vocacrm-go/identity"
	"github.com/vocacrm/vocacrm-go/internal/config"
	"github.com/vocacrm/vocacrm-go/internal/logging"
	"github.com/vocacrm/vocacrm-go/internal/messages"
	"github.com/vocacrm/vocacrm-go/session"
	"github.com/vocacrm/vocacrm-go/tenants"
	"github.com/vocacrm/vocacrm-go/token"
)

// app wires the client stack for one command invocation.
type app struct {
	cfg        config.Config
	logger     zerolog.Logger
	messages   messages.Catalog
	session    *session.Manager
	identities auth.Authenticator
	controller *auth.Controller
}

func newApp(cfg config.Config, identities auth.Authenticator, logOut io.Writer) (*app, error) {
	logger := logging.New(cfg, logOut)
	catalog := messages.For(cfg.GetLanguage())

	store, err := credentials.New(cfg, logging.Component(logger, "credentials"))
	if err != nil {
		return nil, err
	}

	sess := session.New(cfg, store,
		session.WithLogger(logging.Component(logger, "session")),
		session.WithCodec(token.NewCodec(cfg.GetTokenClockSkew())),
		session.WithMessages(catalog),
	)

	if identities == nil {
		identities = identity.NewRegistryFromConfig(cfg, catalog,
			identity.WithLogger(logging.Component(logger, "identity")))
	}

	directory := tenants.NewDirectory(tenants.NewAPISource(sess), logging.Component(logger, "tenants"))
	controller := auth.New(sess, identities, directory,
		auth.WithLogger(logging.Component(logger, "auth")),
		auth.WithMessages(catalog),
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		messages:   catalog,
		session:    sess,
		identities: identities,
		controller: controller,
	}, nil
}

// start restores the persisted session.
func (a *app) start(ctx context.Context) auth.Snapshot {
	return a.controller.Start(ctx)
}

func (a *app) close() {
	a.controller.Close()
	a.session.Dispose()
}

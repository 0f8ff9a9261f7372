/*
Copyright 2021 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/gravitational/trace"

	"github.com/gravitational/finance-session/lib"
	"github.com/gravitational/finance-session/lib/logger"
	"github.com/gravitational/finance-session/session"
	"github.com/gravitational/finance-session/session/api"
	"github.com/gravitational/finance-session/session/state"
)

// CLI represents command structure
type CLI struct {
	// Config is the path to configuration file
	Config kong.ConfigFlag `help:"Path to TOML configuration file" optional:"true" type:"existingfile" env:"FINSESSION_CONFIG"`

	// Debug is a debug logging mode flag
	Debug bool `help:"Debug logging" short:"d"`

	API     lib.APIConfig  `embed:"" prefix:"api-"`
	Storage state.Config   `embed:"" prefix:"storage-"`
	Session session.Config `embed:"" prefix:"session-"`
	Log     logger.Config  `embed:"" prefix:"log-"`

	// Version is the version print command
	Version VersionCmd `cmd:"true" help:"Print version"`

	Register RegisterCmd `cmd:"true" help:"Create a new account"`
	Login    LoginCmd    `cmd:"true" help:"Log in and store the session"`
	Logout   LogoutCmd   `cmd:"true" help:"Log out and remove the stored session"`
	Status   StatusCmd   `cmd:"true" help:"Show the stored session"`
	Refresh  RefreshCmd  `cmd:"true" help:"Refresh the access token now"`
	Start    StartCmd    `cmd:"true" help:"Keep the session fresh until terminated"`
}

// setupLogging applies the [log] section, --debug wins over the severity.
func (c *CLI) setupLogging() error {
	conf := c.Log
	if c.Debug {
		conf.Severity = "debug"
	}
	return trace.Wrap(logger.Setup(conf))
}

// newManager opens the credential store and wires a session manager.
func (c *CLI) newManager(ctx context.Context) (*session.Manager, error) {
	if err := c.setupLogging(); err != nil {
		return nil, trace.Wrap(err)
	}

	client, err := api.NewClient(api.Config{APIConfig: c.API})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	backend, err := state.Open(ctx, c.Storage)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	manager, err := session.NewManager(session.ManagerConfig{
		Config:  c.Session,
		Backend: backend,
		API:     client,
		Log:     logger.Standard(),
	})
	if err != nil {
		backend.Close()
		return nil, trace.Wrap(err)
	}
	return manager, nil
}

// startManager is newManager followed by Start.
func (c *CLI) startManager(ctx context.Context) (*session.Manager, error) {
	manager, err := c.newManager(ctx)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if err := manager.Start(ctx); err != nil {
		manager.Close()
		return nil, trace.Wrap(err)
	}
	return manager, nil
}

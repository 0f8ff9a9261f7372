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
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gravitational/trace"
	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"

	"github.com/gravitational/finance-session/lib"
	"github.com/gravitational/finance-session/session"
)

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	lib.PrintVersion(appName, lib.Version, lib.Gitref)
	return nil
}

// LoginCmd logs in with an email and a password.
type LoginCmd struct {
	Email        string `arg:"true" help:"Account email"`
	PasswordFile string `help:"Read the password from this file instead of prompting" type:"existingfile" env:"FINSESSION_PASSWORD_FILE"`
}

func (c *LoginCmd) Run(cli *CLI) error {
	email := strings.TrimSpace(c.Email)
	if err := session.ValidateEmail(email); err != nil {
		return trace.Wrap(err)
	}
	password, err := readPassword(c.PasswordFile)
	if err != nil {
		return trace.Wrap(err)
	}

	ctx := context.Background()
	manager, err := cli.startManager(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	defer manager.Close()

	profile, err := manager.Login(ctx, email, password)
	if err != nil {
		return trace.Wrap(err)
	}
	if profile.Name != "" {
		fmt.Printf("Logged in as %s\n", profile.Name)
	} else {
		fmt.Println("Logged in")
	}
	return nil
}

// RegisterCmd creates a new account.
type RegisterCmd struct {
	Name         string `arg:"true" help:"Full name, Latin or Cyrillic letters"`
	Email        string `arg:"true" help:"Account email"`
	PasswordFile string `help:"Read the password from this file instead of prompting" type:"existingfile" env:"FINSESSION_PASSWORD_FILE"`
}

func (c *RegisterCmd) Run(cli *CLI) error {
	name, email := strings.TrimSpace(c.Name), strings.TrimSpace(c.Email)
	if err := session.ValidateName(name); err != nil {
		return trace.Wrap(err)
	}
	if err := session.ValidateEmail(email); err != nil {
		return trace.Wrap(err)
	}
	password, err := readPassword(c.PasswordFile)
	if err != nil {
		return trace.Wrap(err)
	}

	ctx := context.Background()
	manager, err := cli.startManager(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	defer manager.Close()

	if err := manager.Register(ctx, name, email, password); err != nil {
		return trace.Wrap(err)
	}
	fmt.Printf("Registered %s, run `%s login %s` to start a session\n", name, appName, email)
	return nil
}

// readPassword reads the password from file or prompts for it.
func readPassword(file string) (string, error) {
	if file != "" {
		password, err := lib.ReadPassword(file)
		return password, trace.Wrap(err)
	}

	prompt := promptui.Prompt{
		Label:    "Password",
		Mask:     '*',
		Validate: session.ValidatePassword,
	}
	password, err := prompt.Run()
	if err != nil {
		return "", trace.Wrap(err)
	}
	return password, nil
}

// LogoutCmd removes the stored session.
type LogoutCmd struct{}

func (c *LogoutCmd) Run(cli *CLI) error {
	ctx := context.Background()
	manager, err := cli.startManager(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	defer manager.Close()

	if err := manager.Logout(ctx); err != nil {
		return trace.Wrap(err)
	}
	fmt.Println("Logged out")
	return nil
}

// StatusCmd prints the stored session.
type StatusCmd struct{}

func (c *StatusCmd) Run(cli *CLI) error {
	ctx := context.Background()
	manager, err := cli.startManager(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	defer manager.Close()

	report, err := manager.Report(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	renderReport(os.Stdout, report, time.Now())
	return nil
}

// RefreshCmd refreshes the access token right away.
type RefreshCmd struct{}

func (c *RefreshCmd) Run(cli *CLI) error {
	ctx := context.Background()
	manager, err := cli.startManager(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	defer manager.Close()

	if !manager.Refresh(ctx) {
		return trace.Errorf("token refresh failed, run with --debug for details")
	}
	report, err := manager.Report(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	fmt.Printf("Access token refreshed, expires at %s\n", report.ExpiresAt.Local().Format(time.RFC3339))
	return nil
}

// StartCmd keeps the session fresh until terminated.
type StartCmd struct {
	ShutdownTimeout time.Duration `help:"Graceful shutdown timeout" default:"15s" env:"FINSESSION_SHUTDOWN_TIMEOUT"`
}

func (c *StartCmd) Run(cli *CLI) error {
	app, err := NewApp(cli)
	if err != nil {
		return trace.Wrap(err)
	}

	go lib.ServeSignals(app, c.ShutdownTimeout)

	if err := app.Run(context.Background()); err != nil {
		lib.Bail(err)
	}
	return nil
}

func renderReport(w io.Writer, report *session.Report, now time.Time) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")

	table.Append([]string{"Status", report.Status.String()})
	table.Append([]string{"Name", orDash(report.Profile.Name)})
	table.Append([]string{"Account", orDash(report.Profile.AccountID)})
	table.Append([]string{"Expires", formatInstant(report.ExpiresAt, now)})
	if report.Armed {
		table.Append([]string{"Next refresh", formatInstant(report.NextRefresh, now)})
	} else {
		table.Append([]string{"Next refresh", "-"})
	}
	table.Render()
}

func formatInstant(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := t.Sub(now).Round(time.Second)
	if d < 0 {
		return fmt.Sprintf("%s (%s ago)", t.UTC().Format(time.RFC3339), -d)
	}
	return fmt.Sprintf("%s (in %s)", t.UTC().Format(time.RFC3339), d)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

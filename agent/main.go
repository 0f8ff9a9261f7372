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
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/gravitational/trace"

	"github.com/gravitational/finance-session/lib/logger"
)

const (
	appName        = "finance-session"
	appDescription = "Keeps a finance API session logged in and its access token fresh"
)

func main() {
	logger.Init()

	var cli CLI
	ctx := kong.Parse(
		&cli,
		kong.UsageOnError(),
		kong.Configuration(KongTOMLResolver),
		kong.Name(appName),
		kong.Description(appDescription),
	)

	// See respective commands Run() methods
	err := ctx.Run(&cli)
	if err != nil && cli.Debug {
		fmt.Printf("%v\n", trace.DebugReport(err))
	}
	ctx.FatalIfErrorf(err)
}

// Copyright 2025 The LiteOS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Binary smpsim boots a simulated multi-core machine and runs scripted
// signal and IPI scenarios against it.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

var debugLog = flag.Bool("debug", false, "enable debug logging")

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(signalsCmd), "scenarios")
	subcommands.Register(new(stormCmd), "scenarios")
	subcommands.Register(new(barrierCmd), "scenarios")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

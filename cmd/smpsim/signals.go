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

package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/subcommands"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gitwillsky/liteos/pkg/abi"
	"github.com/gitwillsky/liteos/pkg/kernel"
	"github.com/gitwillsky/liteos/pkg/kernel/events"
	"github.com/gitwillsky/liteos/pkg/kernel/ipi"
)

func newLogger() (*zap.Logger, error) {
	if *debugLog {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// signalsCmd runs a scripted cross-core signal scenario: handler
// installation, cross-core SIGUSR1 with trap-context delivery and
// sigreturn, SIGSTOP/SIGCONT, SIGKILL.
type signalsCmd struct {
	configFile string
}

// Name implements subcommands.Command.Name.
func (*signalsCmd) Name() string { return "signals" }

// Synopsis implements subcommands.Command.Synopsis.
func (*signalsCmd) Synopsis() string { return "run the scripted signal delivery scenario" }

// Usage implements subcommands.Command.Usage.
func (*signalsCmd) Usage() string {
	return "signals [-config <file>]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *signalsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configFile, "config", "", "TOML machine configuration")
}

// Execute implements subcommands.Command.Execute.
func (c *signalsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log, err := newLogger()
	if err != nil {
		return subcommands.ExitFailure
	}
	defer log.Sync()

	cfg, err := loadConfig(c.configFile)
	if err != nil {
		log.Error("bad configuration", zap.Error(err))
		return subcommands.ExitUsageError
	}
	if cfg.Cores < 2 {
		log.Error("the signals scenario needs at least two cores")
		return subcommands.ExitUsageError
	}

	mc := newMachine(cfg, log)
	defer mc.close()

	cancelSub := mc.bus.Subscribe(func(e events.Event) {
		switch ev := e.(type) {
		case kernel.TaskStatusChangedEvent:
			log.Info("status change",
				zap.Int32("pid", int32(ev.PID)),
				zap.Stringer("old", ev.Old),
				zap.Stringer("new", ev.New))
		case kernel.TaskExitedEvent:
			log.Info("task exited",
				zap.Int32("pid", int32(ev.PID)),
				zap.Int32("exitCode", ev.ExitCode))
		case kernel.SignalDeliveredEvent:
			log.Info("signal delivered",
				zap.Int32("pid", int32(ev.PID)),
				zap.Stringer("sig", ev.Signal),
				zap.Stringer("action", ev.Action))
		}
	})
	defer cancelSub()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, runCtx := errgroup.WithContext(runCtx)
	mc.start(runCtx, g)

	handlerTask := mc.spawnTask(1, 1)
	stopTask := mc.spawnTask(2, 1)
	killTask := mc.spawnTask(3, 1)

	// Handler round trip: install, deliver on trap return, sigreturn.
	if _, err := mc.manager.SetSignalHandler(handlerTask, abi.SIGUSR1, 0x11000); err != nil {
		log.Error("installing handler", zap.Error(err))
		return subcommands.ExitFailure
	}
	if err := mc.manager.SendSignal(0, 1, abi.SIGUSR1); err != nil {
		log.Error("sending SIGUSR1", zap.Error(err))
		return subcommands.ExitFailure
	}
	tc := handlerTask.trapContext()
	if res := mc.manager.HandleSignalsWithContext(handlerTask, tc); res.Keep {
		log.Info("handler installed into trap context",
			zap.Uint64("pc", tc.PC),
			zap.Uint64("sp", tc.StackPointer()))
	}
	if err := mc.manager.Sigreturn(handlerTask, tc); err != nil {
		log.Error("sigreturn", zap.Error(err))
		return subcommands.ExitFailure
	}
	log.Info("handler returned", zap.Uint64("pc", tc.PC))

	// Stop and continue from another core.
	mc.manager.SendSignal(0, 2, abi.SIGSTOP)
	mc.manager.SendSignal(0, 2, abi.SIGCONT)
	mc.manager.HandleSignalsSafe(stopTask)
	log.Info("stop/continue done", zap.Stringer("status", stopTask.Status()))

	// Cross-core kill; core 1's loop reaps the task.
	mc.manager.SendSignal(0, 3, abi.SIGKILL)
	deadline := time.After(cfg.syncTimeout())
	for killTask.Status() != kernel.TaskZombie {
		select {
		case <-deadline:
			log.Error("kill was not processed in time")
			return subcommands.ExitFailure
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	if err := g.Wait(); err != nil {
		log.Error("core loop failed", zap.Error(err))
		return subcommands.ExitFailure
	}

	for core := 0; core < cfg.Cores; core++ {
		s := mc.transport.Stats(ipi.CoreID(core))
		log.Info("core stats",
			zap.Int("core", core),
			zap.Uint64("sent", s.Sent),
			zap.Uint64("received", s.Received),
			zap.Uint64("reschedules", s.Reschedules))
	}
	return subcommands.ExitSuccess
}

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
	"errors"
	"flag"
	"time"

	"github.com/google/subcommands"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gitwillsky/liteos/pkg/kernel/ipi"
	"github.com/gitwillsky/liteos/pkg/syserror"
)

// barrierCmd demonstrates phased boot sequencing: all cores rendezvous at
// a barrier, then a second barrier times out with one core missing.
type barrierCmd struct {
	configFile string
}

// Name implements subcommands.Command.Name.
func (*barrierCmd) Name() string { return "barrier" }

// Synopsis implements subcommands.Command.Synopsis.
func (*barrierCmd) Synopsis() string { return "run the boot-barrier rendezvous scenario" }

// Usage implements subcommands.Command.Usage.
func (*barrierCmd) Usage() string {
	return "barrier [-config <file>]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *barrierCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configFile, "config", "", "TOML machine configuration")
}

// Execute implements subcommands.Command.Execute.
func (c *barrierCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
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
		log.Error("the barrier scenario needs at least two cores")
		return subcommands.ExitUsageError
	}

	mc := newMachine(cfg, log)
	defer mc.close()

	participants := make([]ipi.CoreID, cfg.Cores)
	for i := range participants {
		participants[i] = ipi.CoreID(i)
	}

	// Phase 1: everyone arrives.
	id, err := mc.transport.CreateBarrier(participants, cfg.syncTimeout())
	if err != nil {
		log.Error("creating barrier", zap.Error(err))
		return subcommands.ExitFailure
	}
	start := time.Now()
	var g errgroup.Group
	for _, core := range participants {
		core := core
		g.Go(func() error {
			return mc.transport.WaitAtBarrier(id, core)
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("rendezvous failed", zap.Error(err))
		return subcommands.ExitFailure
	}
	log.Info("all cores rendezvoused", zap.Duration("took", time.Since(start)))

	// Phase 2: core 0 never arrives; the rest must time out cleanly.
	id, err = mc.transport.CreateBarrier(participants, cfg.syncTimeout())
	if err != nil {
		log.Error("creating barrier", zap.Error(err))
		return subcommands.ExitFailure
	}
	var late errgroup.Group
	for _, core := range participants[1:] {
		core := core
		late.Go(func() error {
			// A waiter scheduled after the others already tore the
			// barrier down sees ErrNoSuchBarrier; both outcomes are
			// clean here.
			err := mc.transport.WaitAtBarrier(id, core)
			if errors.Is(err, syserror.ErrTimeout) || errors.Is(err, syserror.ErrNoSuchBarrier) {
				return nil
			}
			return err
		})
	}
	if err := late.Wait(); err != nil {
		log.Error("expected a clean timeout", zap.Error(err))
		return subcommands.ExitFailure
	}
	log.Info("missing participant timed out cleanly",
		zap.Int("waited", cfg.Cores-1),
		zap.Duration("deadline", cfg.syncTimeout()))
	return subcommands.ExitSuccess
}

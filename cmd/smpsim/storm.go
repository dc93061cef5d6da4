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

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"github.com/gitwillsky/liteos/pkg/kernel/ipi"
	"github.com/gitwillsky/liteos/pkg/syserror"
)

// stormCmd floods one core's mailbox past capacity and shows the
// backpressure behavior: low-priority rejection versus Critical eviction.
type stormCmd struct {
	configFile string
}

// Name implements subcommands.Command.Name.
func (*stormCmd) Name() string { return "storm" }

// Synopsis implements subcommands.Command.Synopsis.
func (*stormCmd) Synopsis() string { return "flood a mailbox and report drop accounting" }

// Usage implements subcommands.Command.Usage.
func (*stormCmd) Usage() string {
	return "storm [-config <file>]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *stormCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configFile, "config", "", "TOML machine configuration")
}

// Execute implements subcommands.Command.Execute.
func (c *stormCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
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

	// The core loops stay parked so nothing drains the mailbox while we
	// flood it.
	mc := newMachine(cfg, log)
	defer mc.close()

	target := ipi.CoreID(0)
	rejected := 0
	for i := 0; i < cfg.QueueCapacity*2; i++ {
		err := mc.transport.Send(1, target, ipi.NewGeneric(uint64(i), 0))
		if errors.Is(err, syserror.ErrQueueFull) {
			rejected++
		}
	}
	log.Info("flood finished",
		zap.Int("offered", cfg.QueueCapacity*2),
		zap.Int("rejected", rejected),
		zap.Int("queued", mc.transport.QueueLen(target)))

	// A stop request still gets in: Critical evicts the oldest Low.
	if err := mc.transport.SendStop(1, target); err != nil {
		log.Error("critical send failed", zap.Error(err))
		return subcommands.ExitFailure
	}

	mc.transport.HandleInterrupt(target)
	s := mc.transport.Stats(target)
	log.Info("after drain",
		zap.Uint64("dropped", s.Dropped),
		zap.Uint64("droppedLow", s.DroppedByClass[ipi.PriorityLow]),
		zap.Uint64("queueLen", s.QueueLen),
		zap.Bool("coreOnline", mc.transport.Online(target)))
	return subcommands.ExitSuccess
}

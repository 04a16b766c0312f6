// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package run

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/pingcap/dinesim/dining"
	"github.com/pingcap/dinesim/dining/render"
	cmdcontext "github.com/pingcap/dinesim/pkg/cmd/context"
	"github.com/pingcap/dinesim/pkg/cmd/util"
	"github.com/pingcap/dinesim/pkg/config"
	cerror "github.com/pingcap/dinesim/pkg/errors"
	"github.com/pingcap/dinesim/pkg/logutil"
	"github.com/pingcap/dinesim/pkg/version"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// options defines flags for the `run` command.
type options struct {
	configFilePath string

	simConfig *config.SimConfig
}

// newOptions creates new options for the `run` command.
func newOptions() *options {
	return &options{
		simConfig: config.GetDefaultSimConfig(),
	}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to template printing to it.
func (o *options) addFlags(cmd *cobra.Command) {
	defaultSimConfig := config.GetDefaultSimConfig()
	cmd.Flags().DurationVar((*time.Duration)(&o.simConfig.ThinkMin), "think-min", time.Duration(defaultSimConfig.ThinkMin), "Minimum thinking duration")
	cmd.Flags().DurationVar((*time.Duration)(&o.simConfig.ThinkMax), "think-max", time.Duration(defaultSimConfig.ThinkMax), "Maximum thinking duration")
	cmd.Flags().DurationVar((*time.Duration)(&o.simConfig.EatMin), "eat-min", time.Duration(defaultSimConfig.EatMin), "Minimum eating duration")
	cmd.Flags().DurationVar((*time.Duration)(&o.simConfig.EatMax), "eat-max", time.Duration(defaultSimConfig.EatMax), "Maximum eating duration")
	cmd.Flags().DurationVar((*time.Duration)(&o.simConfig.Refresh), "refresh", time.Duration(defaultSimConfig.Refresh), "Observer refresh period, state changes redraw earlier")
	cmd.Flags().StringVar(&o.simConfig.Renderer, "renderer", defaultSimConfig.Renderer, "State renderer (console|log)")
	cmd.Flags().Int64Var(&o.simConfig.Seed, "seed", defaultSimConfig.Seed, "Random seed for think/eat durations, 0 picks a time-based one")
	cmd.Flags().StringVar(&o.simConfig.Addr, "addr", defaultSimConfig.Addr, "Status HTTP server listening address, empty disables it")
	cmd.Flags().StringVar(&o.simConfig.LogFile, "log-file", defaultSimConfig.LogFile, "log file path")
	cmd.Flags().StringVar(&o.simConfig.LogLevel, "log-level", defaultSimConfig.LogLevel, "log level (etc: debug|info|warn|error)")
	cmd.Flags().StringVar(&o.configFilePath, "config", "", "Path of the configuration file")
}

// loadAndVerifyConfig merges the config file, explicitly set flags and the
// positional seat count into a validated SimConfig. Flags win over the file.
func (o *options) loadAndVerifyConfig(cmd *cobra.Command, args []string) (*config.SimConfig, error) {
	conf := config.GetDefaultSimConfig()
	if len(o.configFilePath) > 0 {
		// The seat count comes from the positional argument only.
		if err := util.StrictDecodeFile(o.configFilePath, "dinesim", conf, "seats"); err != nil {
			return nil, err
		}
	}

	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "think-min":
			conf.ThinkMin = o.simConfig.ThinkMin
		case "think-max":
			conf.ThinkMax = o.simConfig.ThinkMax
		case "eat-min":
			conf.EatMin = o.simConfig.EatMin
		case "eat-max":
			conf.EatMax = o.simConfig.EatMax
		case "refresh":
			conf.Refresh = o.simConfig.Refresh
		case "renderer":
			conf.Renderer = o.simConfig.Renderer
		case "seed":
			conf.Seed = o.simConfig.Seed
		case "addr":
			conf.Addr = o.simConfig.Addr
		case "log-file":
			conf.LogFile = o.simConfig.LogFile
		case "log-level":
			conf.LogLevel = o.simConfig.LogLevel
		case "config":
			// do nothing
		default:
			log.Panic("unknown flag, please report a bug", zap.String("flagName", flag.Name))
		}
	})

	seats, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, cerror.ErrConfigInvalid.GenWithStackByArgs(
			fmt.Sprintf("seat count %q is not an integer", args[0]))
	}
	conf.Seats = seats

	if err := conf.ValidateAndAdjust(); err != nil {
		return nil, errors.Trace(err)
	}
	return conf, nil
}

func (o *options) run(cmd *cobra.Command, args []string) error {
	conf, err := o.loadAndVerifyConfig(cmd, args)
	if err != nil {
		return errors.Trace(err)
	}

	if conf.Renderer == config.RendererConsole && conf.LogFile == "" {
		cmd.Printf(color.HiYellowString("[WARN] console renderer without --log-file, " +
			"log lines will interleave with the board.\n"))
	}

	cancel := util.InitCmd(cmd, &logutil.Config{
		File:  conf.LogFile,
		Level: conf.LogLevel,
	})
	defer cancel()

	version.LogVersionInfo()

	renderer, err := render.New(conf.Renderer, os.Stdout)
	if err != nil {
		return errors.Trace(err)
	}

	co, err := dining.NewCoordinator(conf, renderer)
	if err != nil {
		return errors.Annotate(err, "new coordinator")
	}

	util.InitSignalHandling(co.Drain, cancel)

	if console, ok := renderer.(*render.Console); ok {
		// The stdin read cannot be interrupted, the goroutine dies with
		// the process.
		go console.WatchQuitKey(os.Stdin, co.Close)
	}

	ctx := cmdcontext.GetDefaultContext()
	err = co.Run(ctx)
	if err != nil && errors.Cause(err) != context.Canceled {
		log.Error("run simulation", zap.String("error", errors.ErrorStack(err)))
		return errors.Annotate(err, "run simulation")
	}
	log.Info("dinesim exits successfully")

	return nil
}

// NewCmdRun creates the `run` command.
func NewCmdRun() *cobra.Command {
	o := newOptions()

	command := &cobra.Command{
		Use:   "run <seats>",
		Short: "Run the dining philosophers simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}

	o.addFlags(command)

	return command
}

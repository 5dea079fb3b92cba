// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

func setupFlagSet(fs *pflag.FlagSet) {
	fs.StringP("file", "f", "", "configuration file to use, bypassing the search path")
	fs.BoolP("debug", "d", false, "force debug logging, overriding configuration")
	fs.BoolP("version", "v", false, "print build information and exit")
}

// setup parses the command line and produces the viper instance and logger
// the fx app is built on. The returned logger is usable even when setup
// fails, so startup errors always have somewhere to go.
func setup(args []string) (*viper.Viper, *zap.Logger, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, l, fmt.Errorf("failed to create zap logger: %w", err)
	}

	fs := pflag.NewFlagSet(applicationName, pflag.ContinueOnError)
	setupFlagSet(fs)
	if err := fs.Parse(args); err != nil {
		return nil, l, fmt.Errorf("failed to parse args: %w", err)
	}
	if printVersion, _ := fs.GetBool("version"); printVersion {
		fmt.Fprint(os.Stdout, buildReport())
		os.Exit(0)
	}

	v, err := loadConfig(fs)
	if err != nil {
		return v, l, err
	}

	logger, err := buildLogger(v, fs)
	if err != nil {
		return v, l, err
	}
	return v, logger, nil
}

func loadConfig(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if file, _ := fs.GetString("file"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(applicationName)
		for _, path := range []string{"/etc/" + applicationName, "$HOME/." + applicationName, "."} {
			v.AddConfigPath(path)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		return v, fmt.Errorf("failed to read config file: %w", err)
	}
	return v, nil
}

func buildLogger(v *viper.Viper, fs *pflag.FlagSet) (*zap.Logger, error) {
	if debug, _ := fs.GetBool("debug"); debug {
		v.Set("logging.level", "DEBUG")
	}
	var c sallust.Config
	if err := v.UnmarshalKey("logging", &c, arrange.ComposeDecodeHooks(sallust.DecodeHook)); err != nil {
		return nil, err
	}
	return c.Build()
}

// buildReport renders the same build information the status endpoint
// serves, as text for the -v flag.
func buildReport() string {
	return fmt.Sprintf(
		"%s:\n  version: \t%s\n  go version: \t%s\n  built time: \t%s\n  git commit: \t%s\n  os/arch: \t%s/%s\n",
		applicationName, Version, runtime.Version(), BuildTime, GitCommit, runtime.GOOS, runtime.GOARCH)
}

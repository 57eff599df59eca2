/*
Copyright (c) Facebook, Inc. and its affiliates.

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
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	sddaemon "github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/leapsec/leapsec/daemon"
)

func main() {
	var (
		cfg     = daemon.DefaultConfig()
		err     error
		cfgPath string
		csvLog  bool
		csvPath string
		verbose bool
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "leap second table daemon\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "SIGHUP forces a reload, SIGUSR1/SIGUSR2 announce an inserted/removed second at the end of the month\n\nFlags:\n")
		flag.PrintDefaults()
	}

	flag.StringVar(&cfg.LeapFile, "leapfile", cfg.LeapFile, "Path to leap-seconds.list")
	flag.DurationVar(&cfg.Interval, "i", cfg.Interval, "Interval at which the leap state is evaluated")
	flag.DurationVar(&cfg.ReloadInterval, "reload", cfg.ReloadInterval, "Interval at which the leap file is checked for changes")
	flag.BoolVar(&cfg.Electric, "electric", false, "The kernel inserts or removes the leap second")
	flag.IntVar(&cfg.BuildLimit, "buildlimit", 0, "Ignore leap file entries older than this many years. 0 keeps all")
	flag.StringVar(&cfg.JournalPath, "journal", "", "Path to the journal of leap seconds learned at runtime")
	flag.IntVar(&cfg.MonitoringPort, "monitoringport", 4269, "Port to serve prometheus metrics on. 0 means disabled")
	flag.DurationVar(&cfg.SmearInterval, "smear", 0, "Smear the leap second over this interval. 0 means disabled")
	flag.BoolVar(&cfg.RequireHash, "requirehash", false, "Reject leap files without a hash")

	flag.StringVar(&cfgPath, "cfg", "", "Path to config")
	flag.BoolVar(&csvLog, "csvlog", false, "Log all the samples as CSV to log")
	flag.StringVar(&csvPath, "csvpath", "", "write CSV log into this file")
	flag.BoolVar(&verbose, "verbose", false, "Verbose logging")

	flag.Parse()

	log.SetReportCaller(true)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	if csvPath != "" && !csvLog {
		log.Fatalf("'csvpath' flag requires 'csvlog' flag")
	}
	if cfgPath != "" {
		log.Warningf("using config from %s, flag values are ignored", cfgPath)
		cfg, err = daemon.ReadConfig(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	if err := cfg.EvalAndValidate(); err != nil {
		log.Fatal(err)
	}
	log.Debugf("Config: %+v", *cfg)

	// set up sample logging
	w := log.StandardLogger().Writer()
	defer w.Close()
	var l daemon.Logger = daemon.NewDummyLogger(w)
	if csvLog {
		csvW := io.Writer(w)
		if csvPath != "" {
			f, err := os.Create(csvPath)
			if err != nil {
				log.Fatal(err)
			}
			defer f.Close()
			// write both to stderr and file
			csvW = io.MultiWriter(w, f)
		}
		l = daemon.NewCSVLogger(csvW)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stats := daemon.NewStats()
	if cfg.MonitoringPort != 0 {
		exporter := daemon.NewPrometheusExporter(stats, cfg.MonitoringPort, cfg.Interval)
		go func() {
			if err := exporter.Start(ctx); err != nil {
				log.Fatalf("Failed to start prometheus exporter: %v", err)
			}
		}()
	}

	s, err := daemon.New(cfg, stats, l)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	go handleSignals(ctx, s)

	if ok, err := sddaemon.SdNotify(false, sddaemon.SdNotifyReady); err != nil {
		log.Warningf("Failed to notify systemd: %v", err)
	} else if ok {
		log.Debug("notified systemd")
	}
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
	log.Info("shutting down")
}

func handleSignals(ctx context.Context, s *daemon.Daemon) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			switch sig {
			case syscall.SIGHUP:
				if _, err := s.Reload(ctx, true); err != nil {
					log.Errorf("reload: %v", err)
				}
			case syscall.SIGUSR1, syscall.SIGUSR2:
				cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				if err := s.Announce(cctx, sig == syscall.SIGUSR1); err != nil {
					log.Errorf("announce: %v", err)
				}
				cancel()
			}
		}
	}
}

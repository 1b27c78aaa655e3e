// Copyright 2023 Paolo Fabio Zaino
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

// Package main (Reviewler) is the command line application.
// It's responsible for reading the configuration and kicking off the
// review crawl of the requested company pages.
// Actual crawling is performed by the pkg/crawler package.
// Page parsing is handled by the pkg/scraper package.
// The configuration is handled by the pkg/config package.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	cmn "github.com/pzaino/reviewler/pkg/common"
	cfg "github.com/pzaino/reviewler/pkg/config"
	"github.com/pzaino/reviewler/pkg/crawler"
	"github.com/pzaino/reviewler/pkg/fetch"
	"github.com/pzaino/reviewler/pkg/review"
	"github.com/pzaino/reviewler/pkg/vdi"
)

var (
	configFile  *string    // Configuration file path
	config      cfg.Config // Configuration "object"
	configMutex sync.Mutex
)

func main() {
	configFile = flag.String("config", "./config.yaml", "Path to the configuration file")
	urls := flag.String("url", "", "Comma-separated company review URLs to scrape")
	startDate := flag.String("start", "", "Earliest review date to keep (YYYY-MM-DD)")
	endDate := flag.String("end", "", "Latest review date to keep (YYYY-MM-DD)")
	outFile := flag.String("out", "", "File to write the JSON results to (default stdout)")
	debugLevel := flag.String("debug", "", "Debug level (info, debug, debug2, debug3)")
	flag.Parse()

	cmn.InitLogger("Reviewler")
	cmn.DebugMsg(cmn.DbgLvlInfo, "The Reviewler is starting...")

	if strings.TrimSpace(*urls) == "" {
		cmn.DebugMsg(cmn.DbgLvlFatal, "No company URL provided, use -url")
	}

	initConfig()
	if *debugLevel != "" {
		cmn.SetDebugLevelFromString(*debugLevel)
	}

	dr, err := parseDateRange(*startDate, *endDate)
	if err != nil {
		cmn.DebugMsg(cmn.DbgLvlFatal, "Invalid date range: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setting up a channel to listen for termination signals
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range signals {
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				cmn.DebugMsg(cmn.DbgLvlInfo, "%v received, stopping...", sig)
				cancel()
			case syscall.SIGHUP:
				cmn.DebugMsg(cmn.DbgLvlInfo, "SIGHUP received, reloading configuration...")
				initConfig()
			}
		}
	}()

	results := make(map[string]review.Result)
	for _, u := range strings.Split(*urls, ",") {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		results[u] = scrapeOne(ctx, u, dr)
	}

	writeResults(results, *outFile)
}

func initConfig() {
	configMutex.Lock()
	defer configMutex.Unlock()

	var err error
	config, err = cfg.LoadConfig(*configFile)
	if err != nil {
		cmn.DebugMsg(cmn.DbgLvlError, "Error reading config file, using defaults: %v", err)
		config = cfg.NewConfig()
	}
	cmn.UpdateLoggerConfig()
	cmn.SetDebugLevel(cmn.DbgLevel(config.DebugLevel))
	crawler.StartCrawler(config)
}

func scrapeOne(ctx context.Context, companyURL string, dr review.DateRange) review.Result {
	configMutex.Lock()
	c := config
	configMutex.Unlock()

	fetcher, err := fetch.New(c.HTTP)
	if err != nil {
		cmn.DebugMsg(cmn.DbgLvlError, "Creating fetcher: %v", err)
		return review.Result{Status: review.StatusError}
	}

	var br crawler.Browser
	sess, err := vdi.NewSession(c.Selenium, time.Duration(c.Crawler.Timeout)*time.Second)
	if err != nil {
		cmn.DebugMsg(cmn.DbgLvlError, "VDI session unavailable, continuing over plain HTTP: %v", err)
	} else {
		br = sess
		defer func() {
			if err := sess.Close(); err != nil {
				cmn.DebugMsg(cmn.DbgLvlDebug, "Closing VDI session: %v", err)
			}
		}()
	}

	result, err := crawler.CrawlCompany(ctx, companyURL, dr, br, fetcher, c)
	if err != nil {
		cmn.DebugMsg(cmn.DbgLvlError, "Crawl of %s failed: %v", companyURL, err)
	}
	return result
}

func parseDateRange(start, end string) (review.DateRange, error) {
	var dr review.DateRange

	if strings.TrimSpace(start) != "" {
		t, err := cmn.ParseDate(start)
		if err != nil {
			return dr, err
		}
		dr.Start = t
	}
	if strings.TrimSpace(end) != "" {
		t, err := cmn.ParseDate(end)
		if err != nil {
			return dr, err
		}
		dr.End = cmn.EndOfDay(t)
	}
	return dr, nil
}

func writeResults(results map[string]review.Result, outFile string) {
	out := os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile) //nolint:gosec // The output path is user-provided on purpose
		if err != nil {
			cmn.DebugMsg(cmn.DbgLvlFatal, "Error creating output file: %v", err)
		}
		defer f.Close() //nolint:errcheck // Don't lint for error not checked, this is a defer statement
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		cmn.DebugMsg(cmn.DbgLvlError, "Error encoding results: %v", err)
	}
	cmn.DebugMsg(cmn.DbgLvlInfo, "Done, %d compan(ies) scraped", len(results))
}

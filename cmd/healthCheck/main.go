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

// Package main (healthCheck) is a command line that allows to check if
// both the Reviewler API and the VDI are reachable and working.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	cmn "github.com/pzaino/reviewler/pkg/common"
	cfg "github.com/pzaino/reviewler/pkg/config"
)

var (
	config cfg.Config
)

// enum for the different types of services api and vdi
type serviceType int

const (
	api serviceType = iota
	vdi
)

func genHealthURL(t serviceType) string {
	rval := ""
	switch t {
	case api:
		rval = fmt.Sprintf("%s:%d/v1/health", config.API.Host, config.API.Port)
		if strings.TrimSpace(strings.ToLower(config.API.SSLMode)) == cmn.EnableStr {
			rval = fmt.Sprintf("https://%s", rval)
		} else {
			rval = fmt.Sprintf("http://%s", rval)
		}
	case vdi:
		rval = fmt.Sprintf("%s:%d/wd/hub/status", config.Selenium.Host, config.Selenium.Port)
		if strings.TrimSpace(strings.ToLower(config.Selenium.SSLMode)) == cmn.EnableStr {
			rval = fmt.Sprintf("https://%s", rval)
		} else {
			rval = fmt.Sprintf("http://%s", rval)
		}
	}
	return rval
}

func main() {
	configFile := flag.String("config", "config.yaml", "Path to the configuration file")
	service := flag.String("service", "api", "Service to check (api, vdi)")

	cmn.InitLogger("healthCheck")

	// Parse the command line arguments
	flag.Parse()

	// Load the configuration file
	var err error
	config, err = cfg.LoadConfig(*configFile)
	if err != nil {
		cmn.DebugMsg(cmn.DbgLvlError, "Health check failed to load config: %v", err)
		os.Exit(1)
	}

	// Check the service
	var serviceToCheck serviceType
	switch *service {
	case "api":
		serviceToCheck = api
	case "vdi":
		serviceToCheck = vdi
	default:
		cmn.DebugMsg(cmn.DbgLvlError, "Unknown service: %s", *service)
		os.Exit(1)
	}

	healthURL := genHealthURL(serviceToCheck)
	if healthURL == "" {
		os.Exit(0)
	}

	// Perform the GET request
	resp, err := http.Get(healthURL) //nolint:gosec // This is usually a localhost connection
	if err != nil || resp.StatusCode != http.StatusOK {
		cmn.DebugMsg(cmn.DbgLvlDebug, "Health check failed for %s: %v", *service, err)
		os.Exit(1)
	}

	// If successful, exit with zero (healthy)
	os.Exit(0)
}

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

// Package main (API) implements the API server of the review scraping
// engine.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	cmn "github.com/pzaino/reviewler/pkg/common"
	cfg "github.com/pzaino/reviewler/pkg/config"
	"github.com/pzaino/reviewler/pkg/crawler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"golang.org/x/time/rate"
)

const (
	errTooManyRequests = "Too Many Requests"
	errRateLimitExceed = "Rate limit exceeded"
)

var (
	config      cfg.Config
	limiter     *rate.Limiter
	configMutex sync.Mutex
	configFile  *string

	sysReadyMtx sync.RWMutex // Protects sysReady
	sysReady    int          // 0 = not ready, 1 = starting up, 2 = ready

	// Counters for monitoring (atomic)
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	totalSuccess  atomic.Int64
)

func setSysReady(newStatus int) {
	if newStatus < 0 || newStatus > 2 {
		return
	}
	sysReadyMtx.Lock()
	defer sysReadyMtx.Unlock()
	sysReady = newStatus
}

func getSysReady() int {
	sysReadyMtx.RLock()
	defer sysReadyMtx.RUnlock()
	return sysReady
}

func initAll(configFile *string, config *cfg.Config, lmt **rate.Limiter) error {
	var err error
	currentSysReady := getSysReady()
	setSysReady(1) // Starting up or being restarted

	*config, err = cfg.LoadConfig(*configFile)
	if err != nil {
		cmn.DebugMsg(cmn.DbgLvlFatal, "Error reading config file: %v", err)
	}
	if cfg.IsEmpty(*config) {
		cmn.DebugMsg(cmn.DbgLvlFatal, "Config file is empty")
	}

	config.OS = runtime.GOOS

	// Set the rate limiter
	var rl, bl int
	if strings.TrimSpace(config.API.RateLimit) == "" {
		config.API.RateLimit = "10,10"
	}
	if !strings.Contains(config.API.RateLimit, ",") {
		config.API.RateLimit = config.API.RateLimit + ",10"
	}
	rlStr := strings.Split(config.API.RateLimit, ",")[0]
	if rlStr == "" {
		rlStr = "10"
	}
	rl, err = strconv.Atoi(rlStr)
	if err != nil {
		rl = 10
	}
	blStr := strings.Split(config.API.RateLimit, ",")[1]
	if blStr == "" {
		blStr = "10"
	}
	bl, err = strconv.Atoi(blStr)
	if err != nil {
		bl = 10
	}
	*lmt = rate.NewLimiter(rate.Limit(rl), bl)

	crawler.StartCrawler(*config)

	setSysReady(currentSysReady)
	return nil
}

func main() {
	setSysReady(1)

	// Parse the command line arguments
	configFile = flag.String("config", "./config.yaml", "Path to the configuration file")
	flag.Parse()

	// Initialize the logger
	cmn.InitLogger("ReviewlerAPI")
	cmn.DebugMsg(cmn.DbgLvlInfo, "The Reviewler API is starting...")

	// Setting up a channel to listen for termination signals
	cmn.DebugMsg(cmn.DbgLvlInfo, "Setting up termination signals listener...")
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	go func() {
		for {
			sig := <-signals
			switch sig {
			case syscall.SIGINT:
				cmn.DebugMsg(cmn.DbgLvlInfo, "SIGINT received, shutting down...")
				os.Exit(0)

			case syscall.SIGTERM:
				cmn.DebugMsg(cmn.DbgLvlInfo, "SIGTERM received, shutting down...")
				updateMetrics()
				os.Exit(0)

			case syscall.SIGQUIT:
				cmn.DebugMsg(cmn.DbgLvlInfo, "SIGQUIT received, shutting down...")
				updateMetrics()
				os.Exit(0)

			case syscall.SIGHUP:
				cmn.DebugMsg(cmn.DbgLvlInfo, "SIGHUP received, reloading configuration...")
				updateMetrics()
				configMutex.Lock()
				err := initAll(configFile, &config, &limiter)
				if err != nil {
					configMutex.Unlock()
					cmn.DebugMsg(cmn.DbgLvlFatal, "Error reloading the configuration: %v", err)
				}
				configMutex.Unlock()
			}
		}
	}()

	err := initAll(configFile, &config, &limiter)
	if err != nil {
		cmn.DebugMsg(cmn.DbgLvlFatal, "Error initializing the API: %v", err)
		os.Exit(-1)
	}

	srv := &http.Server{
		Addr: config.API.Host + ":" + fmt.Sprintf("%d", config.API.Port),

		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       time.Duration(config.API.Timeout) * time.Second,
	}

	runtime.GOMAXPROCS(runtime.NumCPU())

	// Set the handlers
	initAPIv1()

	// Start the Prometheus metrics updater
	if config.Prometheus.Enabled {
		updateMetrics()
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()

			for range ticker.C {
				updateMetrics()
			}
		}()
	}

	cmn.DebugMsg(cmn.DbgLvlInfo, "Starting server on %s:%d", config.API.Host, config.API.Port)
	setSysReady(2)
	cmn.DebugMsg(cmn.DbgLvlFatal, "Server return: %v", srv.ListenAndServe())
	setSysReady(0)
}

// initAPIv1 initializes the API v1 handlers
func initAPIv1() {
	healthCheckWithMiddlewares := SecurityHeadersMiddleware(RateLimitMiddleware(http.HandlerFunc(healthCheckHandler)))
	readyCheckWithMiddlewares := SecurityHeadersMiddleware(RateLimitMiddleware(http.HandlerFunc(readyCheckHandler)))

	http.Handle("/v1/health", healthCheckWithMiddlewares)
	http.Handle("/v1/health/", healthCheckWithMiddlewares)
	http.Handle("/v1/ready", readyCheckWithMiddlewares)
	http.Handle("/v1/ready/", readyCheckWithMiddlewares)

	http.Handle("/v1/scrape", withPublicMiddlewares(scrapeHandler))
	http.Handle("/v1/scrape/", withPublicMiddlewares(scrapeHandler))
}

func withPublicMiddlewares(h http.HandlerFunc) http.Handler {
	return RecoverMiddleware(
		CORSHeadersMiddleware(
			SecurityHeadersMiddleware(
				RateLimitMiddleware(h),
			),
		),
	)
}

// CORSHeadersMiddleware enables CORS for requests
func CORSHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// For preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RecoverMiddleware recovers from panics and returns a 500 error
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				cmn.DebugMsg(cmn.DbgLvlError, "Recovered from panic: %v", rec)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RateLimitMiddleware is a middleware for rate limiting
func RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			cmn.DebugMsg(cmn.DbgLvlDebug, errRateLimitExceed)
			http.Error(w, errTooManyRequests, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeadersMiddleware adds security-related headers to responses
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")

		next.ServeHTTP(w, r)
	})
}

// -------------------------------------------
// Handle Prometheus Push-Gateway Metrics
//--------------------------------------------

var (
	gaugeScrapeTotalRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reviewler_scrape_total_requests",
			Help: "Total number of scrape requests",
		},
		[]string{"instance_name"},
	)

	gaugeScrapeTotalErrors = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reviewler_scrape_total_errors",
			Help: "Total number of scrape errors",
		},
		[]string{"instance_name"},
	)

	gaugeScrapeTotalSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reviewler_scrape_total_success",
			Help: "Total number of successful scrapes",
		},
		[]string{"instance_name"},
	)
)

func init() {
	prometheus.MustRegister(
		gaugeScrapeTotalRequests,
		gaugeScrapeTotalErrors,
		gaugeScrapeTotalSuccess,
	)
}

func updateMetrics() {
	if !config.Prometheus.Enabled {
		return
	}

	instance, _ := os.Hostname()
	url := "http://" + config.Prometheus.Host + ":" + strconv.Itoa(config.Prometheus.Port)

	labels := prometheus.Labels{
		"instance_name": instance,
	}

	gaugeScrapeTotalRequests.With(labels).Set(float64(totalRequests.Load()))
	gaugeScrapeTotalErrors.With(labels).Set(float64(totalErrors.Load()))
	gaugeScrapeTotalSuccess.With(labels).Set(float64(totalSuccess.Load()))

	p := push.New(url, "reviewler_api").
		Collector(gaugeScrapeTotalRequests).
		Collector(gaugeScrapeTotalErrors).
		Collector(gaugeScrapeTotalSuccess)

	if err := p.Push(); err != nil {
		cmn.DebugMsg(cmn.DbgLvlError, "API: Could not push metrics: %v", err)
	} else {
		cmn.DebugMsg(cmn.DbgLvlDebug3, "API: Metrics pushed for instance=%s", instance)
	}
}

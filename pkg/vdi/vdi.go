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

// Package vdi wraps the remote WebDriver session used for the pages that
// need a real browser: the initial reviews page, category navigation and
// the anti-bot interstitials (popups, press-and-hold checks).
package vdi

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	selenium "github.com/go-auxiliaries/selenium"
	"github.com/go-auxiliaries/selenium/chrome"
	"github.com/go-auxiliaries/selenium/firefox"

	cmn "github.com/pzaino/reviewler/pkg/common"
	cfg "github.com/pzaino/reviewler/pkg/config"
)

const (
	browserGpuDefault        = "--disable-gpu"
	browserStartMaxDefault   = "--start-maximized"
	browserWindowSizeDefault = "--window-size=1920,1080"
	browserExtensionsDefault = "--disable-extensions"
	browserSandboxDefault    = "--no-sandbox"
	browserInfoBarsDefault   = "--disable-infobars"
	browserPopupsDefault     = "--disable-popup-blocking"
	browserShmDefault        = "--disable-dev-shm-usage"
	browserHeadlessDefault   = "--headless=new"

	// BrowserChrome represents the Chrome browser
	BrowserChrome = "chrome"
	// BrowserFirefox represents the Firefox browser
	BrowserFirefox = "firefox"
	// BrowserChromium represents the Chromium browser
	BrowserChromium = "chromium"
)

// PopupCloseSelectors are the close buttons tried, in order, to dismiss the
// overlays the target site raises over the review content.
var PopupCloseSelectors = []string{
	"div[class*='cultureQuestions-popup'] a.closeButton",
	"div[class*='cultureQuestionsLoader'] a.closeButton",
	"button[class*='modal__close' i]",
	"button[aria-label*='Dismiss' i]",
	"button[aria-label*='close' i]",
	"div[role='dialog'] button[class*='close']",
	"button[class*='close' i]",
	"span[class*='close' i]",
}

var browserSettingsMap = map[string][]string{
	BrowserChrome: {
		browserWindowSizeDefault,
		browserStartMaxDefault,
		browserSandboxDefault,
		browserInfoBarsDefault,
		browserExtensionsDefault,
		browserPopupsDefault,
		browserGpuDefault,
		browserShmDefault,
	},
	BrowserChromium: {
		browserWindowSizeDefault,
		browserStartMaxDefault,
		browserSandboxDefault,
		browserInfoBarsDefault,
		browserExtensionsDefault,
		browserPopupsDefault,
		browserGpuDefault,
		browserShmDefault,
	},
	BrowserFirefox: {
		browserStartMaxDefault,
		browserExtensionsDefault,
		browserPopupsDefault,
	},
}

// Session is one connected browser session on the VDI.
type Session struct {
	wd        selenium.WebDriver
	config    cfg.Selenium
	userAgent string
	timeout   time.Duration
}

// NewSession connects to the remote WebDriver described by the Selenium
// config section and applies the anti-detection setup.
func NewSession(c cfg.Selenium, elementTimeout time.Duration) (*Session, error) {
	if c.Host == "" {
		return nil, errors.New("VDI instance host is empty")
	}
	if c.Port == 0 {
		return nil, errors.New("VDI instance port is empty")
	}

	browser := strings.ToLower(strings.TrimSpace(c.Type))
	if browser == "" {
		browser = BrowserChrome
	}

	userAgent := cmn.RandomUserAgent(browser)

	args := append([]string(nil), browserSettingsMap[browser]...)
	if c.Headless {
		args = append(args, browserHeadlessDefault)
	}
	args = append(args, "--user-agent="+userAgent)
	if c.ProxyURL != "" {
		args = append(args, "--proxy-server="+c.ProxyURL)
	}
	if browser == BrowserChrome || browser == BrowserChromium {
		args = append(args, "--no-first-run")
		args = append(args, "--disable-blink-features=AutomationControlled")
		args = append(args, "--disable-notifications")
		args = append(args, "--disable-geolocation")
	}

	caps := selenium.Capabilities{"browserName": browser}
	switch browser {
	case BrowserFirefox:
		caps.AddFirefox(firefox.Capabilities{Args: args})
	default:
		caps.AddChrome(chrome.Capabilities{
			Args: args,
			ExcludeSwitches: []string{
				"enable-automation",
			},
		})
	}

	protocol := "http"
	if strings.TrimSpace(strings.ToLower(c.SSLMode)) == cmn.EnableStr {
		protocol = "https"
	}

	wd, err := selenium.NewRemote(caps, fmt.Sprintf("%s://%s:%d/wd/hub", protocol, c.Host, c.Port))
	if err != nil {
		return nil, fmt.Errorf("connecting to the VDI: %w", err)
	}

	s := &Session{
		wd:        wd,
		config:    c,
		userAgent: userAgent,
		timeout:   elementTimeout,
	}
	s.maskAutomation()
	return s, nil
}

// maskAutomation hides the most common automation tells from page scripts.
func (s *Session) maskAutomation() {
	script := `
		Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
		window.chrome = window.chrome || { runtime: {} };
	`
	if _, err := s.wd.ExecuteScript(script, nil); err != nil {
		cmn.DebugMsg(cmn.DbgLvlDebug, "Failed to mask automation properties: %v", err)
	}
}

// Navigate loads the given URL and waits for the document to settle.
func (s *Session) Navigate(pageURL string) error {
	if err := s.wd.Get(pageURL); err != nil {
		return fmt.Errorf("navigating to %s: %w", pageURL, err)
	}
	// Page scripts reset the navigator shims on load.
	s.maskAutomation()
	time.Sleep(time.Duration(1500+rand.IntN(1000)) * time.Millisecond) //nolint:gosec // jitter, not crypto
	return nil
}

// WaitForAny blocks until at least one of the CSS selectors matches an
// element on the page, or the session's element timeout elapses.
func (s *Session) WaitForAny(selectors ...string) error {
	err := s.wd.WaitWithTimeout(func(wd selenium.WebDriver) (bool, error) {
		for _, sel := range selectors {
			elems, err := wd.FindElements(selenium.ByCSSSelector, sel)
			if err == nil && len(elems) > 0 {
				return true, nil
			}
		}
		return false, nil
	}, s.timeout)
	if err != nil {
		return fmt.Errorf("waiting for %v: %w", selectors, err)
	}
	return nil
}

// PageSource returns the current page HTML.
func (s *Session) PageSource() (string, error) {
	return s.wd.PageSource()
}

// UserAgent returns the user agent the session was started with.
func (s *Session) UserAgent() string {
	return s.userAgent
}

// Cookies exports the session cookies as net/http cookies, so the plain
// HTTP fetcher can present the same identity to the site.
func (s *Session) Cookies() ([]*http.Cookie, error) {
	raw, err := s.wd.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("reading session cookies: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Path:   c.Path,
			Domain: c.Domain,
			Secure: c.Secure,
		})
	}
	return cookies, nil
}

// DismissPopups tries each known popup close button once and clicks every
// displayed match. It returns the number of popups dismissed.
func (s *Session) DismissPopups() int {
	dismissed := 0
	for _, sel := range PopupCloseSelectors {
		elems, err := s.wd.FindElements(selenium.ByCSSSelector, sel)
		if err != nil {
			continue
		}
		for _, el := range elems {
			if shown, err := el.IsDisplayed(); err != nil || !shown {
				continue
			}
			if err := el.Click(); err != nil {
				cmn.DebugMsg(cmn.DbgLvlDebug2, "Popup close click failed (%s): %v", sel, err)
				continue
			}
			dismissed++
			time.Sleep(300 * time.Millisecond)
		}
	}
	if dismissed > 0 {
		cmn.DebugMsg(cmn.DbgLvlDebug, "Dismissed %d popup(s)", dismissed)
	}
	return dismissed
}

// SolvePressAndHold looks for a press-and-hold verification button and, if
// one is displayed, holds the mouse button down on it for a few seconds.
// Absence of the button is not an error.
func (s *Session) SolvePressAndHold() error {
	el, err := s.wd.FindElement(selenium.ByXPATH,
		"//button[contains(translate(., 'PRESSANDHOLD', 'pressandhold'), 'press') and contains(translate(., 'PRESSANDHOLD', 'pressandhold'), 'hold')]")
	if err != nil {
		return nil
	}
	if shown, err := el.IsDisplayed(); err != nil || !shown {
		return nil
	}

	cmn.DebugMsg(cmn.DbgLvlInfo, "Press-and-hold check detected, attempting it...")
	if err := el.MoveTo(0, 0); err != nil {
		return fmt.Errorf("moving to the press-and-hold button: %w", err)
	}
	if err := s.wd.ButtonDown(); err != nil {
		return fmt.Errorf("pressing the hold button: %w", err)
	}
	hold := time.Duration(3500+rand.IntN(2000)) * time.Millisecond //nolint:gosec // jitter, not crypto
	time.Sleep(hold)
	if err := s.wd.ButtonUp(); err != nil {
		return fmt.Errorf("releasing the hold button: %w", err)
	}
	time.Sleep(time.Second)
	return nil
}

// Close ends the browser session.
func (s *Session) Close() error {
	if s.wd == nil {
		return nil
	}
	if err := s.wd.Quit(); err != nil {
		return fmt.Errorf("quitting the VDI session: %w", err)
	}
	return nil
}

package obstacle

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Detector recognizes one kind of transient page obstacle and knows how to
// clear it. New obstacle kinds are added by appending a detector to the
// list passed to Clear, not by branching.
type Detector interface {
	Name() string
	Present(page playwright.Page) bool
	Dismiss(page playwright.Page) error
}

const maxDismissAttempts = 2

// Clear walks the detectors in priority order, dismissing whatever is
// present. Consent banners go first: promotional popups and region pickers
// often surface only after consent is answered. Clear is idempotent and
// never fails the run; an obstacle that survives its attempts is logged and
// skipped, since it may not block extraction.
func Clear(logger *slog.Logger, page playwright.Page, detectors []Detector) {
	for _, d := range detectors {
		if !d.Present(page) {
			continue
		}
		logger.Debug("obstacle detected", "obstacle", d.Name())

		dismissed := false
		for attempt := 0; attempt < maxDismissAttempts; attempt++ {
			if err := d.Dismiss(page); err != nil {
				logger.Debug("dismiss attempt failed", "obstacle", d.Name(), "attempt", attempt+1, "error", err)
				continue
			}
			if !d.Present(page) {
				dismissed = true
				break
			}
		}

		if dismissed {
			logger.Info("obstacle dismissed", "obstacle", d.Name())
		} else {
			logger.Warn("obstacle not dismissed, continuing", "obstacle", d.Name())
		}
	}
}

// Defaults returns the known obstacle detectors in dismissal priority
// order.
func Defaults() []Detector {
	return []Detector{
		CookieConsent(),
		PromoPopup(),
		RegionPicker(),
	}
}

// selectorDetector drives detection and dismissal off an ordered selector
// list; the first visible match is the obstacle's dismiss control.
type selectorDetector struct {
	name      string
	selectors []string
	settle    time.Duration
}

func (d *selectorDetector) Name() string {
	return d.name
}

func (d *selectorDetector) Present(page playwright.Page) bool {
	return d.visible(page) != nil
}

func (d *selectorDetector) Dismiss(page playwright.Page) error {
	control := d.visible(page)
	if control == nil {
		return nil
	}
	if err := control.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(3000)}); err != nil {
		return fmt.Errorf("failed to dismiss %s: %w", d.name, err)
	}
	time.Sleep(d.settle)
	return nil
}

func (d *selectorDetector) visible(page playwright.Page) playwright.Locator {
	for _, sel := range d.selectors {
		control := page.Locator(sel).First()
		visible, err := control.IsVisible()
		if err == nil && visible {
			return control
		}
	}
	return nil
}

func CookieConsent() Detector {
	return &selectorDetector{
		name: "cookie_consent",
		selectors: []string{
			"#onetrust-accept-btn-handler",
			`button:has-text("Accept All Cookies")`,
			`text="I accept"`,
			"#accept-cookies",
			".cookie-accept",
			`button:has-text("Accept")`,
		},
		settle: time.Second,
	}
}

func PromoPopup() Detector {
	return &selectorDetector{
		name: "promo_popup",
		selectors: []string{
			`button:has-text("No Thank You")`,
			`button:has-text("No thanks")`,
			`button[aria-label="Close dialog"]`,
			".popup-close",
		},
		settle: 500 * time.Millisecond,
	}
}

func RegionPicker() Detector {
	return &selectorDetector{
		name: "region_picker",
		selectors: []string{
			`button:has-text("United States")`,
			".modal-close",
			`[aria-label="Close"]`,
		},
		settle: 500 * time.Millisecond,
	}
}

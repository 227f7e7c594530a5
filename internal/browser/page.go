package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/yourusername/linkedin-outreach/internal/logger"
)

var errNotFound = errors.New("element not found")

// findFirst returns the first selector that matches within timeout each.
func findFirst(page *rod.Page, timeout time.Duration, selectors ...string) (*rod.Element, error) {
	for _, sel := range selectors {
		el, err := page.Timeout(timeout).Element(sel)
		if err == nil {
			logger.Debug("Matched selector", "selector", sel)
			return detach(el), nil
		}
	}
	return nil, fmt.Errorf("%w: tried %d selectors", errNotFound, len(selectors))
}

// detach drops the lookup timeout from an element found on a timed page,
// so typing into it is bounded by the page's own context instead.
func detach(el *rod.Element) *rod.Element {
	return el.CancelTimeout()
}

// open navigates to url and waits for the page to settle.
func open(ctx context.Context, page *rod.Page, pace *Pacer, url string) error {
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return pace.Wait(ctx, 2*time.Second, 4*time.Second)
}

// click moves the mouse to el along a curve and clicks it.
func click(ctx context.Context, page *rod.Page, pace *Pacer, el *rod.Element) error {
	if shape, err := el.Shape(); err == nil {
		box := shape.Box()
		target := point{X: box.X + box.Width/2, Y: box.Y + box.Height/2}
		start := point{X: pace.rng.Float64() * 100, Y: pace.rng.Float64() * 100}
		path := pace.mousePath(start, target, 40)
		for i, pt := range path {
			_ = proto.InputDispatchMouseEvent{
				Type: proto.InputDispatchMouseEventTypeMouseMoved,
				X:    pt.X,
				Y:    pt.Y,
			}.Call(page)
			if err := sleep(ctx, mouseStepDelay(float64(i)/float64(len(path)))); err != nil {
				return err
			}
		}
	}

	if err := pace.Wait(ctx, 300*time.Millisecond, 800*time.Millisecond); err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// typeText types text into el one character at a time, with the odd
// corrected typo.
func typeText(ctx context.Context, page *rod.Page, pace *Pacer, el *rod.Element, text string) error {
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to focus field: %w", err)
	}
	if err := sleep(ctx, pace.Short()); err != nil {
		return err
	}

	for i, r := range []rune(text) {
		if wrong, ok := pace.typo(r); ok {
			if err := el.Input(string(wrong)); err != nil {
				return fmt.Errorf("failed to type: %w", err)
			}
			if err := pace.Wait(ctx, 100*time.Millisecond, 200*time.Millisecond); err != nil {
				return err
			}
			if err := page.Keyboard.Press(input.Backspace); err != nil {
				return fmt.Errorf("failed to correct typo: %w", err)
			}
		}
		if err := el.Input(string(r)); err != nil {
			return fmt.Errorf("failed to type: %w", err)
		}
		if err := sleep(ctx, pace.KeystrokeDelay(i)); err != nil {
			return err
		}
	}
	return nil
}

// scroll moves down the page in a few uneven steps, pausing to read.
func scroll(ctx context.Context, page *rod.Page, pace *Pacer, times int) error {
	for i := 0; i < times; i++ {
		amount := 50 + pace.rng.Intn(250)
		if _, err := page.Eval(`(y) => window.scrollBy(0, y)`, amount); err != nil {
			return fmt.Errorf("failed to scroll: %w", err)
		}
		if err := pace.Wait(ctx, time.Second, 3*time.Second); err != nil {
			return err
		}
	}
	return nil
}

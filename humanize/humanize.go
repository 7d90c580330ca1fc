// Package humanize drives a live page through timed, eased interactions that
// approximate a human reader: scrolling, pointer motion, and settle waits
// keyed on front-end framework markers.
//
// Every operation is best-effort. Internal failures are logged at debug or
// warn level and swallowed; nothing here may abort a render.
package humanize

import (
	"context"
	"log/slog"
	"math"
	mrand "math/rand/v2"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// sleepCtx pauses for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func randBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + mrand.IntN(hi-lo)
}

// easeInOutCubic maps t in [0,1] onto a cubic ease-in-out curve.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// EasedScrollToBottom scrolls from top to bottom in variable eased steps,
// dwells, then glides back to the top so lazy loaders fire both ways.
func EasedScrollToBottom(ctx context.Context, page *rod.Page) {
	p := page.Context(ctx)

	const maxSteps = 50
	for step := 0; step < maxSteps; step++ {
		delta := 100 + randBetween(-25, 26)
		stepMs := randBetween(150, 251)

		_, err := p.Eval(`(delta, durMs) => new Promise(resolve => {
			const start = window.scrollY;
			const t0 = performance.now();
			const tick = (now) => {
				let t = (now - t0) / durMs;
				if (t > 1) t = 1;
				const eased = t < 0.5 ? 4*t*t*t : 1 - Math.pow(-2*t + 2, 3) / 2;
				window.scrollTo(0, start + delta * eased);
				if (t < 1) requestAnimationFrame(tick); else resolve();
			};
			requestAnimationFrame(tick);
		})`, delta, stepMs)
		if err != nil {
			slog.Debug("eased scroll step failed", "error", err)
			return
		}

		sleepCtx(ctx, time.Duration(randBetween(200, 501))*time.Millisecond)
		if ctx.Err() != nil {
			return
		}

		atBottom, err := p.Eval(`() => window.scrollY + window.innerHeight >= document.documentElement.scrollHeight - 100`)
		if err != nil {
			slog.Debug("scroll position probe failed", "error", err)
			return
		}
		if atBottom.Value.Bool() {
			break
		}
	}

	sleepCtx(ctx, time.Duration(randBetween(500, 1501))*time.Millisecond)

	// One smooth glide back to the top.
	_, err := p.Eval(`() => new Promise(resolve => {
		const start = window.scrollY;
		const t0 = performance.now();
		const durMs = 800;
		const tick = (now) => {
			let t = (now - t0) / durMs;
			if (t > 1) t = 1;
			const eased = t < 0.5 ? 4*t*t*t : 1 - Math.pow(-2*t + 2, 3) / 2;
			window.scrollTo(0, start * (1 - eased));
			if (t < 1) requestAnimationFrame(tick); else resolve();
		};
		requestAnimationFrame(tick);
	})`)
	if err != nil {
		slog.Debug("scroll to top failed", "error", err)
	}

	sleepCtx(ctx, time.Duration(randBetween(1500, 2501))*time.Millisecond)
}

// SimulateMouse dispatches a handful of eased pointer trajectories between
// random viewport points, occasionally taps Tab, and cycles window focus.
func SimulateMouse(ctx context.Context, page *rod.Page) {
	p := page.Context(ctx)

	width, height := 1280, 720
	if res, err := p.Eval(`() => [window.innerWidth, window.innerHeight]`); err == nil {
		arr := res.Value.Arr()
		if len(arr) == 2 {
			width = arr[0].Int()
			height = arr[1].Int()
		}
	}

	trajectories := randBetween(3, 8)
	x := float64(randBetween(0, width))
	y := float64(randBetween(0, height))

	for i := 0; i < trajectories; i++ {
		if ctx.Err() != nil {
			return
		}

		tx := float64(randBetween(0, width))
		ty := float64(randBetween(0, height))
		steps := randBetween(12, 25)

		for s := 1; s <= steps; s++ {
			t := easeInOutCubic(float64(s) / float64(steps))
			jx := (mrand.Float64() - 0.5) * 4
			jy := (mrand.Float64() - 0.5) * 4
			px := x + (tx-x)*t + jx
			py := y + (ty-y)*t + jy
			if err := p.Mouse.MoveTo(proto.NewPoint(px, py)); err != nil {
				slog.Debug("mouse move failed", "error", err)
				return
			}
			sleepCtx(ctx, time.Duration(randBetween(8, 20))*time.Millisecond)
		}
		x, y = tx, ty

		sleepCtx(ctx, time.Duration(randBetween(100, 301))*time.Millisecond)
	}

	// An occasional keyboard touch reads far more human than pure pointer
	// traffic.
	if mrand.Float64() < 0.2 {
		if err := p.Keyboard.Press(input.Tab); err != nil {
			slog.Debug("key press failed", "error", err)
		}
	}

	if _, err := p.Eval(`() => {
		window.dispatchEvent(new Event('blur'));
		window.dispatchEvent(new Event('focus'));
	}`); err != nil {
		slog.Debug("focus cycle failed", "error", err)
	}
}

// WaitForFrameworks resolves once a known front-end framework signals
// readiness, or after a 2 s ceiling.
func WaitForFrameworks(ctx context.Context, page *rod.Page) {
	p := page.Context(ctx)

	_, err := p.Eval(`() => new Promise(resolve => {
		const done = () => resolve(true);
		setTimeout(done, 2000); // overall ceiling

		if (window.jQuery && window.jQuery.fn) {
			window.jQuery(done);
			return;
		}
		const reactRoot = document.querySelector('[data-reactroot], #root, #__next');
		const vueRoot = document.querySelector('[data-v-app], #app');
		const ngRoot = document.querySelector('[ng-version], app-root');
		if (reactRoot || vueRoot || ngRoot) {
			setTimeout(done, 500);
		}
	})`)
	if err != nil {
		slog.Debug("framework wait failed", "error", err)
	}
}

// WaitForStylesheetsAndImages blocks until stylesheets are readable, the
// font set has settled (8 s bound) and every image has completed or errored
// (6 s per image).
func WaitForStylesheetsAndImages(ctx context.Context, page *rod.Page) {
	p := page.Context(ctx)

	_, err := p.Eval(`() => new Promise(resolve => {
		const jobs = [];

		// Stylesheets: a cross-origin sheet throws on cssRules access but is
		// still loaded from layout's point of view.
		for (const link of document.querySelectorAll('link[rel="stylesheet"]')) {
			jobs.push(new Promise(res => {
				try {
					if (link.sheet) { res(); return; }
				} catch (e) { res(); return; }
				link.addEventListener('load', res, { once: true });
				link.addEventListener('error', res, { once: true });
				setTimeout(res, 3000);
			}));
		}

		if (document.fonts && document.fonts.ready) {
			jobs.push(Promise.race([
				document.fonts.ready,
				new Promise(res => setTimeout(res, 8000))
			]));
		}

		for (const img of document.images) {
			if (img.complete) continue;
			jobs.push(new Promise(res => {
				img.addEventListener('load', res, { once: true });
				img.addEventListener('error', res, { once: true });
				setTimeout(res, 6000);
			}));
		}

		Promise.all(jobs).then(resolve, resolve);
	})`)
	if err != nil {
		slog.Debug("asset wait failed", "error", err)
	}
}

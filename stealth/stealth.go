// Package stealth builds the document-start JavaScript payload that erases
// automation markers and aligns the page's runtime properties with a
// synthesised session identity.
//
// The payload has two layers. The community stealth bundle from
// go-rod/stealth handles the broadly known evasions; the identity overlay
// produced here pins navigator, screen, WebGL and canvas output to the exact
// values the session claims on the wire. Both are installed with
// EvalOnNewDocument so they run before any page script.
package stealth

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	rodstealth "github.com/go-rod/stealth"
	"github.com/pagelens/pagelens/fingerprint"
)

// BaseJS is the community evasion bundle, injected first.
var BaseJS = rodstealth.JS

// profile is the JSON payload handed to the overlay script.
type profile struct {
	UserAgent           string                  `json:"userAgent"`
	Platform            string                  `json:"platform"`
	Languages           []string                `json:"languages"`
	HardwareConcurrency int                     `json:"hardwareConcurrency"`
	DeviceMemory        int                     `json:"deviceMemory"`
	Brands              []fingerprint.Brand     `json:"brands"`
	HintPlatform        string                  `json:"hintPlatform"`
	HintPlatformVersion string                  `json:"hintPlatformVersion"`
	Screen              fingerprint.Screen      `json:"screen"`
	WebGLVendor         string                  `json:"webglVendor"`
	WebGLRenderer       string                  `json:"webglRenderer"`
	ChromiumPlugins     bool                    `json:"chromiumPlugins"`
	SeedHex             string                  `json:"seed"`
}

// OverlayScript renders the identity overlay for one session. The returned
// script is idempotent and swallows every internal failure; it must never
// throw into the page.
func OverlayScript(id *fingerprint.Identity) (string, error) {
	p := profile{
		UserAgent:           id.UserAgent,
		Platform:            id.Platform,
		Languages:           id.Languages,
		HardwareConcurrency: id.HardwareConcurrency,
		DeviceMemory:        id.DeviceMemoryGB,
		Brands:              id.Hints.Brands,
		HintPlatform:        id.Hints.Platform,
		HintPlatformVersion: id.Hints.PlatformVersion,
		Screen:              id.Screen,
		WebGLVendor:         id.WebGL.Vendor,
		WebGLRenderer:       id.WebGL.Renderer,
		ChromiumPlugins:     id.IsChromium(),
		SeedHex:             hex.EncodeToString(id.Seed[:]),
	}

	blob, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("stealth: marshal profile: %w", err)
	}

	return fmt.Sprintf(overlayTemplate, blob), nil
}

// overlayTemplate receives the JSON profile via %s. The script runs once per
// document (guarded by a window flag) and every section is individually
// wrapped so a single engine quirk cannot break the rest.
const overlayTemplate = `
(() => {
    'use strict';
    if (window.__plOverlayApplied) return;
    window.__plOverlayApplied = true;

    const profile = %s;

    const quiet = (fn) => { try { fn(); } catch (e) {} };

    // Keep a pristine toString so our own overrides report native code.
    const nativeToString = Function.prototype.toString;
    const masked = new WeakSet();
    quiet(() => {
        const patched = function toString() {
            if (masked.has(this)) {
                return 'function ' + (this.name || '') + '() { [native code] }';
            }
            return nativeToString.call(this);
        };
        masked.add(patched);
        Object.defineProperty(Function.prototype, 'toString', {
            value: patched, writable: true, configurable: true
        });
    });
    const defineGetter = (obj, prop, value) => quiet(() => {
        const getter = () => value;
        masked.add(getter);
        Object.defineProperty(obj, prop, { get: getter, configurable: true });
    });

    // 1. Automation markers.
    defineGetter(Navigator.prototype, 'webdriver', undefined);
    quiet(() => {
        const doomed = [];
        for (const key of Object.getOwnPropertyNames(window)) {
            if (/^cdc_/.test(key) || /^__playwright/.test(key) ||
                /^__webdriver_/.test(key) || /^__selenium_/.test(key) ||
                /^__fxdriver_/.test(key) || /^__driver_/.test(key)) {
                doomed.push(key);
            }
        }
        for (const key of doomed) { try { delete window[key]; } catch (e) {} }
    });
    quiet(() => {
        for (const key of ['__webdriver_evaluate', '__selenium_evaluate',
            '__webdriver_script_fn', '__fxdriver_evaluate', '_Selenium_IDE_Recorder']) {
            try { delete document[key]; } catch (e) {}
        }
    });

    // 2. Navigator properties from the session identity.
    defineGetter(Navigator.prototype, 'userAgent', profile.userAgent);
    defineGetter(Navigator.prototype, 'appVersion', profile.userAgent.replace(/^Mozilla\//, ''));
    defineGetter(Navigator.prototype, 'platform', profile.platform);
    defineGetter(Navigator.prototype, 'languages', Object.freeze(profile.languages.slice()));
    defineGetter(Navigator.prototype, 'language', profile.languages[0]);
    defineGetter(Navigator.prototype, 'hardwareConcurrency', profile.hardwareConcurrency);
    if (profile.chromiumPlugins) {
        defineGetter(Navigator.prototype, 'deviceMemory', profile.deviceMemory);
    }

    // 3. userAgentData (Chromium only).
    quiet(() => {
        if (!profile.chromiumPlugins) return;
        const data = {
            brands: profile.brands.map(b => ({ brand: b.brand, version: b.version })),
            mobile: false,
            platform: profile.hintPlatform,
            getHighEntropyValues: function (hints) {
                const full = {
                    brands: this.brands,
                    mobile: false,
                    platform: this.platform,
                    platformVersion: profile.hintPlatformVersion,
                    architecture: 'x86',
                    bitness: '64',
                    model: '',
                    uaFullVersion: profile.brands[0] ? profile.brands[0].version + '.0.0.0' : ''
                };
                const out = {};
                for (const h of (hints || [])) if (h in full) out[h] = full[h];
                out.brands = full.brands; out.mobile = full.mobile; out.platform = full.platform;
                return Promise.resolve(out);
            },
            toJSON: function () {
                return { brands: this.brands, mobile: this.mobile, platform: this.platform };
            }
        };
        masked.add(data.getHighEntropyValues);
        defineGetter(Navigator.prototype, 'userAgentData', data);
    });

    // 4. Screen geometry.
    defineGetter(Screen.prototype, 'width', profile.screen.width);
    defineGetter(Screen.prototype, 'height', profile.screen.height);
    defineGetter(Screen.prototype, 'availWidth', profile.screen.availWidth);
    defineGetter(Screen.prototype, 'availHeight', profile.screen.availHeight);
    defineGetter(Screen.prototype, 'colorDepth', profile.screen.colorDepth);
    defineGetter(Screen.prototype, 'pixelDepth', profile.screen.colorDepth);

    // 5. WebGL vendor/renderer and a curated extension list.
    quiet(() => {
        const UNMASKED_VENDOR = 0x9245, UNMASKED_RENDERER = 0x9246;
        const extensions = [
            'ANGLE_instanced_arrays', 'EXT_blend_minmax', 'EXT_color_buffer_half_float',
            'EXT_float_blend', 'EXT_texture_compression_bptc', 'EXT_texture_compression_rgtc',
            'EXT_texture_filter_anisotropic', 'OES_element_index_uint', 'OES_fbo_render_mipmap',
            'OES_standard_derivatives', 'OES_texture_float', 'OES_texture_float_linear',
            'OES_texture_half_float', 'OES_texture_half_float_linear', 'OES_vertex_array_object',
            'WEBGL_color_buffer_float', 'WEBGL_compressed_texture_s3tc',
            'WEBGL_compressed_texture_s3tc_srgb', 'WEBGL_debug_renderer_info',
            'WEBGL_debug_shaders', 'WEBGL_depth_texture', 'WEBGL_draw_buffers',
            'WEBGL_lose_context', 'WEBGL_multi_draw'
        ];
        const patchGL = (proto) => {
            if (!proto) return;
            const origGetParameter = proto.getParameter;
            const getParameter = function (param) {
                if (param === UNMASKED_VENDOR) return profile.webglVendor;
                if (param === UNMASKED_RENDERER) return profile.webglRenderer;
                if (param === 0x1F00) return 'WebKit';
                if (param === 0x1F01) return 'WebKit WebGL';
                return origGetParameter.call(this, param);
            };
            masked.add(getParameter);
            proto.getParameter = getParameter;

            const getSupportedExtensions = function () { return extensions.slice(); };
            masked.add(getSupportedExtensions);
            proto.getSupportedExtensions = getSupportedExtensions;
        };
        patchGL(window.WebGLRenderingContext && WebGLRenderingContext.prototype);
        patchGL(window.WebGL2RenderingContext && WebGL2RenderingContext.prototype);
    });

    // 6. Plugins and mimeTypes consistent with the browser family.
    quiet(() => {
        const mkPlugin = (name, filename, description, mimes) => {
            const plugin = Object.create(window.Plugin ? window.Plugin.prototype : {});
            Object.defineProperties(plugin, {
                name: { value: name, enumerable: true },
                filename: { value: filename, enumerable: true },
                description: { value: description, enumerable: true },
                length: { value: mimes.length, enumerable: true }
            });
            return plugin;
        };
        const pdfMimes = ['application/pdf', 'text/pdf'];
        const entries = profile.chromiumPlugins
            ? [
                mkPlugin('PDF Viewer', 'internal-pdf-viewer', 'Portable Document Format', pdfMimes),
                mkPlugin('Chrome PDF Viewer', 'internal-pdf-viewer', 'Portable Document Format', pdfMimes),
                mkPlugin('Chromium PDF Viewer', 'internal-pdf-viewer', 'Portable Document Format', pdfMimes),
                mkPlugin('Microsoft Edge PDF Viewer', 'internal-pdf-viewer', 'Portable Document Format', pdfMimes),
                mkPlugin('WebKit built-in PDF', 'internal-pdf-viewer', 'Portable Document Format', pdfMimes)
              ]
            : [mkPlugin('PDF Viewer', 'internal-pdf-js-viewer', 'Portable Document Format', pdfMimes)];

        const plugins = Object.create(window.PluginArray ? window.PluginArray.prototype : {});
        entries.forEach((p, i) => { plugins[i] = p; plugins[p.name] = p; });
        Object.defineProperty(plugins, 'length', { value: entries.length });
        plugins.item = (i) => entries[i] || null;
        plugins.namedItem = (n) => entries.find(p => p.name === n) || null;
        plugins.refresh = () => {};
        defineGetter(Navigator.prototype, 'plugins', plugins);

        const mimeTypes = Object.create(window.MimeTypeArray ? window.MimeTypeArray.prototype : {});
        pdfMimes.forEach((type, i) => {
            const mt = { type: type, suffixes: 'pdf', description: 'Portable Document Format', enabledPlugin: entries[0] };
            mimeTypes[i] = mt; mimeTypes[type] = mt;
        });
        Object.defineProperty(mimeTypes, 'length', { value: pdfMimes.length });
        mimeTypes.item = (i) => mimeTypes[i] || null;
        mimeTypes.namedItem = (t) => mimeTypes[t] || null;
        defineGetter(Navigator.prototype, 'mimeTypes', mimeTypes);
    });

    // 7. Notification permission query must resolve, never reject.
    quiet(() => {
        const origQuery = navigator.permissions.query.bind(navigator.permissions);
        const query = (descriptor) => {
            if (descriptor && descriptor.name === 'notifications') {
                return Promise.resolve({ state: 'default', onchange: null });
            }
            return origQuery(descriptor).catch(() => ({ state: 'prompt', onchange: null }));
        };
        masked.add(query);
        navigator.permissions.query = query;
    });

    // 8. Seeded canvas noise: the same session always reads back identical
    // pixels, two sessions with different seeds diverge.
    quiet(() => {
        let state = 0;
        for (let i = 0; i < profile.seed.length; i += 8) {
            state = (state ^ parseInt(profile.seed.slice(i, i + 8), 16)) >>> 0;
        }
        if (state === 0) state = 0x9e3779b9;
        const noiseAt = (i) => {
            let x = (state + i) >>> 0;
            x ^= x << 13; x >>>= 0;
            x ^= x >> 17;
            x ^= x << 5; x >>>= 0;
            return x %% 3 - 1; // -1, 0 or +1 per channel
        };
        const origGetImageData = CanvasRenderingContext2D.prototype.getImageData;
        const getImageData = function (...args) {
            const data = origGetImageData.apply(this, args);
            const px = data.data;
            for (let i = 0; i < px.length; i++) {
                if ((i & 3) === 3) continue; // leave alpha alone
                const v = px[i] + noiseAt(i);
                px[i] = v < 0 ? 0 : v > 255 ? 255 : v;
            }
            return data;
        };
        masked.add(getImageData);
        CanvasRenderingContext2D.prototype.getImageData = getImageData;
    });

    // 9. WebRTC constructors disappear entirely.
    quiet(() => {
        for (const name of ['RTCPeerConnection', 'webkitRTCPeerConnection', 'mozRTCPeerConnection', 'RTCDataChannel']) {
            defineGetter(window, name, undefined);
        }
    });
})();
`

package classify

import "strings"

// Category is the coarse device category assigned to a client.
type Category string

const (
	// CategoryBot covers search engine and social preview crawlers.
	CategoryBot Category = "Bot"
	// CategorySmartTV covers TVs, streaming boxes, consoles, set-top
	// boxes and IPTV client applications.
	CategorySmartTV Category = "SmartTV"
	// CategoryMobile covers phones and phone-hosted player apps.
	CategoryMobile Category = "Mobile"
	// CategoryTablet covers tablet browsers.
	CategoryTablet Category = "Tablet"
	// CategoryDesktop is the conservative fallback for browsers and
	// anything unrecognized.
	CategoryDesktop Category = "Desktop"
)

// ClientInfo is the result of classifying a User-Agent string.
type ClientInfo struct {
	// Category is the coarse device category.
	Category Category

	// AppName is the detected client application or browser name, or
	// "Unknown" when nothing matched.
	AppName string

	// IsBot reports whether the client is a crawler.
	IsBot bool

	// IsBrowser reports whether the client is a conventional desktop
	// browser that should receive the status page.
	IsBrowser bool

	// IsIPTV reports whether a named IPTV player application (or the
	// okhttp heuristic) matched.
	IsIPTV bool

	// IsStreamingCapable reports whether the client can consume proxied
	// media directly. Only streaming-capable clients are ever forwarded
	// to an origin.
	IsStreamingCapable bool
}

// Config controls the tunable parts of classification.
type Config struct {
	// OkHTTPStrictBrowserCheck controls the okhttp/3.x rule. The okhttp
	// token is emitted by different host platforms across versions, so
	// version is the only available signal; this is a heuristic, not a
	// protocol guarantee. When true, a 3.x UA that also carries a
	// browser engine token is NOT reclassified as a mobile player app.
	OkHTTPStrictBrowserCheck bool `yaml:"okhttp_strict_browser_check"`

	// ExtraBotSignatures extends the built-in bot list.
	ExtraBotSignatures []string `yaml:"extra_bot_signatures"`

	// ExtraSmartTVSignatures extends the built-in device list, so new
	// firmware can be recognized without a rebuild.
	ExtraSmartTVSignatures []string `yaml:"extra_smarttv_signatures"`
}

// Classifier assigns device categories to User-Agent strings. It is pure
// and safe for concurrent use; all state is immutable after construction.
type Classifier struct {
	cfg     Config
	bots    []string
	smartTV []string
}

// New creates a Classifier with the built-in signature lists plus any
// configured extras.
func New(cfg Config) *Classifier {
	c := &Classifier{cfg: cfg}
	c.bots = append(c.bots, botSignatures...)
	for _, s := range cfg.ExtraBotSignatures {
		c.bots = append(c.bots, strings.ToLower(s))
	}
	c.smartTV = append(c.smartTV, smartTVSignatures...)
	for _, s := range cfg.ExtraSmartTVSignatures {
		c.smartTV = append(c.smartTV, strings.ToLower(s))
	}
	return c
}

// Classify evaluates the signature cascade top to bottom and stops at the
// first match. Precedence: bots, smart-TV devices, IPTV applications, the
// okhttp version heuristic, browsers, then the Desktop fallback.
func (c *Classifier) Classify(userAgent string) ClientInfo {
	if userAgent == "" {
		return ClientInfo{Category: CategoryDesktop, AppName: "Unknown"}
	}
	ua := strings.ToLower(userAgent)

	// 1. Bots short-circuit everything.
	for _, sig := range c.bots {
		if strings.Contains(ua, sig) {
			return ClientInfo{Category: CategoryBot, AppName: "Bot", IsBot: true}
		}
	}

	// 2. Smart-TV / streaming-device firmware. Matched before browsers
	// because TV firmware often embeds a browser engine token.
	for _, sig := range c.smartTV {
		if strings.Contains(ua, sig) {
			info := ClientInfo{
				Category:           CategorySmartTV,
				AppName:            "SmartTV App",
				IsStreamingCapable: true,
			}
			if app, ok := matchIPTVApp(ua); ok {
				info.AppName = app
				info.IsIPTV = true
			}
			return info
		}
	}

	// 3. Named IPTV client applications. Treated as streaming-capable
	// equivalently to TV firmware.
	if app, ok := matchIPTVApp(ua); ok {
		return ClientInfo{
			Category:           CategorySmartTV,
			AppName:            app,
			IsIPTV:             true,
			IsStreamingCapable: true,
		}
	}

	// 4. okhttp version heuristic.
	if strings.Contains(ua, "okhttp") {
		if info, ok := c.classifyOkHTTP(ua); ok {
			return info
		}
	}

	// 5. Conventional browsers, split by form factor.
	for _, b := range browserSignatures {
		if strings.Contains(ua, b.token) {
			switch {
			case containsAny(ua, tabletFormFactorTokens):
				return ClientInfo{Category: CategoryTablet, AppName: b.name}
			case containsAny(ua, mobileFormFactorTokens):
				return ClientInfo{Category: CategoryMobile, AppName: b.name}
			default:
				return ClientInfo{Category: CategoryDesktop, AppName: b.name, IsBrowser: true}
			}
		}
	}

	// 6. Unknown clients get the status page, not raw proxying.
	return ClientInfo{Category: CategoryDesktop, AppName: "Unknown"}
}

// classifyOkHTTP disambiguates the okhttp client library token by major
// version: 4.x and 5.x are embedded streaming-device clients, 3.x is a
// phone-hosted player app. Anything else falls through the cascade.
func (c *Classifier) classifyOkHTTP(ua string) (ClientInfo, bool) {
	appName := "OkHttp IPTV App"
	if strings.Contains(ua, "android") {
		appName = "Android IPTV App"
	}

	if strings.Contains(ua, "okhttp/5.") || strings.Contains(ua, "okhttp/4.") {
		return ClientInfo{
			Category:           CategorySmartTV,
			AppName:            appName,
			IsIPTV:             true,
			IsStreamingCapable: true,
		}, true
	}

	if strings.Contains(ua, "okhttp/3.") {
		if c.cfg.OkHTTPStrictBrowserCheck && containsAny(ua, browserEngineTokens) {
			return ClientInfo{}, false
		}
		return ClientInfo{
			Category:           CategoryMobile,
			AppName:            appName,
			IsIPTV:             true,
			IsStreamingCapable: true,
		}, true
	}

	return ClientInfo{}, false
}

func matchIPTVApp(ua string) (string, bool) {
	for _, app := range iptvAppSignatures {
		for _, p := range app.patterns {
			if strings.Contains(ua, p) {
				return app.name, true
			}
		}
	}
	return "", false
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

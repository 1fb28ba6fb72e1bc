package classify

// botSignatures identifies search engine and social preview crawlers.
// A bot match short-circuits classification: bots never trigger proxying
// and never produce billing-relevant analytics.
var botSignatures = []string{
	"googlebot", "bingbot", "slurp", "duckduckbot", "baiduspider",
	"yandexbot", "facebookexternalhit", "twitterbot", "linkedinbot",
	"whatsapp", "telegrambot", "applebot", "crawler", "spider",
}

// smartTVSignatures identifies TV operating systems, streaming boxes,
// game consoles and set-top-box firmware observed in the client
// population.
var smartTVSignatures = []string{
	"tizen", "webos", "bravia", "panasonic", "philips",
	"androidtv", "android tv", "googletv", "google tv",
	"roku", "appletv", "apple tv", "tvos", "firetv", "fire tv",
	"chromecast", "mi box", "mibox", "nvidia shield", "shield tv",
	"xbox", "playstation", "ps4", "ps5", "nintendo",
	"mag250", "mag254", "mag256", "mag322", "mag324", "mag349", "mag351",
	"dreambox", "enigma2", "formuler", "buzztv", "avov", "infomir",
	"amino", "kaon",
}

// appSignature maps a set of User-Agent substrings to a named IPTV client
// application.
type appSignature struct {
	patterns []string
	name     string
}

// iptvAppSignatures identifies named IPTV player applications. Order
// matters: more specific entries come before generic ones so that, for
// example, "iptv smarters" is attributed before a bare "smart iptv"
// token could match.
var iptvAppSignatures = []appSignature{
	{patterns: []string{"vlc/", "libvlc", "videolan", "vlc media player"}, name: "VLC Media Player"},
	{patterns: []string{"kodi/", "xbmc", "matrix", "leia", "nexus"}, name: "Kodi"},
	{patterns: []string{"perfect player", "perfect"}, name: "Perfect Player"},
	{patterns: []string{"tivimate", "tivi"}, name: "TiviMate"},
	{patterns: []string{"iptv smarters", "smarters"}, name: "IPTV Smarters Pro"},
	{patterns: []string{"gse smart iptv", "gse"}, name: "GSE Smart IPTV"},
	{patterns: []string{"lazy iptv"}, name: "Lazy IPTV"},
	{patterns: []string{"iptv extreme"}, name: "IPTV Extreme"},
	{patterns: []string{"ottplayer", "ott player", "ottnavigator"}, name: "OTT Player"},
	{patterns: []string{"smartiptv", "smart iptv"}, name: "Smart IPTV"},
	{patterns: []string{"ss iptv"}, name: "SS IPTV"},
	{patterns: []string{"iptv pro"}, name: "IPTV Pro"},
	{patterns: []string{"duplex iptv"}, name: "Duplex IPTV"},
	{patterns: []string{"net iptv"}, name: "Net IPTV"},
	{patterns: []string{"ibo player"}, name: "IBO Player"},
	{patterns: []string{"televizo"}, name: "Televizo"},
	{patterns: []string{"xciptv"}, name: "XCIPTV"},
	{patterns: []string{"implayer"}, name: "ImPlayer"},
	{patterns: []string{"stbemu", "stb emulator"}, name: "STB Emulator"},
	{patterns: []string{"mytvonline"}, name: "MyTVOnline"},
	{patterns: []string{"nanomid"}, name: "Nanomid"},
	{patterns: []string{"lavf"}, name: "LAVF Player"},
	{patterns: []string{"maxplayer"}, name: "MaxPlayer"},
}

// browserSignature maps a User-Agent token to a display name for a
// conventional browser product.
type browserSignature struct {
	token string
	name  string
}

// browserSignatures identifies desktop and mobile browsers. Checked after
// every streaming-device rule, so a TV firmware UA that also carries a
// browser engine token still classifies as a TV.
var browserSignatures = []browserSignature{
	{token: "edg/", name: "Edge"},
	{token: "edge", name: "Edge"},
	{token: "opr/", name: "Opera"},
	{token: "opera", name: "Opera"},
	{token: "chrome", name: "Chrome"},
	{token: "firefox", name: "Firefox"},
	{token: "safari", name: "Safari"},
	{token: "msie", name: "Internet Explorer"},
	{token: "trident", name: "Internet Explorer"},
}

// browserEngineTokens are the tokens consulted by the strict okhttp 3.x
// rule: if any of these appear alongside okhttp/3 the UA is left on the
// browser path instead of being reclassified as a mobile IPTV app.
var browserEngineTokens = []string{
	"chrome", "safari", "firefox", "edge", "webkit", "mozilla",
}

// mobileFormFactorTokens indicate a phone form factor.
var mobileFormFactorTokens = []string{
	"mobile", "android", "iphone", "ipod", "blackberry", "iemobile", "opera mini",
}

// tabletFormFactorTokens indicate a tablet form factor.
var tabletFormFactorTokens = []string{
	"tablet", "ipad",
}

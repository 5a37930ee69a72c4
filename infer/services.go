package infer

// knownServices is the fixed table of service names matched as
// case-insensitive substrings of message text. Order matters only for
// ambiguous overlaps (longer, more specific names first).
var knownServices = []string{
	"google voice",
	"google",
	"gmail",
	"youtube",
	"microsoft",
	"outlook",
	"office 365",
	"apple",
	"icloud",
	"amazon",
	"aws",
	"facebook",
	"instagram",
	"whatsapp",
	"messenger",
	"twitter",
	"linkedin",
	"snapchat",
	"tiktok",
	"discord",
	"telegram",
	"signal",
	"slack",
	"zoom",
	"dropbox",
	"github",
	"gitlab",
	"paypal",
	"venmo",
	"zelle",
	"cash app",
	"stripe",
	"square",
	"coinbase",
	"binance",
	"kraken",
	"robinhood",
	"chase",
	"wells fargo",
	"bank of america",
	"citibank",
	"citi",
	"capital one",
	"us bank",
	"usaa",
	"schwab",
	"fidelity",
	"vanguard",
	"american express",
	"amex",
	"discover",
	"netflix",
	"hulu",
	"spotify",
	"uber",
	"lyft",
	"doordash",
	"grubhub",
	"instacart",
	"airbnb",
	"ebay",
	"etsy",
	"shopify",
	"walmart",
	"target",
	"costco",
	"steam",
	"epic games",
	"playstation",
	"xbox",
	"nintendo",
}

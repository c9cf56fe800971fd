package account

import "github.com/shopspring/decimal"

// Supported wallet currencies.
const (
	CurrencyUSD = "USD"
	CurrencyCNY = "CNY"
	CurrencyKRW = "KRW"
	CurrencyJPY = "JPY"
	CurrencyTHB = "THB"
)

// Supported player languages, keyed by their normalized form.
var Languages = map[string]string{
	"en_US": "en_US",
	"zh_CN": "zh_CN",
	"zh_TW": "zh_TW",
	"ko_KR": "ko_KR",
	"ja_JP": "ja_JP",
	"th_TH": "th-TH",
}

// DefaultLanguage is used when negotiation finds nothing usable.
const DefaultLanguage = "en_US"

// DefaultCurrencyBalance is the seed balance per currency, scaled to keep
// purchasing power roughly comparable.
var DefaultCurrencyBalance = map[string]decimal.Decimal{
	CurrencyUSD: decimal.NewFromInt(50000),
	CurrencyCNY: decimal.NewFromInt(500000),
	CurrencyKRW: decimal.NewFromInt(50000000),
	CurrencyJPY: decimal.NewFromInt(5000000),
	CurrencyTHB: decimal.NewFromInt(1500000),
}

const (
	// DefaultPassword is assigned to seeded demo players.
	DefaultPassword = "casino"
	// DefaultEmailDomain forms seeded player usernames.
	DefaultEmailDomain = "example.com"
)

// guestNames feeds random display names for guest users.
var guestNames = []string{
	"Ace", "Bella", "Casey", "Dana", "Eddie", "Felix", "Gina", "Harper",
	"Iris", "Jack", "Kara", "Leo", "Mona", "Nico", "Olive", "Percy",
	"Quinn", "Ruby", "Sam", "Tess", "Uma", "Vince", "Wren", "Yuri", "Zane",
}

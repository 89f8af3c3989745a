package cexapply

// Compliance lists what an exchange requires before listing.
type Compliance struct {
	KYCRequired        bool   `json:"kyc_required"`
	LegalOpinion       bool   `json:"legal_opinion"`
	SecurityAudit      bool   `json:"security_audit"`
	JurisdictionNotes  string `json:"jurisdiction_notes"`
	TravelRuleRequired bool   `json:"travel_rule_required"`
}

// Requirements are the market requirements an exchange sets.
type Requirements struct {
	MarketMaker       bool  `json:"market_maker"`
	MinLiquidityUSD   int64 `json:"min_liquidity_usd"`
	MinDailyVolumeUSD int64 `json:"min_daily_volume_usd"`
	MinHolders        int   `json:"min_holders"`
}

// Exchange is a centralized exchange the token applies to.
type Exchange struct {
	Key           string       `json:"key"`
	Name          string       `json:"name"`
	Tier          string       `json:"tier"`
	ListingFeeUSD int64        `json:"listing_fee_usd"`
	Requirements  Requirements `json:"requirements"`
	Compliance    Compliance   `json:"compliance"`
	Documents     []string     `json:"documents"`
	ReviewWeeks   int          `json:"review_weeks"`
	ListingWeeks  int          `json:"listing_weeks"`
	SubmissionURL string       `json:"submission_url"`
}

var baseDocuments = []string{
	"Whitepaper",
	"Tokenomics and vesting schedule",
	"Smart contract audit report",
	"Team KYC",
}

// Exchanges returns the catalog in application order.
func Exchanges() []Exchange {
	return []Exchange{
		{
			Key:           "binance",
			Name:          "Binance",
			Tier:          "tier-1",
			ListingFeeUSD: 250000,
			Requirements: Requirements{
				MarketMaker:       true,
				MinLiquidityUSD:   1000000,
				MinDailyVolumeUSD: 5000000,
				MinHolders:        50000,
			},
			Compliance: Compliance{
				KYCRequired:        true,
				LegalOpinion:       true,
				SecurityAudit:      true,
				JurisdictionNotes:  "Not a security under Cayman, Singapore and EU (MiCA) frameworks",
				TravelRuleRequired: true,
			},
			Documents:     withBase("Legal opinion letter", "Market maker agreement", "Community metrics report"),
			ReviewWeeks:   8,
			ListingWeeks:  4,
			SubmissionURL: "https://www.binance.com/en/my/coin-apply",
		},
		{
			Key:           "coinbase",
			Name:          "Coinbase",
			Tier:          "tier-1",
			ListingFeeUSD: 0,
			Requirements: Requirements{
				MarketMaker:       true,
				MinLiquidityUSD:   500000,
				MinDailyVolumeUSD: 1000000,
				MinHolders:        20000,
			},
			Compliance: Compliance{
				KYCRequired:        true,
				LegalOpinion:       true,
				SecurityAudit:      true,
				JurisdictionNotes:  "Howey analysis by US counsel required",
				TravelRuleRequired: true,
			},
			Documents:     withBase("Howey test legal memo", "Asset listing questionnaire"),
			ReviewWeeks:   12,
			ListingWeeks:  4,
			SubmissionURL: "https://www.coinbase.com/asset-hub",
		},
		{
			Key:           "kucoin",
			Name:          "KuCoin",
			Tier:          "tier-2",
			ListingFeeUSD: 100000,
			Requirements: Requirements{
				MarketMaker:       true,
				MinLiquidityUSD:   250000,
				MinDailyVolumeUSD: 500000,
				MinHolders:        10000,
			},
			Compliance: Compliance{
				KYCRequired:       true,
				SecurityAudit:     true,
				JurisdictionNotes: "Seychelles entity; US persons excluded",
			},
			Documents:     withBase("Project introduction deck"),
			ReviewWeeks:   4,
			ListingWeeks:  2,
			SubmissionURL: "https://www.kucoin.com/land/token-listing",
		},
		{
			Key:           "gateio",
			Name:          "Gate.io",
			Tier:          "tier-2",
			ListingFeeUSD: 50000,
			Requirements: Requirements{
				MinLiquidityUSD:   100000,
				MinDailyVolumeUSD: 250000,
				MinHolders:        5000,
			},
			Compliance: Compliance{
				KYCRequired:       true,
				SecurityAudit:     true,
				JurisdictionNotes: "Standard listing terms",
			},
			Documents:     withBase("Listing application form"),
			ReviewWeeks:   3,
			ListingWeeks:  2,
			SubmissionURL: "https://www.gate.io/listing",
		},
		{
			Key:           "okx",
			Name:          "OKX",
			Tier:          "tier-1",
			ListingFeeUSD: 150000,
			Requirements: Requirements{
				MarketMaker:       true,
				MinLiquidityUSD:   500000,
				MinDailyVolumeUSD: 2000000,
				MinHolders:        25000,
			},
			Compliance: Compliance{
				KYCRequired:        true,
				LegalOpinion:       true,
				SecurityAudit:      true,
				JurisdictionNotes:  "Seychelles and Dubai VARA review",
				TravelRuleRequired: true,
			},
			Documents:     withBase("Legal opinion letter", "Market maker agreement"),
			ReviewWeeks:   6,
			ListingWeeks:  3,
			SubmissionURL: "https://www.okx.com/listing-application",
		},
	}
}

// ExchangeByKey looks up an exchange by key.
func ExchangeByKey(key string) (Exchange, bool) {
	for _, e := range Exchanges() {
		if e.Key == key {
			return e, true
		}
	}
	return Exchange{}, false
}

// ExchangeKeys returns the catalog keys in order.
func ExchangeKeys() []string {
	list := Exchanges()
	keys := make([]string, 0, len(list))
	for _, e := range list {
		keys = append(keys, e.Key)
	}
	return keys
}

func withBase(extra ...string) []string {
	out := make([]string, 0, len(baseDocuments)+len(extra))
	out = append(out, baseDocuments...)
	return append(out, extra...)
}

package bridge

// Bridge describes a supported cross-chain bridge.
type Bridge struct {
	Key             string   `json:"key"`
	Name            string   `json:"name"`
	Kind            string   `json:"kind"`
	DefaultSource   string   `json:"default_source"`
	DefaultTarget   string   `json:"default_target"`
	Chains          []string `json:"chains"`
	FeeBps          int64    `json:"fee_bps"`
	MinTransfer     string   `json:"min_transfer"`
	MaxTransfer     string   `json:"max_transfer"`
	FinalityMinutes int      `json:"finality_minutes"`
}

// Bridges returns the supported bridges.
func Bridges() []Bridge {
	return []Bridge{
		{
			Key:             "polygon",
			Name:            "Polygon PoS Bridge",
			Kind:            "canonical",
			DefaultSource:   "ethereum",
			DefaultTarget:   "polygon",
			Chains:          []string{"ethereum", "polygon"},
			FeeBps:          0,
			MinTransfer:     "1",
			MaxTransfer:     "10000000",
			FinalityMinutes: 30,
		},
		{
			Key:             "arbitrum",
			Name:            "Arbitrum Bridge",
			Kind:            "canonical",
			DefaultSource:   "ethereum",
			DefaultTarget:   "arbitrum",
			Chains:          []string{"ethereum", "arbitrum"},
			FeeBps:          0,
			MinTransfer:     "1",
			MaxTransfer:     "10000000",
			FinalityMinutes: 15,
		},
		{
			Key:             "optimism",
			Name:            "Optimism Standard Bridge",
			Kind:            "canonical",
			DefaultSource:   "ethereum",
			DefaultTarget:   "optimism",
			Chains:          []string{"ethereum", "optimism"},
			FeeBps:          0,
			MinTransfer:     "1",
			MaxTransfer:     "10000000",
			FinalityMinutes: 20,
		},
		{
			Key:             "layerzero",
			Name:            "LayerZero OFT",
			Kind:            "messaging",
			DefaultSource:   "polygon",
			DefaultTarget:   "base",
			Chains:          []string{"ethereum", "polygon", "base", "arbitrum", "optimism"},
			FeeBps:          10,
			MinTransfer:     "1",
			MaxTransfer:     "5000000",
			FinalityMinutes: 3,
		},
		{
			Key:             "wormhole",
			Name:            "Wormhole Token Bridge",
			Kind:            "guardian",
			DefaultSource:   "ethereum",
			DefaultTarget:   "base",
			Chains:          []string{"ethereum", "polygon", "base", "arbitrum", "optimism"},
			FeeBps:          5,
			MinTransfer:     "1",
			MaxTransfer:     "2500000",
			FinalityMinutes: 15,
		},
	}
}

// Lookup returns the bridge with key.
func Lookup(key string) (Bridge, bool) {
	for _, b := range Bridges() {
		if b.Key == key {
			return b, true
		}
	}
	return Bridge{}, false
}

// Keys returns the supported bridge keys in order.
func Keys() []string {
	list := Bridges()
	out := make([]string, 0, len(list))
	for _, b := range list {
		out = append(out, b.Key)
	}
	return out
}

// SupportsChain reports whether the bridge connects chain.
func (b Bridge) SupportsChain(chain string) bool {
	for _, c := range b.Chains {
		if c == chain {
			return true
		}
	}
	return false
}

// Package catalog serves the read-only presentation data of the platform:
// subscription tiers, the leaderboard, the capsule feed and onboarding
// levels.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed data/catalog.yaml
var catalogYAML []byte

// Tier is a subscription tier. CapsuleQuota -1 means unlimited.
type Tier struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	PriceUSD     float64  `yaml:"price_usd" json:"price_usd"`
	GTTMonthly   int64    `yaml:"gtt_monthly" json:"gtt_monthly"`
	CapsuleQuota int      `yaml:"capsule_quota" json:"capsule_quota"`
	Benefits     []string `yaml:"benefits" json:"benefits"`
	Popular      bool     `yaml:"popular" json:"popular"`
}

// Contributor is a raw leaderboard row.
type Contributor struct {
	UserID        string `yaml:"user_id" json:"user_id"`
	DisplayName   string `yaml:"display_name" json:"display_name"`
	GTTEarned     int64  `yaml:"gtt_earned" json:"gtt_earned"`
	Capsules      int64  `yaml:"capsules" json:"capsules"`
	Verifications int64  `yaml:"verifications" json:"verifications"`
}

// LeaderboardEntry is a ranked contributor.
type LeaderboardEntry struct {
	Rank int `json:"rank"`
	Contributor
	Score int64 `json:"score"`
}

// Capsule is a truth capsule in the feed.
type Capsule struct {
	ID        string    `yaml:"id" json:"id"`
	Title     string    `yaml:"title" json:"title"`
	Author    string    `yaml:"author" json:"author"`
	Category  string    `yaml:"category" json:"category"`
	Verified  bool      `yaml:"verified" json:"verified"`
	GTTReward int64     `yaml:"gtt_reward" json:"gtt_reward"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// Level is an onboarding level reached at MinXP.
type Level struct {
	Level int    `yaml:"level" json:"level"`
	Title string `yaml:"title" json:"title"`
	MinXP int64  `yaml:"min_xp" json:"min_xp"`
}

// Progress is the onboarding progress for an XP total.
type Progress struct {
	XP          int64  `json:"xp"`
	Level       int    `json:"level"`
	Title       string `json:"title"`
	XPIntoLevel int64  `json:"xp_into_level"`
	XPToNext    int64  `json:"xp_to_next"`
	Percent     int    `json:"percent"`
	MaxLevel    bool   `json:"max_level"`
}

// Data is the decoded catalog.
type Data struct {
	Tiers       []Tier        `yaml:"tiers"`
	Leaderboard []Contributor `yaml:"leaderboard"`
	Capsules    []Capsule     `yaml:"capsules"`
	Levels      []Level       `yaml:"levels"`
}

// Load parses catalog YAML and validates it.
func Load(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(d.Tiers) == 0 {
		return nil, fmt.Errorf("catalog: no tiers")
	}
	sort.SliceStable(d.Levels, func(i, j int) bool { return d.Levels[i].MinXP < d.Levels[j].MinXP })
	if len(d.Levels) == 0 || d.Levels[0].MinXP != 0 {
		return nil, fmt.Errorf("catalog: levels must start at 0 xp")
	}
	sort.SliceStable(d.Capsules, func(i, j int) bool { return d.Capsules[i].CreatedAt.After(d.Capsules[j].CreatedAt) })
	return &d, nil
}

// Embedded returns the built-in catalog.
func Embedded() (*Data, error) {
	return Load(catalogYAML)
}

// Tier returns the tier with id.
func (d *Data) Tier(id string) (Tier, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, t := range d.Tiers {
		if t.ID == id {
			return t, true
		}
	}
	return Tier{}, false
}

// Score weights GTT earned, capsules and verifications.
func Score(c Contributor) int64 {
	return c.GTTEarned + 10*c.Capsules + 5*c.Verifications
}

// Rank orders contributors by score descending, then display name, and
// assigns competition ranks: tied scores share a rank and the next rank
// skips.
func Rank(rows []Contributor) []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(rows))
	for i, c := range rows {
		out[i] = LeaderboardEntry{Contributor: c, Score: Score(c)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out
}

// CapsulesByCategory filters the feed; an empty category returns all.
func (d *Data) CapsulesByCategory(category string) []Capsule {
	category = strings.ToLower(strings.TrimSpace(category))
	out := make([]Capsule, 0, len(d.Capsules))
	for _, c := range d.Capsules {
		if category == "" || c.Category == category {
			out = append(out, c)
		}
	}
	return out
}

// ProgressFor computes the onboarding level for xp.
func (d *Data) ProgressFor(xp int64) (Progress, error) {
	if xp < 0 {
		return Progress{}, fmt.Errorf("xp must not be negative")
	}
	idx := 0
	for i, l := range d.Levels {
		if xp >= l.MinXP {
			idx = i
		}
	}
	cur := d.Levels[idx]
	p := Progress{
		XP:          xp,
		Level:       cur.Level,
		Title:       cur.Title,
		XPIntoLevel: xp - cur.MinXP,
	}
	if idx == len(d.Levels)-1 {
		p.MaxLevel = true
		p.Percent = 100
		return p, nil
	}
	next := d.Levels[idx+1]
	span := next.MinXP - cur.MinXP
	p.XPToNext = next.MinXP - xp
	p.Percent = int(p.XPIntoLevel * 100 / span)
	return p, nil
}

// Package cexapply builds centralized exchange listing applications for the
// token and writes them, with a listing checklist, under cex-applications/.
package cexapply

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GuardianChain/launch_layer/internal/config"
	"github.com/GuardianChain/launch_layer/internal/deployment"
	"github.com/GuardianChain/launch_layer/internal/jsonstore"
	"github.com/GuardianChain/launch_layer/internal/logging"
	"github.com/GuardianChain/launch_layer/internal/metrics"
)

// Application statuses.
const (
	StatusPrepared  = "prepared"
	StatusSubmitted = "submitted"
)

// Output file names inside the applications collection.
const (
	ApplicationsFile = "applications.json"
	ChecklistFile    = "LISTING_CHECKLIST.md"
	ErrorLogFile     = "error-log.json"
)

var (
	ErrUnknownExchange = errors.New("unknown exchange")
	ErrInvalidContact  = errors.New("invalid contact email")
)

// TokenProfile describes the token in an application.
type TokenProfile struct {
	Name        string            `json:"name"`
	Symbol      string            `json:"symbol"`
	Decimals    int               `json:"decimals"`
	TotalSupply string            `json:"total_supply"`
	Contracts   map[string]string `json:"contracts"`
}

// Timeline is the expected review and listing schedule.
type Timeline struct {
	ReviewWeeks     int       `json:"review_weeks"`
	ListingWeeks    int       `json:"listing_weeks"`
	ExpectedListing time.Time `json:"expected_listing"`
}

// Application is one exchange listing application.
type Application struct {
	ID            string       `json:"id"`
	Exchange      string       `json:"exchange"`
	ExchangeName  string       `json:"exchange_name"`
	Tier          string       `json:"tier"`
	ListingFeeUSD int64        `json:"listing_fee_usd"`
	Requirements  Requirements `json:"requirements"`
	Compliance    Compliance   `json:"compliance"`
	Documents     []string     `json:"documents"`
	Timeline      Timeline     `json:"timeline"`
	SubmissionURL string       `json:"submission_url"`
	Token         TokenProfile `json:"token"`
	Contact       string       `json:"contact,omitempty"`
	Status        string       `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	SubmittedAt   *time.Time   `json:"submitted_at,omitempty"`
}

// Summary aggregates a set of applications.
type Summary struct {
	Count               int       `json:"count"`
	Exchanges           []string  `json:"exchanges"`
	TotalListingFeesUSD int64     `json:"total_listing_fees_usd"`
	EarliestListing     time.Time `json:"earliest_listing"`
	LatestListing       time.Time `json:"latest_listing"`
}

// Bundle is the content of applications.json.
type Bundle struct {
	GeneratedAt  time.Time     `json:"generated_at"`
	Summary      Summary       `json:"summary"`
	Applications []Application `json:"applications"`
}

// ErrorLog is written when WriteAll fails.
type ErrorLog struct {
	Error     string    `json:"error"`
	Stage     string    `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
}

// Builder builds and stores applications.
type Builder struct {
	launch   *config.LaunchConfig
	store    *jsonstore.Store
	registry *deployment.Registry
	metrics  *metrics.Metrics
	logger   *logging.Logger

	now   func() time.Time
	newID func() string
}

// Options configures a Builder. Registry, Metrics and Logger are optional.
type Options struct {
	Launch   *config.LaunchConfig
	Store    *jsonstore.Store
	Registry *deployment.Registry
	Metrics  *metrics.Metrics
	Logger   *logging.Logger
	Now      func() time.Time
}

// NewBuilder creates a builder.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("cexapply: store is required")
	}
	if opts.Launch == nil {
		opts.Launch = config.DefaultLaunchConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard("cexapply")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Builder{
		launch:   opts.Launch,
		store:    opts.Store,
		registry: opts.Registry,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      opts.Now,
		newID:    uuid.NewString,
	}, nil
}

// NormalizeKey maps user input such as "Gate.io" to a catalog key.
func NormalizeKey(exchange string) string {
	key := strings.ToLower(strings.TrimSpace(exchange))
	key = strings.ReplaceAll(key, ".", "")
	return strings.ReplaceAll(key, " ", "")
}

// Build builds the application for one exchange with status prepared.
func (b *Builder) Build(exchange string) (*Application, error) {
	ex, ok := ExchangeByKey(NormalizeKey(exchange))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExchange, exchange)
	}
	now := b.now().UTC()

	app := &Application{
		ID:            b.newID(),
		Exchange:      ex.Key,
		ExchangeName:  ex.Name,
		Tier:          ex.Tier,
		ListingFeeUSD: ex.ListingFeeUSD,
		Requirements:  ex.Requirements,
		Compliance:    ex.Compliance,
		Documents:     append([]string(nil), ex.Documents...),
		Timeline: Timeline{
			ReviewWeeks:     ex.ReviewWeeks,
			ListingWeeks:    ex.ListingWeeks,
			ExpectedListing: now.AddDate(0, 0, 7*(ex.ReviewWeeks+ex.ListingWeeks)),
		},
		SubmissionURL: ex.SubmissionURL,
		Token:         b.tokenProfile(),
		Status:        StatusPrepared,
		CreatedAt:     now,
	}
	return app, nil
}

// BuildAll builds every catalog application in order.
func (b *Builder) BuildAll(ctx context.Context) ([]Application, error) {
	keys := ExchangeKeys()
	apps := make([]Application, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		app, err := b.Build(key)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, nil
}

func (b *Builder) tokenProfile() TokenProfile {
	token := b.launch.Token
	profile := TokenProfile{
		Name:        token.Name,
		Symbol:      token.Symbol,
		Decimals:    token.Decimals,
		TotalSupply: token.InitialSupply,
		Contracts:   map[string]string{},
	}
	if b.registry != nil {
		profile.Contracts = b.registry.AddressBook(b.launch.NetworkNames())
	}
	return profile
}

// Summarize aggregates apps.
func Summarize(apps []Application) Summary {
	s := Summary{Count: len(apps), Exchanges: make([]string, 0, len(apps))}
	for i, app := range apps {
		s.Exchanges = append(s.Exchanges, app.Exchange)
		s.TotalListingFeesUSD += app.ListingFeeUSD
		at := app.Timeline.ExpectedListing
		if i == 0 || at.Before(s.EarliestListing) {
			s.EarliestListing = at
		}
		if i == 0 || at.After(s.LatestListing) {
			s.LatestListing = at
		}
	}
	return s
}

// =============================================================================
// Outputs
// =============================================================================

// WriteAll builds every application and writes applications.json and the
// listing checklist. On failure an error log is written next to them.
func (b *Builder) WriteAll(ctx context.Context) (*Bundle, error) {
	log := b.logger.WithContext(ctx)

	apps, err := b.BuildAll(ctx)
	if err != nil {
		return nil, b.fail(ctx, "build", err)
	}

	bundle := &Bundle{
		GeneratedAt:  b.now().UTC(),
		Summary:      Summarize(apps),
		Applications: apps,
	}
	if err := b.store.Put(jsonstore.CollectionApplications, strings.TrimSuffix(ApplicationsFile, ".json"), bundle); err != nil {
		return nil, b.fail(ctx, "write_applications", err)
	}
	if _, err := b.store.WriteFile(jsonstore.CollectionApplications, ChecklistFile, []byte(RenderChecklist(apps))); err != nil {
		return nil, b.fail(ctx, "write_checklist", err)
	}

	for _, app := range apps {
		b.recordMetric(app.Exchange, StatusPrepared)
	}
	log.WithFields(map[string]interface{}{
		"applications": bundle.Summary.Count,
		"total_fees":   bundle.Summary.TotalListingFeesUSD,
	}).Info("exchange applications written")
	return bundle, nil
}

func (b *Builder) fail(ctx context.Context, stage string, err error) error {
	entry := ErrorLog{Error: err.Error(), Stage: stage, Timestamp: b.now().UTC()}
	if werr := b.store.Put(jsonstore.CollectionApplications, strings.TrimSuffix(ErrorLogFile, ".json"), entry); werr != nil {
		b.logger.WithContext(ctx).WithError(werr).Error("write error log failed")
	}
	b.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
		"stage": stage,
	}).Error("exchange application generation failed")
	return fmt.Errorf("%s: %w", stage, err)
}

// Submit builds the application for exchange, marks it submitted and writes
// <exchange>.json.
func (b *Builder) Submit(ctx context.Context, exchange, contact string) (*Application, error) {
	app, err := b.Build(exchange)
	if err != nil {
		return nil, err
	}
	if contact != "" {
		addr, err := mail.ParseAddress(contact)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContact, err)
		}
		contact = addr.Address
	}

	submitted := b.now().UTC()
	app.Contact = contact
	app.Status = StatusSubmitted
	app.SubmittedAt = &submitted

	if err := b.store.Put(jsonstore.CollectionApplications, app.Exchange, app); err != nil {
		return nil, fmt.Errorf("save application: %w", err)
	}
	b.recordMetric(app.Exchange, StatusSubmitted)

	b.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"exchange": app.Exchange,
		"id":       app.ID,
	}).Info("exchange application submitted")
	return app, nil
}

// Stored returns the submitted application for exchange.
func (b *Builder) Stored(exchange string) (*Application, error) {
	var app Application
	if err := b.store.Get(jsonstore.CollectionApplications, NormalizeKey(exchange), &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// Statuses returns the stored status per catalog exchange; exchanges without
// a stored application are "not_submitted".
func (b *Builder) Statuses() map[string]string {
	out := make(map[string]string)
	for _, key := range ExchangeKeys() {
		out[key] = "not_submitted"
		if app, err := b.Stored(key); err == nil {
			out[key] = app.Status
		}
	}
	return out
}

func (b *Builder) recordMetric(exchange, status string) {
	if b.metrics != nil {
		b.metrics.RecordApplication(exchange, status)
	}
}

// RenderChecklist renders the Markdown listing checklist.
func RenderChecklist(apps []Application) string {
	var sb strings.Builder
	sb.WriteString("# Exchange Listing Checklist\n\n")

	for _, app := range apps {
		fmt.Fprintf(&sb, "## %s (%s)\n\n", app.ExchangeName, app.Tier)
		fmt.Fprintf(&sb, "- Listing fee: $%s\n", formatUSD(app.ListingFeeUSD))
		fmt.Fprintf(&sb, "- Expected listing: %s\n", app.Timeline.ExpectedListing.Format("2006-01-02"))
		fmt.Fprintf(&sb, "- Apply at: %s\n\n", app.SubmissionURL)

		sb.WriteString("### Documents\n\n")
		for _, doc := range app.Documents {
			fmt.Fprintf(&sb, "- [ ] %s\n", doc)
		}

		sb.WriteString("\n### Requirements\n\n")
		for _, req := range requirementLines(app) {
			fmt.Fprintf(&sb, "- [ ] %s\n", req)
		}
		sb.WriteString("\n")
	}

	sum := Summarize(apps)
	fmt.Fprintf(&sb, "**Total listing fees: $%s across %d exchanges**\n", formatUSD(sum.TotalListingFeesUSD), sum.Count)
	return sb.String()
}

func requirementLines(app Application) []string {
	var lines []string
	r := app.Requirements
	if r.MarketMaker {
		lines = append(lines, "Market maker engaged")
	}
	lines = append(lines,
		fmt.Sprintf("Liquidity of at least $%s", formatUSD(r.MinLiquidityUSD)),
		fmt.Sprintf("Daily volume of at least $%s", formatUSD(r.MinDailyVolumeUSD)),
		fmt.Sprintf("%d+ holders", r.MinHolders),
	)
	c := app.Compliance
	if c.KYCRequired {
		lines = append(lines, "Team KYC completed")
	}
	if c.LegalOpinion {
		lines = append(lines, "Legal opinion obtained")
	}
	if c.SecurityAudit {
		lines = append(lines, "Security audit published")
	}
	if c.TravelRuleRequired {
		lines = append(lines, "Travel rule compliance confirmed")
	}
	if c.JurisdictionNotes != "" {
		lines = append(lines, "Jurisdiction: "+c.JurisdictionNotes)
	}
	return lines
}

func formatUSD(v int64) string {
	if v < 0 {
		return "-" + formatUSD(-v)
	}
	s := strconv.FormatInt(v, 10)
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return string(out)
}

package launchcontrol

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GuardianChain/launch_layer/internal/cache"
	"github.com/GuardianChain/launch_layer/internal/chain"
	"github.com/GuardianChain/launch_layer/internal/config"
	"github.com/GuardianChain/launch_layer/internal/database"
	"github.com/GuardianChain/launch_layer/internal/deployment"
	svcerrors "github.com/GuardianChain/launch_layer/internal/errors"
	"github.com/GuardianChain/launch_layer/internal/jsonstore"
	"github.com/GuardianChain/launch_layer/services/bridge"
	"github.com/GuardianChain/launch_layer/services/cexapply"
)

// Network statuses in the launch status.
const (
	NetworkDeployed = "deployed"
	NetworkPending  = "pending"
)

// LiquidityScheduled is the status of a new liquidity plan.
const LiquidityScheduled = "scheduled"

const liquidityPrefix = "liquidity-"

// =============================================================================
// Types
// =============================================================================

// LiquidityRequest asks for a liquidity pool to be seeded.
type LiquidityRequest struct {
	Network      string `json:"network"`
	DEX          string `json:"dex"`
	TokenAmount  string `json:"token_amount"`
	PairedToken  string `json:"paired_token"`
	PairedAmount string `json:"paired_amount"`
}

// LiquidityPlan is a stored liquidity request.
type LiquidityPlan struct {
	ID           string    `json:"id"`
	Network      string    `json:"network"`
	DEX          string    `json:"dex"`
	TokenAddress string    `json:"token_address"`
	TokenAmount  string    `json:"token_amount"`
	PairedToken  string    `json:"paired_token"`
	PairedAmount string    `json:"paired_amount"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// NetworkStatus is one network in the launch status.
type NetworkStatus struct {
	Network    string             `json:"network"`
	ChainID    int64              `json:"chain_id"`
	Testnet    bool               `json:"testnet"`
	Status     string             `json:"status"`
	Deployment *deployment.Record `json:"deployment,omitempty"`
	Liquidity  *LiquidityPlan     `json:"liquidity,omitempty"`
}

// Milestones counts completed launch milestones.
type Milestones struct {
	NetworksDeployed   int `json:"networks_deployed"`
	NetworksTotal      int `json:"networks_total"`
	LiquidityAdded     int `json:"liquidity_added"`
	ExchangesSubmitted int `json:"exchanges_submitted"`
	ExchangesTotal     int `json:"exchanges_total"`
	BridgesConfigured  int `json:"bridges_configured"`
	BridgesTotal       int `json:"bridges_total"`
}

// Progress returns the completed share of milestones as 0-100. Each network
// counts twice: deployment and liquidity.
func (m Milestones) Progress() int {
	total := 2*m.NetworksTotal + m.ExchangesTotal + m.BridgesTotal
	if total == 0 {
		return 0
	}
	done := m.NetworksDeployed + m.LiquidityAdded + m.ExchangesSubmitted + m.BridgesConfigured
	return done * 100 / total
}

// LaunchStatus is the body of GET /launch-status.
type LaunchStatus struct {
	Token       config.TokenConfig `json:"token"`
	Networks    []NetworkStatus    `json:"networks"`
	Exchanges   map[string]string  `json:"exchanges"`
	Bridges     []bridge.Config    `json:"bridges"`
	Milestones  Milestones         `json:"milestones"`
	Progress    int                `json:"progress"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// =============================================================================
// Operations
// =============================================================================

// Status returns the launch status, cached for StatusCacheTTL.
func (s *Service) Status(ctx context.Context) (LaunchStatus, error) {
	return cache.GetOrLoad(ctx, s.cache, StatusCacheKey, StatusCacheTTL, s.buildStatus)
}

func (s *Service) buildStatus(ctx context.Context) (LaunchStatus, error) {
	st := LaunchStatus{
		Token:       s.launch.Token,
		Networks:    make([]NetworkStatus, 0, len(s.launch.Networks)),
		Exchanges:   s.apps.Statuses(),
		GeneratedAt: s.now().UTC(),
	}

	for _, n := range s.launch.Networks {
		ns := NetworkStatus{Network: n.Name, ChainID: n.ChainID, Testnet: n.Testnet, Status: NetworkPending}
		rec, err := s.registry.Get(n.Name)
		switch {
		case err == nil:
			ns.Status = NetworkDeployed
			ns.Deployment = rec
			st.Milestones.NetworksDeployed++
		case !errors.Is(err, deployment.ErrNotDeployed):
			return LaunchStatus{}, fmt.Errorf("read deployment %s: %w", n.Name, err)
		}
		if plan, err := s.liquidity(n.Name); err == nil {
			ns.Liquidity = plan
			st.Milestones.LiquidityAdded++
		}
		st.Networks = append(st.Networks, ns)
	}
	st.Milestones.NetworksTotal = len(s.launch.Networks)

	for _, status := range st.Exchanges {
		if status == cexapply.StatusSubmitted {
			st.Milestones.ExchangesSubmitted++
		}
	}
	st.Milestones.ExchangesTotal = len(st.Exchanges)

	configured, err := s.bridges.List(ctx)
	if err != nil {
		return LaunchStatus{}, fmt.Errorf("list bridges: %w", err)
	}
	st.Bridges = configured
	st.Milestones.BridgesConfigured = len(configured)
	st.Milestones.BridgesTotal = len(bridge.Keys())

	st.Progress = st.Milestones.Progress()
	return st, nil
}

func (s *Service) liquidity(network string) (*LiquidityPlan, error) {
	var plan LiquidityPlan
	if err := s.store.Get(jsonstore.CollectionDeployments, liquidityPrefix+network, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *Service) network(name string) (config.NetworkConfig, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return config.NetworkConfig{}, svcerrors.BadRequest("network is required")
	}
	n, ok := s.launch.Network(name)
	if !ok {
		return config.NetworkConfig{}, svcerrors.BadRequest(fmt.Sprintf("unknown network %q", name)).
			WithDetails("supported", s.launch.NetworkNames())
	}
	return n, nil
}

// DeployNetwork deploys the token to network and stores the record.
func (s *Service) DeployNetwork(ctx context.Context, name string) (*deployment.Record, error) {
	n, err := s.network(name)
	if err != nil {
		return nil, err
	}
	if !s.claim(n.Name) {
		return nil, svcerrors.Conflict(fmt.Sprintf("deployment to %s already in progress", n.Name))
	}
	defer s.release(n.Name)

	// Checked under the claim so a deployment finishing concurrently is seen.
	if s.registry.Exists(n.Name) {
		return nil, svcerrors.Conflict(fmt.Sprintf("token already deployed on %s", n.Name))
	}
	if s.deployer == nil {
		return nil, svcerrors.Unavailable("deployer not configured", nil)
	}

	log := s.logger.WithContext(ctx).WithField("network", n.Name)
	log.Info("deploying token")

	rec, err := s.deployer.Deploy(ctx, n)
	if err == nil {
		err = s.registry.Save(rec)
	}
	if err != nil {
		s.recordDeployment(ctx, n.Name, nil, err)
		log.WithError(err).Error("token deployment failed")
		return nil, err
	}
	s.recordDeployment(ctx, n.Name, rec, nil)
	s.invalidate(ctx)

	log.WithFields(map[string]interface{}{
		"address": rec.Address,
		"tx_hash": rec.TxHash,
	}).Info("token deployed")
	return rec, nil
}

func (s *Service) recordDeployment(ctx context.Context, network string, rec *deployment.Record, err error) {
	status := database.StatusSucceeded
	detail := map[string]interface{}{}
	if err != nil {
		status = database.StatusFailed
		detail["error"] = err.Error()
	} else {
		detail["address"] = rec.Address
		detail["tx_hash"] = rec.TxHash
	}
	if s.metrics != nil {
		s.metrics.RecordDeployment(network, status)
	}
	s.record(ctx, database.ActionDeployNetwork, network, status, detail)
}

// AddLiquidity stores a scheduled liquidity plan for a deployed network.
func (s *Service) AddLiquidity(ctx context.Context, req LiquidityRequest) (*LiquidityPlan, error) {
	n, err := s.network(req.Network)
	if err != nil {
		return nil, err
	}
	rec, err := s.registry.Get(n.Name)
	if err != nil {
		if errors.Is(err, deployment.ErrNotDeployed) {
			return nil, svcerrors.NotFound("deployment", n.Name)
		}
		return nil, err
	}

	if err := positiveAmount("token_amount", req.TokenAmount); err != nil {
		return nil, err
	}
	if err := positiveAmount("paired_amount", req.PairedAmount); err != nil {
		return nil, err
	}

	plan := &LiquidityPlan{
		ID:           uuid.NewString(),
		Network:      n.Name,
		DEX:          defaultString(strings.TrimSpace(req.DEX), defaultDEX(n.Name)),
		TokenAddress: rec.Address,
		TokenAmount:  strings.TrimSpace(req.TokenAmount),
		PairedToken:  defaultString(strings.ToUpper(strings.TrimSpace(req.PairedToken)), n.NativeSymbol),
		PairedAmount: strings.TrimSpace(req.PairedAmount),
		Status:       LiquidityScheduled,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Put(jsonstore.CollectionDeployments, liquidityPrefix+n.Name, plan); err != nil {
		return nil, fmt.Errorf("save liquidity plan: %w", err)
	}

	s.record(ctx, database.ActionAddLiquidity, n.Name, database.StatusScheduled, map[string]interface{}{
		"dex":           plan.DEX,
		"token_amount":  plan.TokenAmount,
		"paired_token":  plan.PairedToken,
		"paired_amount": plan.PairedAmount,
	})
	s.invalidate(ctx)
	return plan, nil
}

// SubmitApplication submits the exchange application.
func (s *Service) SubmitApplication(ctx context.Context, exchange, contact string) (*cexapply.Application, error) {
	app, err := s.apps.Submit(ctx, exchange, contact)
	if err != nil {
		if errors.Is(err, cexapply.ErrUnknownExchange) || errors.Is(err, cexapply.ErrInvalidContact) {
			return nil, svcerrors.BadRequest(err.Error()).WithDetails("supported", cexapply.ExchangeKeys())
		}
		return nil, err
	}
	s.record(ctx, database.ActionSubmitApplication, app.Exchange, database.StatusSucceeded, map[string]interface{}{
		"id":      app.ID,
		"contact": app.Contact,
	})
	s.invalidate(ctx)
	return app, nil
}

// ConfigureBridge configures a bridge.
func (s *Service) ConfigureBridge(ctx context.Context, req bridge.ConfigureRequest) (*bridge.Config, error) {
	cfg, err := s.bridges.Configure(ctx, req)
	if err != nil {
		if bridge.IsValidation(err) {
			return nil, svcerrors.BadRequest(err.Error())
		}
		s.record(ctx, database.ActionConfigureBridge, req.Bridge, database.StatusFailed, map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}
	s.record(ctx, database.ActionConfigureBridge, cfg.Bridge, database.StatusSucceeded, map[string]interface{}{
		"source": cfg.Source,
		"target": cfg.Target,
	})
	s.invalidate(ctx)
	return cfg, nil
}

// Deployment returns the stored record for network.
func (s *Service) Deployment(network string) (*deployment.Record, error) {
	rec, err := s.registry.Get(strings.ToLower(strings.TrimSpace(network)))
	if err != nil {
		if errors.Is(err, deployment.ErrNotDeployed) {
			return nil, svcerrors.NotFound("deployment", network)
		}
		return nil, err
	}
	return rec, nil
}

func positiveAmount(field, v string) error {
	amount, err := chain.ParseUnits(v, chain.EtherDecimals)
	if err != nil {
		return svcerrors.InvalidFormat(field, "positive decimal")
	}
	if amount.Sign() <= 0 {
		return svcerrors.BadRequest(field + " must be positive")
	}
	return nil
}

func defaultDEX(network string) string {
	switch network {
	case "polygon", "amoy":
		return "quickswap"
	case "base":
		return "aerodrome"
	default:
		return "uniswap-v3"
	}
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

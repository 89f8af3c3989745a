package launchcontrol

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/GuardianChain/launch_layer/internal/httputil"
	"github.com/GuardianChain/launch_layer/services/bridge"
)

// =============================================================================
// Request Types
// =============================================================================

type deployNetworkRequest struct {
	Network string `json:"network"`
}

type submitApplicationRequest struct {
	Exchange     string `json:"exchange"`
	ContactEmail string `json:"contact_email"`
}

type configureBridgeRequest struct {
	Bridge string `json:"bridge"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers the launch control routes on router. POST routes
// sit behind the configured auth middleware.
func (s *Service) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/launch-status", s.handleLaunchStatus).Methods(http.MethodGet)
	router.HandleFunc("/deployments/{network}", s.handleGetDeployment).Methods(http.MethodGet)
	router.HandleFunc("/bridges", s.handleListBridges).Methods(http.MethodGet)

	admin := router.NewRoute().Subrouter()
	if s.auth != nil {
		admin.Use(s.auth)
	}
	admin.HandleFunc("/deploy-network", s.handleDeployNetwork).Methods(http.MethodPost)
	admin.HandleFunc("/add-liquidity", s.handleAddLiquidity).Methods(http.MethodPost)
	admin.HandleFunc("/submit-exchange-application", s.handleSubmitApplication).Methods(http.MethodPost)
	admin.HandleFunc("/configure-bridge", s.handleConfigureBridge).Methods(http.MethodPost)
}

// =============================================================================
// HTTP Handlers
// =============================================================================

func (s *Service) handleLaunchStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.Status(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (s *Service) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Deployment(mux.Vars(r)["network"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (s *Service) handleListBridges(w http.ResponseWriter, r *http.Request) {
	configured, err := s.bridges.List(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"supported":  bridge.Bridges(),
		"configured": configured,
		"count":      len(configured),
	})
}

func (s *Service) handleDeployNetwork(w http.ResponseWriter, r *http.Request) {
	var req deployNetworkRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	rec, err := s.DeployNetwork(r.Context(), req.Network)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

func (s *Service) handleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	var req LiquidityRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	plan, err := s.AddLiquidity(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, plan)
}

func (s *Service) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	var req submitApplicationRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Exchange) == "" {
		httputil.BadRequest(w, "exchange is required")
		return
	}
	app, err := s.SubmitApplication(r.Context(), req.Exchange, req.ContactEmail)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, app)
}

func (s *Service) handleConfigureBridge(w http.ResponseWriter, r *http.Request) {
	var req configureBridgeRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Bridge) == "" {
		httputil.BadRequest(w, "bridge is required")
		return
	}
	cfg, err := s.ConfigureBridge(r.Context(), bridge.ConfigureRequest{
		Bridge: req.Bridge,
		Source: req.Source,
		Target: req.Target,
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

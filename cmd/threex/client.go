package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"pkt.systems/pslog"

	"threex/internal/commands"
	"threex/internal/config"
	"threex/internal/models"
	"threex/internal/orchestrator"
	"threex/internal/provider"
	"threex/internal/server"
	"threex/internal/slots"
)

// session is everything a client command needs to talk to a server.
type session struct {
	cfg          *config.Config
	orchestrator *orchestrator.Orchestrator
	catalog      []models.CatalogEntry
	close        func()
}

// connect builds a provider for cfg.Client. With local set it starts an
// in-process server on a loopback port instead of dialing the endpoint.
func connect(ctx context.Context, cfg *config.Config, local bool) (*session, error) {
	logger := pslog.Ctx(ctx)
	closeFn := func() {}
	endpoint := cfg.Client.Endpoint
	retry := models.RetryConfig{MaxAttempts: cfg.Retry.Attempts}
	retry.BaseDelay, retry.MaxDelay = cfg.RetryDelays()

	var catalog []models.CatalogEntry
	if local {
		registry := models.NewRegistry(cfg)
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			registry.StopAll()
			return nil, fmt.Errorf("start local server: %w", err)
		}
		serveCtx, cancel := context.WithCancel(ctx)
		srv := server.New(server.Config{}, registry)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := server.Serve(serveCtx, ln, srv.Handler()); err != nil {
				logger.Error("local server stopped", "err", err)
			}
		}()
		closeFn = func() {
			cancel()
			<-done
			registry.StopAll()
		}
		endpoint = "http://" + ln.Addr().String()
		catalog = registry.Catalog()
		logger.Debug("local server started", "endpoint", endpoint)
	} else {
		var err error
		catalog, err = fetchCatalog(ctx, endpoint)
		if err != nil {
			logger.Warn("model catalog unavailable", "endpoint", endpoint, "err", err)
		}
	}

	var p provider.Provider
	switch strings.ToLower(cfg.Client.Transport) {
	case "ws", "websocket":
		wsp, err := provider.NewWS(endpoint)
		if err != nil {
			closeFn()
			return nil, err
		}
		p = wsp
	default:
		p = provider.NewHTTP(endpoint, provider.WithClient(models.NewRetryableClient(retry)))
	}

	return &session{
		cfg:          cfg,
		orchestrator: orchestrator.New(p, cfg.ModelTimeout()),
		catalog:      catalog,
		close:        closeFn,
	}, nil
}

// fetchCatalog reads GET /api/models from a running server.
func fetchCatalog(ctx context.Context, endpoint string) ([]models.CatalogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(endpoint, "/")+"/api/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /api/models: %s", resp.Status)
	}

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Data    struct {
			Models []models.CatalogEntry `json:"models"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode model catalog: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("model catalog: %s", body.Error)
	}
	return body.Data.Models, nil
}

// boardSelections picks the slot layout: explicit model args win over the
// configured defaults. The bool reports whether the defaults were used.
func boardSelections(cfg *config.Config, args []string) ([]slots.Selection, bool, error) {
	if len(args) > 0 {
		sel, err := commands.ParseSelections(args)
		return sel, false, err
	}
	out := make([]slots.Selection, 0, len(cfg.Defaults.Selections))
	for _, s := range cfg.Defaults.Selections {
		out = append(out, slots.Selection{ModelID: s.Model, Count: s.Count})
	}
	return out, true, nil
}

func promptSettings(cfg *config.Config) (*float64, *int) {
	var temp *float64
	var maxTokens *int
	if cfg.Defaults.Temperature > 0 {
		t := cfg.Defaults.Temperature
		temp = &t
	}
	if cfg.Defaults.MaxTokens > 0 {
		n := cfg.Defaults.MaxTokens
		maxTokens = &n
	}
	return temp, maxTokens
}

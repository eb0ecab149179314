package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"wallet-swap/config"
	"wallet-swap/pkg/abandonseed"
	"wallet-swap/pkg/accounts"
	"wallet-swap/pkg/bridge"
	"wallet-swap/pkg/client"
	"wallet-swap/pkg/swap"
	"wallet-swap/pkg/types"
)

// app holds the components a command works with
type app struct {
	cfg      *config.Config
	registry *types.Registry
	accounts *accounts.Store
	seeds    *abandonseed.Provider
	bridges  *bridge.Registry
	pricing  *client.OneClickClient
	metrics  *prometheus.Registry

	evmClients []*ethclient.Client
}

// newApp wires the account store, the bridges and the 1Click client. With
// offline set, no RPC endpoint is dialed and balances come from the account
// file.
func newApp(cfg *config.Config, offline bool) (*app, error) {
	registry := types.DefaultRegistry()

	store, err := accounts.NewStore(cfg.AccountsFile, registry)
	if err != nil {
		return nil, err
	}

	seeds, err := abandonseed.New(registry, cfg.AbandonSeed)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		registry: registry,
		accounts: store,
		seeds:    seeds,
		bridges:  bridge.NewRegistry(seeds),
		metrics:  prometheus.NewRegistry(),
	}

	if err := a.registerBridges(offline); err != nil {
		a.Close()
		return nil, err
	}

	a.pricing = client.NewOneClickClient(client.Options{
		JWTToken:          cfg.JWTToken,
		BaseURL:           cfg.BaseURL,
		SlippageBps:       cfg.SlippageBps,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Seeds:             seeds,
		Logger:            logger,
	})

	return a, nil
}

func (a *app) registerBridges(offline bool) error {
	reserve, err := parseFeeReserve(a.registry, a.cfg.FeeReserve)
	if err != nil {
		return err
	}

	// the family-wide offline bridges serve every chain without an endpoint
	for _, family := range []string{types.FamilyBitcoin, types.FamilyEVM, types.FamilySolana} {
		a.bridges.Register(family, bridge.NewOfflineBridge(family, reserve))
	}
	if offline {
		return nil
	}

	for id, network := range a.cfg.EVMNetworks {
		if _, err := a.registry.Get(id); err != nil {
			return fmt.Errorf("evm_networks: %w", err)
		}
		ethClient, err := bridge.DialEVM(network.RPCUrl)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		a.evmClients = append(a.evmClients, ethClient)

		evm, err := bridge.NewEVMBridge(ethClient, bridge.EVMOptions{
			GasPrice: network.GasPrice,
			GasLimit: network.GasLimit,
		})
		if err != nil {
			return err
		}
		a.bridges.Register(id, evm)
	}

	if a.cfg.Solana.RPCUrl != "" {
		a.bridges.Register(types.FamilySolana,
			bridge.NewSolanaBridge(bridge.NewSolanaRPC(a.cfg.Solana.RPCUrl), a.cfg.Solana.Commitment))
	}

	return nil
}

// syncAccounts refreshes balances and persists them. Accounts that fail to
// sync keep their stored balance.
func (a *app) syncAccounts(ctx context.Context) ([]*types.Account, error) {
	synced, syncErr := a.bridges.SyncAll(ctx, a.accounts.List())
	if err := a.accounts.Replace(synced); err != nil {
		return nil, errors.Join(syncErr, err)
	}
	return synced, syncErr
}

// newSession opens a swap form over the given account snapshot
func (a *app) newSession(accountList []*types.Account, defaultCurrency *types.Currency, l *slog.Logger) (*swap.Session, error) {
	metrics, err := swap.NewMetrics(a.metrics)
	if err != nil {
		return nil, err
	}

	return swap.NewSession(swap.SessionConfig{
		Accounts:        accountList,
		Selectable:      a.registry.All(),
		InstalledApps:   a.cfg.InstalledApps,
		DefaultCurrency: defaultCurrency,
		RatesExpiration: a.cfg.RatesExpiration,
		Pricing:         a.pricing,
		Builder:         a.bridges,
		Estimator:       a.bridges,
		Logger:          l,
		Metrics:         metrics,
	})
}

// logMetrics writes the session counters at debug level
func (a *app) logMetrics(l *slog.Logger) {
	families, err := a.metrics.Gather()
	if err != nil {
		l.Debug("failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			attrs := []any{"metric", mf.GetName(), "value", m.GetCounter().GetValue()}
			for _, label := range m.GetLabel() {
				attrs = append(attrs, label.GetName(), label.GetValue())
			}
			l.Debug("session metric", attrs...)
		}
	}
}

// Close releases the RPC connections
func (a *app) Close() {
	for _, c := range a.evmClients {
		c.Close()
	}
	a.evmClients = nil
}

// parseFeeReserve reads display amounts keyed by chain currency id
func parseFeeReserve(registry *types.Registry, raw map[string]string) (map[string]decimal.Decimal, error) {
	reserve := make(map[string]decimal.Decimal, len(raw))
	for id, amount := range raw {
		c, err := registry.Get(id)
		if err != nil {
			return nil, fmt.Errorf("fee_reserve: %w", err)
		}
		if c.IsToken() {
			return nil, fmt.Errorf("fee_reserve: %s is a token, fees are paid by its chain", id)
		}
		value, err := types.ToSmallestUnit(c, amount)
		if err != nil {
			return nil, fmt.Errorf("fee_reserve %s: %w", id, err)
		}
		reserve[c.ID] = value
	}
	return reserve, nil
}

package fetcher

import (
	"fmt"

	"github.com/Adda-Baaj/bazaar-khobor/internal/config"
	"github.com/Adda-Baaj/bazaar-khobor/internal/logger"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/httpclient"
)

// FromConfig assembles the strategy chain in the configured order.
func FromConfig(cfg config.FetcherConfig, log logger.Logger) (*Chain, error) {
	client := httpclient.NewRestyClient(cfg.Timeout, httpclient.Options{MaxHeaderBytes: cfg.MaxHeaderBytes})

	names := cfg.Strategies
	if len(names) == 0 {
		names = []string{StrategyYahooAPI, StrategyHTTP, StrategyCurl}
	}

	strategies := make([]Strategy, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		switch name {
		case StrategyYahooAPI:
			strategies = append(strategies, NewYahooAPIStrategy(client, cfg.YahooAPIBase, cfg.UserAgent))
		case StrategyHTTP:
			strategies = append(strategies, NewHTTPStrategy(client, cfg.UserAgent))
		case StrategyCurl:
			strategies = append(strategies, NewCurlStrategy(cfg.CurlBinary, cfg.UserAgent, cfg.ScratchDir))
		default:
			return nil, fmt.Errorf("unknown fetch strategy %q", name)
		}
	}
	return NewChain(log, strategies...), nil
}

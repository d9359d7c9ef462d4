package services

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"dredd-service/internal/cache"
	"dredd-service/internal/config"
	"dredd-service/pkg/common"
)

const priceCacheTTL = 5 * time.Minute

// PriceService resolves the USD price of a chain's native token. Sources are
// tried in order: Redis cache, CoinGecko, CoinPaprika, configured fallback.
type PriceService struct {
	Chains    map[string]config.ChainConfig
	Transient *cache.Transient
}

func NewPriceService(chains map[string]config.ChainConfig, transient *cache.Transient) *PriceService {
	return &PriceService{Chains: chains, Transient: transient}
}

func (s *PriceService) GetUSDPrice(ctx context.Context, chain string) (float64, error) {
	cfg, ok := s.Chains[chain]
	if !ok {
		return 0, fmt.Errorf("unsupported chain: %s", chain)
	}

	cacheKey := "price:usd:" + chain
	if s.Transient != nil {
		if val, ok := s.Transient.Get(ctx, cacheKey); ok {
			if price, err := strconv.ParseFloat(val, 64); err == nil {
				return price, nil
			}
		}
	}

	price, err := s.fetchCoinGecko(ctx, cfg.CoinGeckoID)
	if err != nil {
		log.Printf("CoinGecko price fetch failed for %s: %v", chain, err)
		price, err = s.fetchCoinPaprika(ctx, cfg.CoinPaprikaID)
	}
	if err != nil {
		log.Printf("CoinPaprika price fetch failed for %s: %v", chain, err)
		if cfg.FallbackPrice <= 0 {
			return 0, fmt.Errorf("no price available for %s", chain)
		}
		return cfg.FallbackPrice, nil
	}

	if s.Transient != nil {
		if err := s.Transient.Set(ctx, cacheKey, strconv.FormatFloat(price, 'f', -1, 64), priceCacheTTL); err != nil {
			log.Printf("price cache write failed: %v", err)
		}
	}
	return price, nil
}

func (s *PriceService) fetchCoinGecko(ctx context.Context, id string) (float64, error) {
	if id == "" {
		return 0, fmt.Errorf("no coingecko id configured")
	}

	op := func() (float64, error) {
		url := fmt.Sprintf("https://api.coingecko.com/api/v3/simple/price?ids=%s&vs_currencies=usd", id)
		resp, err := common.Get(url, nil)
		if err != nil {
			return 0, err
		}

		respMap, ok := resp.(map[string]interface{})
		if !ok {
			return 0, backoff.Permanent(fmt.Errorf("unexpected coingecko response shape"))
		}
		coin, _ := respMap[id].(map[string]interface{})
		price, ok := coin["usd"].(float64)
		if !ok || price <= 0 {
			return 0, backoff.Permanent(fmt.Errorf("coingecko returned no usd price for %s", id))
		}
		return price, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
}

func (s *PriceService) fetchCoinPaprika(ctx context.Context, id string) (float64, error) {
	if id == "" {
		return 0, fmt.Errorf("no coinpaprika id configured")
	}

	op := func() (float64, error) {
		url := fmt.Sprintf("https://api.coinpaprika.com/v1/tickers/%s", id)
		resp, err := common.Get(url, nil)
		if err != nil {
			return 0, err
		}

		respMap, ok := resp.(map[string]interface{})
		if !ok {
			return 0, backoff.Permanent(fmt.Errorf("unexpected coinpaprika response shape"))
		}
		quotes, _ := respMap["quotes"].(map[string]interface{})
		usd, _ := quotes["USD"].(map[string]interface{})
		price, ok := usd["price"].(float64)
		if !ok || price <= 0 {
			return 0, backoff.Permanent(fmt.Errorf("coinpaprika returned no usd price for %s", id))
		}
		return price, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
}

var weiPerToken = new(big.Float).SetFloat64(1e18)

// ConvertUSDToWei converts a USD amount to native-token wei at the given
// USD price per token.
func ConvertUSDToWei(usd, price float64) (*big.Int, error) {
	if price <= 0 {
		return nil, fmt.Errorf("invalid token price: %f", price)
	}

	tokens := new(big.Float).Quo(big.NewFloat(usd), big.NewFloat(price))
	wei := new(big.Float).Mul(tokens, weiPerToken)

	out, _ := wei.Int(nil)
	return out, nil
}

// WithinTolerance reports whether actual is within the given fractional
// tolerance of expected. Payments drift from the quoted amount by gas and
// rounding, so verification allows 5%.
func WithinTolerance(actual, expected *big.Int, tolerance float64) bool {
	if expected.Sign() <= 0 {
		return false
	}

	diff := new(big.Int).Sub(actual, expected)
	diff.Abs(diff)

	ratio := new(big.Float).Quo(new(big.Float).SetInt(diff), new(big.Float).SetInt(expected))
	limit := big.NewFloat(tolerance)
	return ratio.Cmp(limit) <= 0
}

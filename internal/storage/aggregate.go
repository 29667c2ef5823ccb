package storage

import (
	"context"
	"fmt"
	"math"

	"pumpswap-indexer/internal/domain"
)

// LivePrice supplies an externally fetched USD price for the queried mint.
type LivePrice func(ctx context.Context) (float64, bool)

// AggregateOptions controls Aggregate.
type AggregateOptions struct {
	WantUSD bool
	Stables domain.StableSet
	// Live is consulted at most once per call, and only for windows that
	// contain no stable-quoted trade.
	Live LivePrice
}

// Aggregate computes per-window volumes for mint from durable storage.
func Aggregate(ctx context.Context, store TradeStore, mint string, now int64, opts AggregateOptions) (domain.Volumes, error) {
	stables := opts.Stables
	if stables == nil {
		stables = domain.DefaultStableSet()
	}

	sums, err := store.WindowSums(ctx, mint, now, stables)
	if err != nil {
		return nil, fmt.Errorf("window sums: %w", err)
	}

	var (
		live     float64
		haveLive bool
		looked   bool
	)

	vols := domain.NewVolumes()
	for _, s := range sums {
		wv := domain.WindowVolume{Token: s.Token}
		if opts.WantUSD {
			switch {
			case s.StableTrades > 0:
				wv.USD = s.StableUSD
			case opts.Live != nil:
				if !looked {
					looked = true
					live, haveLive = opts.Live(ctx)
				}
				if haveLive {
					wv.USD = s.Token * math.Abs(live)
				}
			}
		}
		vols[s.Label] = wv
	}
	return vols, nil
}

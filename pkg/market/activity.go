package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/mirrorlabs/copytrader/pkg/errors"
	"github.com/mirrorlabs/copytrader/pkg/fetcher"
	"github.com/mirrorlabs/copytrader/pkg/resilience"
	"github.com/mirrorlabs/copytrader/pkg/types"
)

const (
	dataAPIBreakerName = "data-api"
	dataAPIThreshold   = 5
	dataAPIRecovery    = 60 * time.Second

	defaultActivityLimit = 100
)

// DataClient reads leader activity and positions from the exchange's
// public data API through the retrying fetcher, behind a shared breaker.
type DataClient struct {
	host    string
	fetcher *fetcher.Client
	breaker *resilience.CircuitBreaker
}

func NewDataClient(host string, f *fetcher.Client, registry *resilience.Registry) *DataClient {
	return &DataClient{
		host:    host,
		fetcher: f,
		breaker: registry.GetBreaker(dataAPIBreakerName, dataAPIThreshold, dataAPIRecovery),
	}
}

// RecentTrades returns a leader's most recent fills, newest first, as the
// data API orders them.
func (c *DataClient) RecentTrades(ctx context.Context, leader string) ([]*types.Activity, error) {
	endpoint := fmt.Sprintf("%s/activity?user=%s&type=TRADE&limit=%d",
		c.host, url.QueryEscape(leader), defaultActivityLimit)

	var activities []*types.Activity
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		body, err := c.fetcher.Get(ctx, endpoint)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &activities); err != nil {
			return errors.NewAPIError("market", "RecentTrades", "failed to decode activity response", err,
				errors.WithMetadata("leader", leader))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The data API has no stable document id; derive one so the store can
	// dedupe fills across polls.
	for _, activity := range activities {
		if activity.ID == "" {
			activity.ID = fmt.Sprintf("%s_%s_%s", activity.TransactionHash, activity.Asset, activity.Side)
		}
	}
	return activities, nil
}

// PositionValue returns the USD value a holder has in one outcome token,
// zero when no position exists.
func (c *DataClient) PositionValue(ctx context.Context, holder, asset string) (float64, error) {
	endpoint := fmt.Sprintf("%s/positions?user=%s&asset=%s",
		c.host, url.QueryEscape(holder), url.QueryEscape(asset))

	var positions []types.Position
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		body, err := c.fetcher.Get(ctx, endpoint)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &positions); err != nil {
			return errors.NewAPIError("market", "PositionValue", "failed to decode positions response", err,
				errors.WithMetadata("holder", holder))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	var total float64
	for _, position := range positions {
		if position.Asset == asset {
			total += position.CurrentValue
		}
	}
	return total, nil
}

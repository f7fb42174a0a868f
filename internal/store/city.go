package store

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/airmap/internal/cache/keys"
	"github.com/mohammed-shakir/airmap/internal/cache/redisstore"
)

// City is one administrative district. Gu is the district name and Gun the
// enclosing city or county; either may be empty.
type City struct {
	Code int    `json:"code"`
	Sido string `json:"sido"`
	Gu   string `json:"gu"`
	Gun  string `json:"gun"`
}

// CityDirectory maps upstream city names to administrative codes.
type CityDirectory struct {
	rc *redisstore.Client
}

func NewCityDirectory(rc *redisstore.Client) *CityDirectory {
	return &CityDirectory{rc: rc}
}

func cityField(sido, name string) string { return sido + "|" + name }

// Load replaces both name indexes with cities.
func (d *CityDirectory) Load(ctx context.Context, cities []City) error {
	byGu := map[string][]int{}
	byGun := map[string][]int{}
	for _, c := range cities {
		if c.Gu != "" {
			f := cityField(c.Sido, c.Gu)
			byGu[f] = append(byGu[f], c.Code)
		}
		if c.Gun != "" {
			f := cityField(c.Sido, c.Gun)
			byGun[f] = append(byGun[f], c.Code)
		}
	}

	guKey, gunKey := keys.Blob("cities_gu"), keys.Blob("cities_gun")
	return d.rc.Tx(ctx, "city_load", func(p redis.Pipeliner) error {
		p.Del(ctx, guKey, gunKey)
		for f, codes := range byGu {
			b, err := json.Marshal(codes)
			if err != nil {
				return err
			}
			p.HSet(ctx, guKey, f, b)
		}
		for f, codes := range byGun {
			b, err := json.Marshal(codes)
			if err != nil {
				return err
			}
			p.HSet(ctx, gunKey, f, b)
		}
		return nil
	})
}

// Codes looks name up as a gu first, then as a gun.
func (d *CityDirectory) Codes(ctx context.Context, sido, name string) ([]int, error) {
	for _, k := range []string{keys.Blob("cities_gu"), keys.Blob("cities_gun")} {
		v, ok, err := d.rc.HGet(ctx, k, cityField(sido, name))
		if err != nil {
			return nil, fmt.Errorf("city lookup %s %s: %w", sido, name, err)
		}
		if !ok {
			continue
		}
		var codes []int
		if err := json.Unmarshal([]byte(v), &codes); err != nil {
			return nil, fmt.Errorf("city decode %s %s: %w", sido, name, err)
		}
		if len(codes) > 0 {
			return codes, nil
		}
	}
	return nil, fmt.Errorf("city %s %s: %w", sido, name, ErrNotFound)
}

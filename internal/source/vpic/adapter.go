// Package vpic adapts the NHTSA vPIC vehicle API to source.Source.
package vpic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/timmy/vehicle-catalog/internal/source"
)

const (
	SourceID = "vpic"

	opListMakes         = "GetAllMakes"
	opFetchVehicleTypes = "GetVehicleTypesForMakeId"
)

// Config holds configuration for the vPIC adapter.
type Config struct {
	BaseURL   string
	Timeout   time.Duration // per call
	RateLimit float64       // requests per second
	RateBurst int
	UserAgent string
}

// Adapter implements source.Source for vPIC.
type Adapter struct {
	client  *resty.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewAdapter creates a vPIC adapter. Zero values fall back to defaults.
func NewAdapter(cfg Config) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "vehicle-catalog/1.0"
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/"))
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetTimeout(cfg.Timeout)

	return &Adapter{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		timeout: cfg.Timeout,
	}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return SourceID
}

type envelope[T any] struct {
	Count   int    `json:"Count"`
	Message string `json:"Message"`
	Results []T    `json:"Results"`
}

type makeResult struct {
	MakeID   int64  `json:"Make_ID"`
	MakeName string `json:"Make_Name"`
}

type vehicleTypeResult struct {
	VehicleTypeID   int64  `json:"VehicleTypeId"`
	VehicleTypeName string `json:"VehicleTypeName"`
}

// ListMakes fetches every make the registry knows about.
func (a *Adapter) ListMakes(ctx context.Context) ([]source.MakeRecord, error) {
	var out envelope[makeResult]
	if err := a.get(ctx, opListMakes, "/GetAllMakes", nil, &out); err != nil {
		return nil, err
	}

	records := make([]source.MakeRecord, 0, len(out.Results))
	for _, r := range out.Results {
		records = append(records, source.MakeRecord{MakeID: r.MakeID, Name: r.MakeName})
	}
	return records, nil
}

// FetchVehicleTypes fetches the vehicle types registered for makeID.
func (a *Adapter) FetchVehicleTypes(ctx context.Context, makeID int64) ([]source.VehicleTypeRecord, error) {
	var out envelope[vehicleTypeResult]
	params := map[string]string{"makeId": strconv.FormatInt(makeID, 10)}
	if err := a.get(ctx, opFetchVehicleTypes, "/GetVehicleTypesForMakeId/{makeId}", params, &out); err != nil {
		return nil, err
	}

	records := make([]source.VehicleTypeRecord, 0, len(out.Results))
	for _, r := range out.Results {
		records = append(records, source.VehicleTypeRecord{TypeID: r.VehicleTypeID, Name: r.VehicleTypeName})
	}
	return records, nil
}

// get performs one rate-limited GET bounded by the per-call timeout and
// decodes the JSON body into out. Every failure is a *source.Error.
func (a *Adapter) get(ctx context.Context, op, path string, pathParams map[string]string, out interface{}) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return &source.Error{Op: op, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.R().
		SetContext(callCtx).
		SetPathParams(pathParams).
		SetQueryParam("format", "json").
		Get(path)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return &source.Error{Op: op, Err: err}
	}

	if resp.IsError() {
		return &source.Error{
			Op:         op,
			StatusCode: resp.StatusCode(),
			Err:        errors.New(truncate(resp.String(), 200)),
		}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &source.Error{Op: op, Err: fmt.Errorf("%w: %v", source.ErrMalformedPayload, err)}
	}
	return nil
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

package vehicledata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"myautowhiz-backend/internal/cache"
	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/internal/metrics"
)

// MaxBatchSize is the most VINs accepted by one batch decode.
const MaxBatchSize = 50

const (
	serviceDecode  = "vpic"
	serviceRecalls = "nhtsa_recalls"
)

// Decoder decodes a single VIN.
type Decoder interface {
	DecodeVin(ctx context.Context, raw string) (*Vehicle, error)
}

// Options configures a Client.
type Options struct {
	VPICBaseURL    string
	RecallsBaseURL string
	Timeout        time.Duration
	Cache          cache.Cache
	DecodeTTL      time.Duration
	RecallTTL      time.Duration
	HTTPClient     *http.Client
}

// Client talks to the NHTSA vPIC and recalls APIs. Failures are returned to the caller
// without retrying.
type Client struct {
	http        *http.Client
	vpicBase    string
	recallsBase string
	cache       cache.Cache
	decodeTTL   time.Duration
	recallTTL   time.Duration
	log         *logrus.Entry
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	c := opts.Cache
	if c == nil {
		c = cache.Noop{}
	}
	return &Client{
		http:        httpClient,
		vpicBase:    strings.TrimRight(opts.VPICBaseURL, "/"),
		recallsBase: strings.TrimRight(opts.RecallsBaseURL, "/"),
		cache:       c,
		decodeTTL:   opts.DecodeTTL,
		recallTTL:   opts.RecallTTL,
		log:         logrus.WithField("component", "vehicledata"),
	}
}

type vpicResponse struct {
	Count          int                 `json:"Count"`
	Message        string              `json:"Message"`
	SearchCriteria string              `json:"SearchCriteria"`
	Results        []map[string]string `json:"Results"`
}

type recallsResponse struct {
	Count   int                      `json:"Count"`
	Message string                   `json:"Message"`
	Results []map[string]interface{} `json:"results"`
}

// DecodeVin decodes a single VIN. Invalid input fails before any request is made.
func (c *Client) DecodeVin(ctx context.Context, raw string) (*Vehicle, error) {
	vin, err := ParseVIN(raw)
	if err != nil {
		return nil, err
	}

	return cache.GetOrLoad(ctx, c.cache, "decode:"+vin, c.decodeTTL, func(ctx context.Context) (*Vehicle, error) {
		endpoint := fmt.Sprintf("%s/DecodeVinValues/%s?format=json", c.vpicBase, url.PathEscape(vin))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, apperrors.Internal("build decode request", err)
		}

		var resp vpicResponse
		if err := c.do(req, serviceDecode, &resp); err != nil {
			return nil, err
		}
		if len(resp.Results) == 0 {
			return nil, apperrors.NotFound("Vehicle")
		}
		v := mapVehicle(resp.Results[0], vin)
		return &v, nil
	})
}

// BatchDecodeVins decodes up to MaxBatchSize VINs in one upstream call.
// Entries that fail validation are reported in Invalid rather than failing the batch.
func (c *Client) BatchDecodeVins(ctx context.Context, raws []string) (*BatchResult, error) {
	if len(raws) > MaxBatchSize {
		return nil, apperrors.Validation(fmt.Sprintf("a batch may contain at most %d VINs", MaxBatchSize))
	}

	result := &BatchResult{Invalid: []string{}, Vehicles: []Vehicle{}}
	var valid []string
	seen := make(map[string]bool)
	for _, raw := range raws {
		vin, err := ParseVIN(raw)
		if err != nil {
			result.Invalid = append(result.Invalid, raw)
			continue
		}
		if !seen[vin] {
			seen[vin] = true
			valid = append(valid, vin)
		}
	}
	if len(valid) == 0 {
		return nil, apperrors.Validation("no valid VINs provided")
	}

	form := url.Values{}
	form.Set("format", "json")
	form.Set("data", strings.Join(valid, ";"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.vpicBase+"/DecodeVINValuesBatch/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.Internal("build batch request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp vpicResponse
	if err := c.do(req, serviceDecode, &resp); err != nil {
		return nil, err
	}

	for _, row := range resp.Results {
		result.Vehicles = append(result.Vehicles, mapVehicle(row, row["VIN"]))
	}
	result.Count = len(result.Vehicles)
	return result, nil
}

// GetRecalls lists recalls for a vehicle. A VIN query is decoded first to learn make, model and year.
func (c *Client) GetRecalls(ctx context.Context, q RecallQuery) (*RecallResult, error) {
	var vin string
	if strings.TrimSpace(q.VIN) != "" {
		vehicle, err := c.DecodeVin(ctx, q.VIN)
		if err != nil {
			return nil, err
		}
		vin = vehicle.VIN
		q.Make = vehicle.Make
		q.Model = vehicle.Model
		q.Year = ""
		if vehicle.Year != nil {
			q.Year = strconv.Itoa(*vehicle.Year)
		}
		if q.Make == "" || q.Model == "" || q.Year == "" {
			return nil, apperrors.Validation("could not determine make, model and year from VIN")
		}
	}

	q.Make = strings.TrimSpace(q.Make)
	q.Model = strings.TrimSpace(q.Model)
	q.Year = strings.TrimSpace(q.Year)
	if q.Make == "" || q.Model == "" || q.Year == "" {
		return nil, apperrors.Validation("provide either vin or make, model and year")
	}
	if year, err := strconv.Atoi(q.Year); err != nil || year < 1900 || year > 2100 {
		return nil, apperrors.Validation("year must be a four digit model year")
	}

	key := "recalls:" + strings.ToLower(q.Make+"|"+q.Model+"|"+q.Year)
	result, err := cache.GetOrLoad(ctx, c.cache, key, c.recallTTL, func(ctx context.Context) (*RecallResult, error) {
		params := url.Values{}
		params.Set("make", q.Make)
		params.Set("model", q.Model)
		params.Set("modelYear", q.Year)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.recallsBase+"/recalls/recallsByVehicle?"+params.Encode(), nil)
		if err != nil {
			return nil, apperrors.Internal("build recalls request", err)
		}

		var resp recallsResponse
		if err := c.do(req, serviceRecalls, &resp); err != nil {
			return nil, err
		}

		recalls := make([]Recall, 0, len(resp.Results))
		for _, row := range resp.Results {
			recalls = append(recalls, mapRecall(row))
		}
		return &RecallResult{
			Make:           q.Make,
			Model:          q.Model,
			Year:           q.Year,
			Recalls:        recalls,
			Count:          len(recalls),
			HasOpenRecalls: len(recalls) > 0,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	out := *result
	out.VIN = vin
	return &out, nil
}

func (c *Client) do(req *http.Request, service string, dest interface{}) error {
	start := time.Now()
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	metrics.UpstreamDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(service, "error").Inc()
		c.log.WithError(err).WithField("service", service).Warn("upstream request failed")
		return apperrors.Upstream(service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.UpstreamRequests.WithLabelValues(service, "bad_status").Inc()
		c.log.WithFields(logrus.Fields{
			"service": service,
			"status":  resp.StatusCode,
		}).Warn("upstream returned non-2xx")
		return apperrors.Upstream(service, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(dest); err != nil {
		metrics.UpstreamRequests.WithLabelValues(service, "decode_error").Inc()
		return apperrors.Upstream(service, fmt.Errorf("decode response: %w", err))
	}
	metrics.UpstreamRequests.WithLabelValues(service, "ok").Inc()
	return nil
}

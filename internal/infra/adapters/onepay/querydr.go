package onepay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"onepay-payment-adapter/internal/domain/model"
	"onepay-payment-adapter/internal/domain/ports/adapter"
	"onepay-payment-adapter/internal/infra/metrics"
)

// QueryClient issues signed queryDR status requests against the provider's
// Vpcdps endpoint. The circuit breaker keeps a flapping provider from
// stalling the reconciler; retry cadence stays with the caller.
type QueryClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zerolog.Logger
}

func NewQueryClient(logger *zerolog.Logger) *QueryClient {
	return &QueryClient{
		client: &http.Client{Timeout: 15 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "onepay-querydr",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		log: logger,
	}
}

// QueryStatus signs and sends the queryDR field set and parses the
// &-delimited response body.
func (c *QueryClient) QueryStatus(ctx context.Context, t *model.Transaction, cfg *model.AcquirerConfig) (adapter.QueryResult, error) {
	params := FieldSet{
		FieldAccessCode: cfg.AccessCode,
		FieldCommand:    "queryDR",
		FieldVersion:    "1",
		FieldReference:  t.Reference,
		FieldMerchant:   cfg.MerchantAccount,
		FieldPassword:   cfg.Password,
		FieldUser:       cfg.User,
	}
	raw := Canonical(CCForm, params)
	sig, err := Sign(CCForm, cfg.SecretHash, raw)
	if err != nil {
		return adapter.QueryResult{}, err
	}
	reqURL := cfg.QueryURL() + "?" + raw + "&" + FieldSecureHash + "=" + sig

	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("queryDR http %d", resp.StatusCode)
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		return string(b), nil
	})
	if err != nil {
		metrics.QueryDRTotal.WithLabelValues("error").Inc()
		return adapter.QueryResult{}, fmt.Errorf("queryDR: %w", err)
	}

	res := ParseQueryResponse(body.(string))
	if res.Success {
		metrics.QueryDRTotal.WithLabelValues("success").Inc()
	} else {
		metrics.QueryDRTotal.WithLabelValues("fail").Inc()
	}
	c.log.Debug().Str("reference", t.Reference).Bool("success", res.Success).Msg("queryDR answered")
	return res, nil
}

// ParseQueryResponse decodes the provider's &-delimited key=value response.
// Success is signaled by vpc_TxnResponseCode=0.
func ParseQueryResponse(body string) adapter.QueryResult {
	fields := make(FieldSet)
	for _, line := range strings.Split(body, "&") {
		if line == "" {
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		fields[kv[0]] = kv[1]
	}
	res := adapter.QueryResult{Fields: fields}
	if code, err := strconv.Atoi(fields[FieldTxnResponseCode]); err == nil && code == 0 {
		res.Success = true
	}
	return res
}

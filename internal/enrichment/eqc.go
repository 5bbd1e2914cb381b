package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/workdatahub/workdatahub/internal/resilience"
)

// requestTimeout bounds each EQC attempt; cancellation is not exposed
// inside an in-flight call.
const requestTimeout = 5 * time.Second

// Candidate is one match returned by the enterprise query provider.
type Candidate struct {
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
}

// ErrProviderDisabled is returned once an auth failure has disabled the
// provider for the remainder of the run.
var ErrProviderDisabled = eris.New("enrichment: provider disabled for this run")

// EQCClient calls the external company-registry API. An authentication
// failure disables the client until the process exits; transient faults
// retry per the resilience tiers.
type EQCClient struct {
	baseURL  string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	disabled bool
}

// NewEQCClient builds a client. The limiter keeps the sync path well
// under the provider's published rate ceiling.
func NewEQCClient(baseURL, token string) *EQCClient {
	return &EQCClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

// Disabled reports whether an auth failure has switched the provider off.
func (c *EQCClient) Disabled() bool { return c.disabled }

type searchResponse struct {
	Results []Candidate `json:"results"`
}

// Search queries candidates for a customer name. Auth failures (401/403)
// disable the client and return ErrProviderDisabled.
func (c *EQCClient) Search(ctx context.Context, name string) ([]Candidate, error) {
	if c.disabled {
		return nil, ErrProviderDisabled
	}

	candidates, _, err := resilience.DoVal(ctx, "eqc.search", func(ctx context.Context) ([]Candidate, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "enrichment: rate limit wait")
		}
		return c.searchOnce(ctx, name)
	})
	if err != nil {
		if c.disabled {
			return nil, ErrProviderDisabled
		}
		return nil, err
	}
	return candidates, nil
}

func (c *EQCClient) searchOnce(ctx context.Context, name string) ([]Candidate, error) {
	u := fmt.Sprintf("%s/companies/search?name=%s", c.baseURL, url.QueryEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "enrichment: build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "enrichment: eqc request"), 0)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "enrichment: read body"), 0)
		}
		var sr searchResponse
		if err := json.Unmarshal(body, &sr); err != nil {
			return nil, eris.Wrap(err, "enrichment: decode response")
		}
		return sr.Results, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.disabled = true
		zap.L().Error("eqc auth failure; provider disabled for this run",
			zap.Int("status", resp.StatusCode))
		return nil, ErrProviderDisabled

	case resp.StatusCode == 429 || resp.StatusCode == 500 ||
		resp.StatusCode == 502 || resp.StatusCode == 503 || resp.StatusCode == 504:
		return nil, resilience.NewTransientError(
			eris.Errorf("enrichment: eqc returned %d", resp.StatusCode), resp.StatusCode)

	default:
		return nil, eris.Errorf("enrichment: eqc returned %d", resp.StatusCode)
	}
}

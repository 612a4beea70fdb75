package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/ahrav/go-pricescout/internal/domain"
	"github.com/ahrav/go-pricescout/internal/ports"
)

var (
	_ ports.Provider = (*HTTPProvider)(nil)
	_ IdleCloser     = (*HTTPProvider)(nil)
)

// maxResponseBytes caps the body read from a provider.
const maxResponseBytes = 4 << 20

// HTTPOptions configures an HTTPProvider.
type HTTPOptions struct {
	// Endpoint is the search URL. The query is sent in QueryParam.
	Endpoint string
	// QueryParam names the query string parameter; defaults to "q".
	QueryParam string
	// TokenEnv names an environment variable holding a bearer token.
	TokenEnv string
	// UserAgent is sent with every request.
	UserAgent string
	// Client overrides the HTTP client. Tests inject httptest clients here.
	Client *http.Client
}

// HTTPProvider searches a JSON HTTP endpoint. The endpoint may answer with
// either {"results":[...]} or a bare array of offers; scalar fields may be
// strings or numbers.
type HTTPProvider struct {
	id         domain.ProviderID
	endpoint   *url.URL
	queryParam string
	token      string
	userAgent  string
	client     *http.Client
	classifier ErrorClassifier
}

// NewHTTPProvider creates an HTTP provider for id.
func NewHTTPProvider(id domain.ProviderID, opts HTTPOptions) (*HTTPProvider, error) {
	base := strings.TrimSpace(opts.Endpoint)
	if base == "" {
		return nil, ErrEmptyEndpoint
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint for %s: %w", id, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint scheme %q for %s", u.Scheme, id)
	}

	param := opts.QueryParam
	if param == "" {
		param = "q"
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "pricescout/1.0"
	}
	client := opts.Client
	if client == nil {
		// No client timeout: each call is bounded by its context.
		client = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	var token string
	if opts.TokenEnv != "" {
		token = os.Getenv(opts.TokenEnv)
	}

	return &HTTPProvider{
		id:         id,
		endpoint:   u,
		queryParam: param,
		token:      token,
		userAgent:  ua,
		client:     client,
		classifier: ErrorClassifier{Provider: id},
	}, nil
}

// ID returns the provider identity.
func (p *HTTPProvider) ID() domain.ProviderID { return p.id }

// Search issues one GET for query and decodes the offers.
func (p *HTTPProvider) Search(ctx context.Context, query string) ([]domain.RawOffer, error) {
	u := *p.endpoint
	q := u.Query()
	q.Set(p.queryParam, strings.TrimSpace(query))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, NewProviderError(p.id, ErrorTypeBadRequest, 0, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, p.classifier.ClassifyContextError(ctxErr)
		}
		return nil, NewProviderError(p.id, ErrorTypeNetwork, 0, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, p.classifier.ClassifyContextError(ctxErr)
		}
		return nil, NewProviderError(p.id, ErrorTypeNetwork, resp.StatusCode, "read body", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		// Several catalogs answer 404 for "no such item".
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, p.classifier.ClassifyHTTPError(resp.StatusCode, snippet(body), nil)
	}

	offers, err := DecodeOffers(body)
	if err != nil {
		return nil, NewProviderError(p.id, ErrorTypeParse, resp.StatusCode, "decode offers", err)
	}
	for i := range offers {
		offers[i].Provider = p.id
	}
	return offers, nil
}

// CloseIdleConnections drops idle pooled connections so sockets do not
// outlive the phase that opened them.
func (p *HTTPProvider) CloseIdleConnections() { p.client.CloseIdleConnections() }

// DecodeOffers accepts {"results":[...]}, {"offers":[...]} or a bare array.
// An empty body decodes to no offers.
func DecodeOffers(body []byte) ([]domain.RawOffer, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var records []wireOffer
	if body[0] == '[' {
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, err
		}
	} else {
		var wrapped struct {
			Results []wireOffer `json:"results"`
			Offers  []wireOffer `json:"offers"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, err
		}
		records = wrapped.Results
		if len(records) == 0 {
			records = wrapped.Offers
		}
	}

	offers := make([]domain.RawOffer, 0, len(records))
	for _, r := range records {
		offers = append(offers, r.toRaw())
	}
	return offers, nil
}

// wireOffer is the tolerant JSON shape of one offer.
type wireOffer struct {
	Name       flexString `json:"name"`
	Price      flexString `json:"price"`
	Stock      flexString `json:"stock"`
	Status     flexString `json:"status"`
	Code       flexString `json:"code"`
	Laboratory flexString `json:"laboratory"`
}

func (w wireOffer) toRaw() domain.RawOffer {
	return domain.RawOffer{
		Name:       string(w.Name),
		Price:      string(w.Price),
		Stock:      string(w.Stock),
		Status:     string(w.Status),
		Code:       string(w.Code),
		Laboratory: string(w.Laboratory),
	}
}

// flexString decodes a JSON string, number or boolean into its text form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		if v {
			*f = "true"
		} else {
			*f = "false"
		}
		return nil
	}
	return errors.New("unsupported scalar")
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

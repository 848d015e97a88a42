package fhir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	fhirmodel "github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/fhir/model"
	"go.uber.org/zap"
)

const pageSize = "1000"

var ErrNotFound = errors.New("not found")

type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL    string
	activeBase string
	creds      Credentials
	httpClient *http.Client
	headers    http.Header
	logger     *zap.Logger
}

func NewClient(baseURL string, creds Credentials, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL:    base,
		activeBase: base,
		creds:      creds,
		httpClient: httpClient,
		headers:    AuthHeaders(creds.APIKey, ""),
		logger:     logger.Named("fhir"),
	}
}

/*
Authenticate obtains an OAuth2 token when the client-credentials grant is
configured. A failed grant is logged and the client keeps the API key (or no
auth) so the server's own response decides whether the run can proceed.
*/
func (c *Client) Authenticate(ctx context.Context) {
	if !c.creds.OAuthConfigured() {
		return
	}
	token, err := FetchToken(ctx, c.httpClient, c.creds)
	if err != nil {
		c.logger.Warn("oauth2 token request failed", zap.String("token_url", c.creds.TokenURL), zap.Error(err))
		return
	}
	c.headers = AuthHeaders(c.creds.APIKey, token)
}

// Headers returns a copy of the headers sent with every request.
func (c *Client) Headers() http.Header {
	return c.headers.Clone()
}

func (c *Client) ActiveBase() string {
	return c.activeBase
}

func (c *Client) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header = c.headers.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("GET %s: decode: %w", rawURL, err)
	}
	return nil
}

func variantSearchURL(base, since string) string {
	q := url.Values{}
	q.Set("code", codeGeneticVariantAssessment)
	q.Set("_count", pageSize)
	if since != "" {
		q.Set("_lastUpdated", "gt"+since)
	}
	return base + "/Observation?" + q.Encode()
}

/*
VariantPatients lists the ids of patients that have genetic variant
Observations, optionally only those updated after since (YYYY-MM-DD). A 404
on the configured base is retried once under "<base>/fhir". An error on the
first page is returned; an error on a later page ends paging with the
patients seen so far.
*/
func (c *Client) VariantPatients(ctx context.Context, since string) ([]string, error) {
	c.activeBase = c.baseURL
	fallback := c.baseURL + "/fhir"

	patients := make(map[string]struct{})
	next := variantSearchURL(c.activeBase, since)
	firstPage := true

	for next != "" {
		var page fhirmodel.Bundle
		err := c.getJSON(ctx, next, &page)
		if errors.Is(err, ErrNotFound) && firstPage && c.activeBase == c.baseURL {
			c.logger.Info("observation search returned 404, retrying with /fhir prefix")
			c.activeBase = fallback
			next = variantSearchURL(c.activeBase, since)
			continue
		}
		if err != nil {
			if firstPage {
				return nil, fmt.Errorf("variant search: %w", err)
			}
			c.logger.Warn("variant search paging stopped", zap.Error(err))
			break
		}
		firstPage = false

		for _, entry := range page.Entry {
			var obs fhirmodel.Observation
			if err := json.Unmarshal(entry.Resource, &obs); err != nil {
				continue
			}
			if obs.Subject == nil {
				continue
			}
			if id, ok := strings.CutPrefix(obs.Subject.Reference, "Patient/"); ok && id != "" {
				patients[id] = struct{}{}
			}
		}
		next = ResolveNext(c.activeBase, page.NextLink())
	}

	ret := make([]string, 0, len(patients))
	for id := range patients {
		ret = append(ret, id)
	}
	slices.Sort(ret)
	return ret, nil
}

/*
PatientBundle collects the Patient, all of its Observations and its
DiagnosticReports into one transaction bundle. Failures on individual
requests are logged and skipped.
*/
func (c *Client) PatientBundle(ctx context.Context, patientID string) (fhirmodel.Bundle, error) {
	logger := c.logger.With(zap.String("patient", patientID))
	escaped := url.PathEscape(patientID)
	var resources []json.RawMessage

	var patient json.RawMessage
	if err := c.getJSON(ctx, c.activeBase+"/Patient/"+escaped, &patient); err != nil {
		logger.Warn("fetching patient failed", zap.Error(err))
	} else {
		resources = append(resources, patient)
	}

	q := url.Values{}
	q.Set("patient", patientID)
	q.Set("_count", pageSize)
	next := c.activeBase + "/Observation?" + q.Encode()
	for next != "" {
		var page fhirmodel.Bundle
		if err := c.getJSON(ctx, next, &page); err != nil {
			logger.Warn("fetching observations failed", zap.Error(err))
			break
		}
		if len(page.Entry) > 0 {
			logger.Debug("downloaded observations", zap.Int("count", len(page.Entry)))
		}
		for _, e := range page.Entry {
			resources = append(resources, e.Resource)
		}
		next = ResolveNext(c.activeBase, page.NextLink())
	}

	var reports fhirmodel.Bundle
	reportsURL := c.activeBase + "/DiagnosticReport?" + url.Values{"patient": {patientID}}.Encode()
	if err := c.getJSON(ctx, reportsURL, &reports); err != nil {
		logger.Warn("fetching diagnostic reports failed", zap.Error(err))
	} else {
		for _, e := range reports.Entry {
			resources = append(resources, e.Resource)
		}
	}

	if err := ctx.Err(); err != nil {
		return fhirmodel.Bundle{}, err
	}
	return fhirmodel.NewTransactionBundle(resources), nil
}

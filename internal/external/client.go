package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"esg-sync/internal/models"
	"esg-sync/pkg/log"
)

// Client issues the outbound calls against one connector's endpoint. It does
// not retry; the retry policy executor wraps individual calls. Every failure
// is returned as a *CallError carrying its transient/permanent classification.
type Client struct {
	httpClient *http.Client
	resolver   CredentialResolver
	logger     zerolog.Logger
}

func NewClient(resolver CredentialResolver, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		resolver:   resolver,
		logger:     log.Logger.With().Str("component", "external_client").Logger(),
	}
}

// FetchRecords pulls the full external record set for one sync run.
func (c *Client) FetchRecords(ctx context.Context, connector *models.Connector) ([]Record, error) {
	body, _, err := c.call(ctx, connector, http.MethodGet, fetchURL(connector))
	if err != nil {
		return nil, err
	}

	var rawRecords []json.RawMessage
	if unmarshalErr := json.Unmarshal(body, &rawRecords); unmarshalErr != nil {
		return nil, &CallError{
			Kind: KindPermanent,
			Err:  fmt.Errorf("external response is not a record array: %w", unmarshalErr),
		}
	}

	records := make([]Record, 0, len(rawRecords))
	for _, raw := range rawRecords {
		records = append(records, Record{Payload: string(raw)})
	}

	c.logger.Debug().
		Int64("connector_id", connector.ID).
		Int("record_count", len(records)).
		Msg("Fetched external records")
	return records, nil
}

// Probe performs one non-mutating authenticated call to confirm credentials
// and read the capability grants the endpoint reports.
func (c *Client) Probe(ctx context.Context, connector *models.Connector) (*ProbeResult, error) {
	body, statusCode, err := c.call(ctx, connector, http.MethodGet, probeURL(connector))
	if err != nil {
		return nil, err
	}

	var response struct {
		Capabilities []string `json:"capabilities"`
	}
	if unmarshalErr := json.Unmarshal(body, &response); unmarshalErr != nil {
		return nil, &CallError{
			Kind: KindPermanent,
			Err:  fmt.Errorf("probe response is not valid JSON: %w", unmarshalErr),
		}
	}

	return &ProbeResult{StatusCode: statusCode, Capabilities: response.Capabilities}, nil
}

func (c *Client) call(ctx context.Context, connector *models.Connector, method, url string) ([]byte, int, error) {
	credential, err := c.resolver.Resolve(ctx, connector.AuthSecretRef)
	if err != nil {
		return nil, 0, &CallError{Kind: KindPermanent, Err: fmt.Errorf("failed to resolve credentials: %w", err)}
	}

	request, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, 0, &CallError{Kind: KindPermanent, Err: err}
	}
	applyAuth(request, connector.AuthType, credential)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, 0, classifyTransportError(err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, response.StatusCode, &CallError{Kind: KindTransient, StatusCode: response.StatusCode, Err: err}
	}

	if response.StatusCode >= http.StatusBadRequest {
		return nil, response.StatusCode, classifyStatusError(response.StatusCode, body)
	}

	return body, response.StatusCode, nil
}

func applyAuth(request *http.Request, authType models.AuthType, credential *Credential) {
	switch authType {
	case models.AuthTypeBearer:
		request.Header.Set("Authorization", "Bearer "+credential.Token)
	case models.AuthTypeBasic:
		request.SetBasicAuth(credential.Username, credential.Password)
	case models.AuthTypeAPIKey:
		request.Header.Set("X-Api-Key", credential.APIKey)
	}
}

func classifyTransportError(err error) *CallError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &CallError{Kind: KindTimeout, Err: err}
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &CallError{Kind: KindTimeout, Err: err}
	}
	return &CallError{Kind: KindTransient, Err: err}
}

// classifyStatusError tags 5xx as transient and every 4xx as permanent:
// authorization and validation failures do not heal on retry.
func classifyStatusError(statusCode int, body []byte) *CallError {
	kind := KindPermanent
	if statusCode >= http.StatusInternalServerError {
		kind = KindTransient
	}

	detail := strings.TrimSpace(string(body))
	if len(detail) > 256 {
		detail = detail[:256]
	}

	return &CallError{
		Kind:       kind,
		StatusCode: statusCode,
		Err:        fmt.Errorf("external endpoint returned %d: %s", statusCode, detail),
	}
}

func fetchURL(connector *models.Connector) string {
	return strings.TrimSuffix(connector.Endpoint, "/") + "/records"
}

func probeURL(connector *models.Connector) string {
	return strings.TrimSuffix(connector.Endpoint, "/") + "/probe"
}

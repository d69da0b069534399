package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"modelboot-go/internal/backend"
	"modelboot-go/internal/constants"
	"modelboot-go/internal/credential"
)

// discoveryBodyLimit caps how much of a model listing we read. Listings
// are small; anything larger is a misbehaving endpoint.
const discoveryBodyLimit = 1 << 20

// ModelDiscoverer fetches the live model list from a backend. It carries
// its own timeout so a hung endpoint can never stall startup.
type ModelDiscoverer struct {
	httpClient *http.Client
}

// DiscovererOption customizes ModelDiscoverer creation.
type DiscovererOption func(*ModelDiscoverer)

// NewModelDiscoverer creates a discoverer with the default budget.
func NewModelDiscoverer(opts ...DiscovererOption) *ModelDiscoverer {
	d := &ModelDiscoverer{
		httpClient: constants.NewHTTPClient(constants.DiscoveryTimeout),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// WithDiscoveryHTTPClient overrides the HTTP client (testing).
func WithDiscoveryHTTPClient(client *http.Client) DiscovererOption {
	return func(d *ModelDiscoverer) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// Discover lists the models the endpoint serves. Ollama exposes its local
// tags API; everything else speaks the OpenAI-compatible listing.
func (d *ModelDiscoverer) Discover(ctx context.Context, identity backend.Identity, baseURL string, cred credential.Credential) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DiscoveryTimeout)
	defer cancel()

	url := strings.TrimRight(baseURL, "/")
	var path string
	if identity == backend.LocalOllama {
		path = "/api/tags"
	} else {
		path = "/models"
		if !strings.HasSuffix(url, "/v1") {
			path = "/v1/models"
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create discovery request: %w", err)
	}
	switch cred.Kind {
	case credential.KindAPIKey:
		req.Header.Set("Authorization", "Bearer "+cred.APIKey)
	case credential.KindSession:
		req.Header.Set("Authorization", "Bearer "+cred.SessionToken)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch model list: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model list endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, discoveryBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read model list: %w", err)
	}
	if identity == backend.LocalOllama {
		return parseOllamaTags(body), nil
	}
	return parseOpenAIModels(body), nil
}

func parseOpenAIModels(body []byte) []ModelInfo {
	var models []ModelInfo
	gjson.GetBytes(body, "data").ForEach(func(_, item gjson.Result) bool {
		if id := item.Get("id").String(); id != "" {
			models = append(models, ModelInfo{
				ID:          id,
				DisplayName: item.Get("display_name").String(),
			})
		}
		return true
	})
	return models
}

func parseOllamaTags(body []byte) []ModelInfo {
	var models []ModelInfo
	gjson.GetBytes(body, "models").ForEach(func(_, item gjson.Result) bool {
		if name := item.Get("name").String(); name != "" {
			models = append(models, ModelInfo{ID: name})
		}
		return true
	})
	return models
}

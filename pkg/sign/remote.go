package sign

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
	"github.com/tidwall/gjson"
)

// RemoteSigner delegates signing to an HTTP signing service. The service
// receives {"method","uri","params"|"payload","cookies"} as JSON and answers
// with the header map, either at the top level or under "data".
type RemoteSigner struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

// NewRemoteSigner creates a signer backed by the service at endpoint
func NewRemoteSigner(endpoint string, timeout time.Duration, log logger.Logger) *RemoteSigner {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteSigner{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithField("component", "sign"),
	}
}

type signRequest struct {
	Method  string            `json:"method"`
	URI     string            `json:"uri"`
	Params  map[string]any    `json:"params,omitempty"`
	Payload map[string]any    `json:"payload,omitempty"`
	Cookies map[string]string `json:"cookies"`
}

// SignGET implements Signer
func (s *RemoteSigner) SignGET(uri string, params map[string]any, cookies map[string]string) (Headers, error) {
	return s.sign(signRequest{Method: http.MethodGet, URI: uri, Params: params, Cookies: cookies})
}

// SignPOST implements Signer
func (s *RemoteSigner) SignPOST(uri string, payload map[string]any, cookies map[string]string) (Headers, error) {
	return s.sign(signRequest{Method: http.MethodPost, URI: uri, Payload: payload, Cookies: cookies})
}

func (s *RemoteSigner) sign(req signRequest) (Headers, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sign request: %w", err)
	}

	start := time.Now()
	resp, err := s.httpClient.Post(s.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sign service unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sign response: %w", err)
	}

	s.logger.DebugWithFields("Signed request", map[string]interface{}{
		"method":      req.Method,
		"uri":         req.URI,
		"status_code": resp.StatusCode,
		"duration":    time.Since(start),
	})

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sign service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("sign service returned invalid JSON")
	}

	result := gjson.ParseBytes(raw)
	if data := result.Get("data"); data.IsObject() {
		result = data
	}
	if !result.IsObject() {
		return nil, fmt.Errorf("sign service response is not an object")
	}

	headers := Headers{}
	result.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String || value.Type == gjson.Number {
			headers[key.String()] = value.String()
		}
		return true
	})
	return headers, nil
}

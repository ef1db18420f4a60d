package settings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-resty/resty/v2"
)

const validationTimeout = 10 * time.Second

// ValidationResult is the outcome of a live credential check.
type ValidationResult struct {
	Service    Service `json:"service"`
	Valid      bool    `json:"valid"`
	Message    string  `json:"message"`
	DurationMs int64   `json:"duration_ms"`
}

var defaultEndpoints = map[Service]string{
	ServiceGroq:      "https://api.groq.com/openai/v1",
	ServiceOpenAI:    "https://api.openai.com/v1",
	ServiceAnthropic: "https://api.anthropic.com/v1",
	ServiceGemini:    "https://generativelanguage.googleapis.com/v1beta",
	ServiceFMP:       "https://financialmodelingprep.com/api/v3",
	ServiceNewsAPI:   "https://newsapi.org/v2",
}

// Validator checks credentials against each provider's cheapest read endpoint.
type Validator struct {
	client    *resty.Client
	endpoints map[Service]string
}

func NewValidator() *Validator {
	endpoints := make(map[Service]string, len(defaultEndpoints))
	for k, v := range defaultEndpoints {
		endpoints[k] = v
	}
	return &Validator{
		client:    resty.New().SetTimeout(validationTimeout),
		endpoints: endpoints,
	}
}

// Validate never returns an error for a rejected credential; the failure is
// reported in the result instead.
func (v *Validator) Validate(ctx context.Context, c Credential) ValidationResult {
	start := time.Now()

	var err error
	switch c.Service {
	case ServiceGroq, ServiceOpenAI:
		err = v.checkBearer(ctx, c)
	case ServiceAnthropic:
		err = v.checkAnthropic(ctx, c)
	case ServiceGemini:
		err = v.checkGemini(ctx, c)
	case ServiceFMP:
		err = v.checkFMP(ctx, c)
	case ServiceNewsAPI:
		err = v.checkNewsAPI(ctx, c)
	case ServiceBedrock:
		err = checkBedrock(ctx, c)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownService, c.Service)
	}

	result := ValidationResult{
		Service:    c.Service,
		Valid:      err == nil,
		Message:    "Connection successful",
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Message = err.Error()
	}
	return result
}

func (v *Validator) baseURL(c Credential) string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return v.endpoints[c.Service]
}

// checkBearer covers OpenAI and Groq's OpenAI-compatible API.
func (v *Validator) checkBearer(ctx context.Context, c Credential) error {
	if c.APIKey == "" {
		return ErrMissingKey
	}
	resp, err := v.client.R().
		SetContext(ctx).
		SetAuthToken(c.APIKey).
		Get(v.baseURL(c) + "/models")
	return interpret(resp, err)
}

func (v *Validator) checkAnthropic(ctx context.Context, c Credential) error {
	if c.APIKey == "" {
		return ErrMissingKey
	}
	resp, err := v.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.APIKey).
		SetHeader("anthropic-version", "2023-06-01").
		Get(v.baseURL(c) + "/models")
	return interpret(resp, err)
}

func (v *Validator) checkGemini(ctx context.Context, c Credential) error {
	if c.APIKey == "" {
		return ErrMissingKey
	}
	resp, err := v.client.R().
		SetContext(ctx).
		SetQueryParam("key", c.APIKey).
		Get(v.baseURL(c) + "/models")
	return interpret(resp, err)
}

// checkFMP treats a 200 carrying "Error Message" as a rejected key.
func (v *Validator) checkFMP(ctx context.Context, c Credential) error {
	if c.APIKey == "" {
		return ErrMissingKey
	}
	var body any
	resp, err := v.client.R().
		SetContext(ctx).
		SetQueryParam("apikey", c.APIKey).
		SetResult(&body).
		Get(v.baseURL(c) + "/profile/RELIANCE.NS")
	if err := interpret(resp, err); err != nil {
		return err
	}
	if m, ok := body.(map[string]any); ok {
		if msg, ok := m["Error Message"].(string); ok {
			return fmt.Errorf("API error: %s", msg)
		}
	}
	return nil
}

func (v *Validator) checkNewsAPI(ctx context.Context, c Credential) error {
	if c.APIKey == "" {
		return ErrMissingKey
	}
	resp, err := v.client.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.APIKey).
		SetQueryParams(map[string]string{"q": "NSE", "pageSize": "1"}).
		Get(v.baseURL(c) + "/everything")
	return interpret(resp, err)
}

// checkBedrock resolves AWS credentials from the default chain for the
// stored region; it does not invoke a model.
func checkBedrock(ctx context.Context, c Credential) error {
	if c.Region == "" {
		return errors.New("region is required")
	}
	if c.ModelID == "" {
		return errors.New("model id is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return fmt.Errorf("no AWS credentials: %w", err)
	}
	return nil
}

func interpret(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.New("invalid API key")
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode())
	}
}

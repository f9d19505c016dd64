package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
)

const contentTypeJSON = "application/json"

// InvokeModelAPI is the subset of the Bedrock runtime client used here.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockLLM implements LLM with Anthropic text completions on Amazon
// Bedrock.
type BedrockLLM struct {
	client InvokeModelAPI
	config LLMConfig
}

// BedrockEndpoint returns the Bedrock runtime endpoint for region.
func BedrockEndpoint(region string) string {
	suffix := "amazonaws.com"
	if strings.HasPrefix(region, "cn-") {
		suffix = "amazonaws.com.cn"
	}
	return fmt.Sprintf("https://bedrock-runtime.%s.%s", region, suffix)
}

// credentialsError marks a failure to resolve AWS credentials. It is raised
// before any request is signed, so the service never sees the call.
type credentialsError struct {
	err error
}

func (e *credentialsError) Error() string { return e.err.Error() }

func (e *credentialsError) Unwrap() error { return e.err }

// credentialsProvider tags every resolution failure of the wrapped provider
// as a credentialsError.
type credentialsProvider struct {
	inner aws.CredentialsProvider
}

func (p credentialsProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	creds, err := p.inner.Retrieve(ctx)
	if err != nil {
		return creds, &credentialsError{err: err}
	}
	return creds, nil
}

type textCompletionRequest struct {
	Prompt            string   `json:"prompt"`
	MaxTokensToSample int      `json:"max_tokens_to_sample"`
	Temperature       float64  `json:"temperature"`
	TopK              int      `json:"top_k"`
	TopP              float64  `json:"top_p"`
	StopSequences     []string `json:"stop_sequences"`
}

type textCompletionResponse struct {
	Completion *string `json:"completion"`
	StopReason string  `json:"stop_reason"`
}

// NewBedrockLLM builds a Bedrock runtime client from config: shared-config
// profile, region, endpoint, and connect/read timeouts. An empty Endpoint is
// derived from Region. The SDK retryer is limited to a single attempt.
func NewBedrockLLM(ctx context.Context, config LLMConfig) (*BedrockLLM, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("%w: missing model id", ErrInvalidConfig)
	}
	if config.Region == "" {
		return nil, fmt.Errorf("%w: missing region", ErrInvalidConfig)
	}
	if config.ConnectTimeout <= 0 || config.ReadTimeout <= 0 {
		return nil, fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}

	httpClient := awshttp.NewBuildableClient().
		WithDialerOptions(func(d *net.Dialer) {
			d.Timeout = config.ConnectTimeout
		}).
		WithTransportOptions(func(tr *http.Transport) {
			tr.ResponseHeaderTimeout = config.ReadTimeout
		})

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithRetryMaxAttempts(1),
	}
	if config.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(config.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load AWS config: %w", ErrInvalidConfig, err)
	}

	if awsCfg.Credentials != nil {
		awsCfg.Credentials = credentialsProvider{inner: awsCfg.Credentials}
	}

	if config.Endpoint == "" {
		config.Endpoint = BedrockEndpoint(config.Region)
	}
	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		o.BaseEndpoint = aws.String(config.Endpoint)
	})

	return NewBedrockLLMWithClient(client, config), nil
}

// NewBedrockLLMWithClient wraps an existing Bedrock runtime client.
func NewBedrockLLMWithClient(client InvokeModelAPI, config LLMConfig) *BedrockLLM {
	return &BedrockLLM{client: client, config: config}
}

// Endpoint returns the endpoint requests are sent to, or "" when the client
// was supplied by the caller without one.
func (b *BedrockLLM) Endpoint() string {
	return b.config.Endpoint
}

// Generate invokes the model with the prompt and returns the "completion"
// field of the response body.
func (b *BedrockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", ErrInvalidConfig)
	}

	body, err := json.Marshal(b.requestBody(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %w", ErrLLMFailed, err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		Body:        body,
		ModelId:     aws.String(b.config.Model),
		Accept:      aws.String(contentTypeJSON),
		ContentType: aws.String(contentTypeJSON),
	})
	if err != nil {
		return "", classifyBedrockError(err)
	}

	return parseCompletion(out.Body)
}

func (b *BedrockLLM) requestBody(prompt string) textCompletionRequest {
	stop := b.config.Params.StopSequences
	if stop == nil {
		stop = []string{}
	}
	return textCompletionRequest{
		Prompt:            prompt,
		MaxTokensToSample: b.config.Params.MaxTokens,
		Temperature:       b.config.Params.Temperature,
		TopK:              b.config.Params.TopK,
		TopP:              b.config.Params.TopP,
		StopSequences:     stop,
	}
}

func parseCompletion(body []byte) (string, error) {
	var resp textCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if resp.Completion == nil {
		return "", fmt.Errorf("%w: response has no completion field", ErrMalformedResponse)
	}
	return *resp.Completion, nil
}

var bedrockAuthCodes = map[string]bool{
	"AccessDeniedException":       true,
	"UnrecognizedClientException": true,
	"ExpiredTokenException":       true,
	"InvalidSignatureException":   true,
}

func classifyBedrockError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if bedrockAuthCodes[apiErr.ErrorCode()] {
			return fmt.Errorf("%w: %w", ErrAuth, err)
		}
		if apiErr.ErrorCode() == "ModelTimeoutException" {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var credErr *credentialsError
	if errors.As(err, &credErr) {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

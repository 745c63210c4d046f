// pagepull runs paginated JSON extractions declared in a YAML job file and
// writes the extracted records to stdout as NDJSON, one record per line.
//
// Usage:
//
//	pagepull -job job.yaml [-endpoint name] [-metrics-addr :9090]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/pagepull/pagepull/pkg/auth"
	"github.com/pagepull/pagepull/pkg/client"
	"github.com/pagepull/pagepull/pkg/config"
	"github.com/pagepull/pagepull/pkg/logging"
)

// jobFile is the YAML schema of an extraction job.
type jobFile struct {
	BaseURL  string            `yaml:"base_url"`
	BasePath string            `yaml:"base_path"`
	Vars     map[string]string `yaml:"vars"`
	Auth     jobAuth           `yaml:"auth"`

	// RateLimit and Retry are job-wide defaults; endpoints may override.
	RateLimit map[string]any `yaml:"rate_limit"`
	Retry     map[string]any `yaml:"retry"`

	Endpoints map[string]jobEndpoint `yaml:"endpoints"`
}

type jobAuth struct {
	Type         string   `yaml:"type"` // "none", "bearer" or "oauth2"
	Token        string   `yaml:"token"`
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
}

type jobEndpoint struct {
	Path       string            `yaml:"path"`
	Headers    map[string]string `yaml:"headers"`
	Query      map[string]string `yaml:"query"`
	Pagination map[string]any    `yaml:"pagination"`
	RateLimit  map[string]any    `yaml:"rate_limit"`
	Retry      map[string]any    `yaml:"retry"`
}

func main() {
	jobPath := flag.String("job", "", "path to the YAML job file (required)")
	endpointName := flag.String("endpoint", "", "extract a single endpoint instead of all")
	logLevel := flag.String("log-level", getEnv("PAGEPULL_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	pretty := flag.Bool("pretty-logs", false, "human-readable log output")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	flag.Parse()

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(*logLevel),
		Pretty: *pretty,
		Output: os.Stderr,
	})

	if *jobPath == "" {
		logger.Error().Msg("missing required -job flag")
		flag.Usage()
		os.Exit(2)
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	if err := run(context.Background(), *jobPath, *endpointName, os.Stdout, logger); err != nil {
		logger.Error().Err(err).Msg("Extraction failed")
		os.Exit(1)
	}
}

// run loads the job file, builds the client and extracts the selected
// endpoints, streaming records to out as NDJSON.
func run(ctx context.Context, jobPath, endpointName string, out io.Writer, logger zerolog.Logger) error {
	job, err := loadJob(jobPath)
	if err != nil {
		return err
	}

	c, names, err := buildClient(job)
	if err != nil {
		return err
	}

	if endpointName != "" {
		if _, ok := job.Endpoints[endpointName]; !ok {
			return fmt.Errorf("endpoint %q not declared in %s", endpointName, jobPath)
		}
		names = []string{endpointName}
	}

	encoder := json.NewEncoder(out)
	for _, name := range names {
		ep := job.Endpoints[name]

		opts, err := endpointOptions(ep)
		if err != nil {
			return fmt.Errorf("endpoint %q: %w", name, err)
		}

		pages := c.Paginate(ctx, name, opts)
		for pages.Next() {
			for _, record := range pages.Records() {
				if err := encoder.Encode(record); err != nil {
					return fmt.Errorf("write record: %w", err)
				}
			}
		}
		if err := pages.Err(); err != nil {
			return err
		}

		logger.Info().
			Str("endpoint", name).
			Int("records", pages.Count()).
			Msg("Extraction complete")
	}

	return nil
}

// loadJob reads and parses a YAML job file. Vars with empty values are
// filled from the environment, so secrets stay out of the file.
func loadJob(path string) (*jobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}

	var job jobFile
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse job file: %w", err)
	}
	if job.BaseURL == "" {
		return nil, fmt.Errorf("job file %s: base_url is required", path)
	}

	for name, value := range job.Vars {
		if value == "" {
			job.Vars[name] = os.Getenv(name)
		}
	}

	return &job, nil
}

// buildClient assembles the endpoint client from a job file. The returned
// names are the declared endpoints in stable order.
func buildClient(job *jobFile) (*client.Client, []string, error) {
	creds, err := buildCredentials(job.Auth)
	if err != nil {
		return nil, nil, err
	}

	rateLimit, err := config.DecodeRateLimit(job.RateLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("rate_limit: %w", err)
	}
	retry, err := decodeRetry(job.Retry)
	if err != nil {
		return nil, nil, fmt.Errorf("retry: %w", err)
	}

	endpoints := make(map[string]client.EndpointConfig, len(job.Endpoints))
	names := make([]string, 0, len(job.Endpoints))
	for name, ep := range job.Endpoints {
		endpoints[name] = client.EndpointConfig{
			Path:    ep.Path,
			Headers: ep.Headers,
			Query:   ep.Query,
		}
		names = append(names, name)
	}
	sort.Strings(names)

	c, err := client.New(client.Config{
		BaseURL:          job.BaseURL,
		BasePath:         job.BasePath,
		Endpoints:        endpoints,
		Vars:             job.Vars,
		Credentials:      creds,
		DefaultRateLimit: rateLimit,
		DefaultRetry:     retry,
	})
	if err != nil {
		return nil, nil, err
	}
	return c, names, nil
}

// buildCredentials maps the job's auth block to a credential source.
func buildCredentials(a jobAuth) (auth.Credentials, error) {
	switch a.Type {
	case "", "none":
		return auth.None(), nil
	case "bearer":
		if a.Token == "" {
			return nil, fmt.Errorf("auth: bearer requires token")
		}
		return auth.StaticBearer(a.Token), nil
	case "oauth2":
		if a.TokenURL == "" || a.ClientID == "" {
			return nil, fmt.Errorf("auth: oauth2 requires token_url and client_id")
		}
		return auth.NewClientCredentials(auth.OAuth2Config{
			TokenURL:     a.TokenURL,
			ClientID:     a.ClientID,
			ClientSecret: a.ClientSecret,
			Scopes:       a.Scopes,
		}), nil
	default:
		return nil, fmt.Errorf("auth: unknown type %q", a.Type)
	}
}

// endpointOptions builds pagination options for one endpoint, applying
// per-endpoint rate limit and retry overrides when declared.
func endpointOptions(ep jobEndpoint) (client.PaginateOptions, error) {
	pagination, err := config.DecodePagination(ep.Pagination)
	if err != nil {
		return client.PaginateOptions{}, fmt.Errorf("pagination: %w", err)
	}

	opts := client.PaginateOptions{Pagination: pagination}

	if ep.RateLimit != nil {
		rateLimit, err := config.DecodeRateLimit(ep.RateLimit)
		if err != nil {
			return client.PaginateOptions{}, fmt.Errorf("rate_limit: %w", err)
		}
		opts.RateLimit = &rateLimit
	}
	if ep.Retry != nil {
		retry, err := config.DecodeRetry(ep.Retry)
		if err != nil {
			return client.PaginateOptions{}, fmt.Errorf("retry: %w", err)
		}
		opts.Retry = &retry
	}

	return opts, nil
}

// decodeRetry decodes a retry block, falling back to the default policy
// when the job file has none.
func decodeRetry(raw map[string]any) (config.Retry, error) {
	if raw == nil {
		return config.DefaultRetry(), nil
	}
	return config.DecodeRetry(raw)
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info().Str("addr", addr).Msg("Serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("Metrics server failed")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

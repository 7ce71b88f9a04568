package publishers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Publisher types and queue providers.
const (
	TypeQueue = "queue"
	TypeHTTP  = "http"

	QueueProviderAWSSQS = "aws-sqs"
	QueueProviderAWSSNS = "aws-sns"
	QueueProviderGCP    = "gcp"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

type configFile struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// PublisherConfig is one entry of the publishers file.
type PublisherConfig struct {
	ID      string       `json:"id" yaml:"id"`
	Type    string       `json:"type" yaml:"type"`
	Enabled *bool        `json:"enabled" yaml:"enabled"`
	Queue   *QueueConfig `json:"queue" yaml:"queue"`
	HTTP    *HTTPConfig  `json:"http" yaml:"http"`
}

// QueueConfig selects a cloud queue provider.
type QueueConfig struct {
	Provider string     `json:"provider" yaml:"provider"`
	SQS      *SQSConfig `json:"sqs" yaml:"sqs"`
	SNS      *SNSConfig `json:"sns" yaml:"sns"`
	GCP      *GCPConfig `json:"gcp" yaml:"gcp"`
}

// AWSCredentials are optional; when empty the SDK default chain is used.
type AWSCredentials struct {
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

type SQSConfig struct {
	QueueURL       string `json:"queue_url" yaml:"queue_url"`
	AWSCredentials `yaml:",inline"`
}

type SNSConfig struct {
	TopicARN       string `json:"topic_arn" yaml:"topic_arn"`
	AWSCredentials `yaml:",inline"`
}

type GCPConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// HTTPConfig posts events as JSON to a webhook.
type HTTPConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// LoadConfig reads publisher entries from a YAML or JSON file. ${VAR}
// references are expanded from the environment.
func LoadConfig(path string) ([]PublisherConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}
	return ParseConfig([]byte(os.ExpandEnv(string(raw))), filepath.Ext(path))
}

// ParseConfig decodes and validates publisher entries. ext picks the format;
// an empty ext tries YAML then JSON.
func ParseConfig(data []byte, ext string) ([]PublisherConfig, error) {
	var file configFile
	var err error
	switch strings.ToLower(ext) {
	case ".json":
		err = json.Unmarshal(data, &file)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	default:
		if err = yaml.Unmarshal(data, &file); err != nil {
			err = json.Unmarshal(data, &file)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decode publishers file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Publishers))
	out := make([]PublisherConfig, 0, len(file.Publishers))
	for i, cfg := range file.Publishers {
		cfg = cfg.normalized()
		// Disabled entries only need an id.
		switch {
		case cfg.IsEnabled():
			if err := cfg.validate(); err != nil {
				return nil, fmt.Errorf("publishers[%d]: %w", i, err)
			}
		case cfg.ID == "":
			return nil, fmt.Errorf("publishers[%d]: id is required", i)
		}
		if _, dup := seen[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		seen[cfg.ID] = struct{}{}
		out = append(out, cfg)
	}
	return out, nil
}

// Enabled filters out disabled entries.
func Enabled(cfgs []PublisherConfig) []PublisherConfig {
	out := make([]PublisherConfig, 0, len(cfgs))
	for _, c := range cfgs {
		if c.IsEnabled() {
			out = append(out, c)
		}
	}
	return out
}

// IsEnabled defaults to true.
func (c PublisherConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c PublisherConfig) normalized() PublisherConfig {
	c.ID = strings.TrimSpace(c.ID)
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if c.Queue != nil {
		q := *c.Queue
		q.Provider = strings.ToLower(strings.TrimSpace(q.Provider))
		c.Queue = &q
	}
	if c.HTTP != nil {
		h := *c.HTTP
		h.URL = strings.TrimSpace(h.URL)
		h.Method = strings.ToUpper(strings.TrimSpace(h.Method))
		if h.Method == "" {
			h.Method = httpDefaultMethod
		}
		if h.TimeoutSeconds <= 0 {
			h.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		h.Headers = trimHeaders(h.Headers)
		c.HTTP = &h
	}
	return c
}

func trimHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (c PublisherConfig) validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	switch c.Type {
	case TypeHTTP:
		if c.HTTP == nil || c.HTTP.URL == "" {
			return fmt.Errorf("publisher %q: http.url is required", c.ID)
		}
		return nil
	case TypeQueue:
		if c.Queue == nil {
			return fmt.Errorf("publisher %q: queue config is required", c.ID)
		}
		return c.Queue.validate(c.ID)
	case "":
		return fmt.Errorf("publisher %q: type is required", c.ID)
	default:
		return fmt.Errorf("publisher %q: type %q not supported", c.ID, c.Type)
	}
}

func (q QueueConfig) validate(id string) error {
	var missing []string
	switch q.Provider {
	case QueueProviderAWSSQS:
		if q.SQS == nil || q.SQS.QueueURL == "" {
			missing = append(missing, "sqs.queue_url")
		}
		if q.SQS == nil || q.SQS.Region == "" {
			missing = append(missing, "sqs.region")
		}
	case QueueProviderAWSSNS:
		if q.SNS == nil || q.SNS.TopicARN == "" {
			missing = append(missing, "sns.topic_arn")
		}
		if q.SNS == nil || q.SNS.Region == "" {
			missing = append(missing, "sns.region")
		}
	case QueueProviderGCP:
		if q.GCP == nil || q.GCP.ProjectID == "" {
			missing = append(missing, "gcp.project_id")
		}
		if q.GCP == nil || q.GCP.Topic == "" {
			missing = append(missing, "gcp.topic")
		}
	default:
		return fmt.Errorf("publisher %q: queue provider %q not supported", id, q.Provider)
	}
	if len(missing) > 0 {
		return fmt.Errorf("publisher %q: missing %s", id, strings.Join(missing, ", "))
	}
	return nil
}

package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// HistoryRecord is one answered question as stored in the history index.
type HistoryRecord struct {
	Timestamp   time.Time `json:"@timestamp"`
	SessionHash string    `json:"session_hash"`
	Question    string    `json:"question"`
	Normalized  string    `json:"normalized,omitempty"`
	Route       string    `json:"route"`
	SQL         string    `json:"sql,omitempty"`
	Confidence  float64   `json:"confidence"`
	RowCount    int       `json:"row_count"`
	Warnings    []string  `json:"warnings,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
}

// ElasticsearchConfig holds the connection settings for HistoryService.
type ElasticsearchConfig struct {
	Scheme      string
	Host        string
	Port        int
	User        string
	Password    string
	VerifyCerts bool
	MaxRetries  int
	Index       string
}

// HistoryService writes and reads question history in Elasticsearch
type HistoryService struct {
	client *elasticsearch.Client
	index  string
}

// NewHistoryService creates an ES client using go-elasticsearch/v8
func NewHistoryService(cfg ElasticsearchConfig) (*HistoryService, error) {
	addr := fmt.Sprintf("%s://%s:%d", cfg.Scheme, cfg.Host, cfg.Port)
	return newHistoryService(addr, cfg)
}

func newHistoryService(addr string, cfg ElasticsearchConfig) (*HistoryService, error) {
	esCfg := elasticsearch.Config{
		Addresses:  []string{addr},
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.User != "" {
		esCfg.Username = cfg.User
		esCfg.Password = cfg.Password
	}
	if !cfg.VerifyCerts {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 - user explicitly disabled cert verification
			},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	index := cfg.Index
	if index == "" {
		index = "askql-history"
	}
	return &HistoryService{client: client, index: index}, nil
}

// NewHistoryServiceAt points the service at a full address, e.g. a test server.
func NewHistoryServiceAt(addr, index string) (*HistoryService, error) {
	return newHistoryService(addr, ElasticsearchConfig{Index: index, VerifyCerts: true})
}

// TestConnection pings the cluster
func (s *HistoryService) TestConnection(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping error: %s", res.Status())
	}
	return nil
}

// Record indexes one history entry
func (s *HistoryService) Record(ctx context.Context, rec HistoryRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index history record: %w", err)
	}
	defer res.Body.Close()

	_, err = decodeBody(res.Body, res.Status())
	return err
}

// Recent returns the newest history entries, newest first
func (s *HistoryService) Recent(ctx context.Context, size int) ([]HistoryRecord, error) {
	if size <= 0 || size > 100 {
		size = 20
	}
	body, err := json.Marshal(map[string]any{
		"size": size,
		"sort": []map[string]any{{"@timestamp": map[string]string{"order": "desc"}}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	opts := []func(*esapi.SearchRequest){
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	}
	res, err := s.client.Search(opts...)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer res.Body.Close()

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source HistoryRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if _, err := decodeBody(bytes.NewReader(raw), res.Status()); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}

	records := make([]HistoryRecord, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		records = append(records, h.Source)
	}
	return records, nil
}

func decodeBody(r io.Reader, status string) (map[string]any, error) {
	var result map[string]any
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if strings.HasPrefix(status, "4") || strings.HasPrefix(status, "5") {
		if errObj, ok := result["error"]; ok {
			return nil, fmt.Errorf("elasticsearch error [%s]: %v", status, errObj)
		}
		return nil, fmt.Errorf("elasticsearch error: %s", status)
	}
	return result, nil
}

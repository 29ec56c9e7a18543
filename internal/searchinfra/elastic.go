package searchinfra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-query-cache/searchindex"
)

// Config holds the connection settings of the search cluster.
type Config struct {
	Addresses []string          `yaml:"addresses"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Transport http.RoundTripper `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{Addresses: []string{"http://localhost:9200"}}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addresses, validation.Required, validation.Each(validation.Required, is.URL)),
	)
}

// ElasticClient implements searchindex.Client over the Elasticsearch HTTP
// API.
type ElasticClient struct {
	es *elasticsearch.Client
}

var _ searchindex.Client = (*ElasticClient)(nil)

// NewElasticClient builds a client from cfg. No request is sent until the
// first call.
func NewElasticClient(cfg Config) (*ElasticClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("searchinfra: create client: %w", err)
	}
	return &ElasticClient{es: es}, nil
}

// WrapElasticClient adapts an already configured client.
func WrapElasticClient(es *elasticsearch.Client) *ElasticClient {
	return &ElasticClient{es: es}
}

// Ping checks that the cluster answers.
func (c *ElasticClient) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return responseError(res)
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string               `json:"_id"`
			Source searchindex.Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (c *ElasticClient) Search(ctx context.Context, index string, req searchindex.SearchRequest) (searchindex.SearchResult, error) {
	body := map[string]any{"track_total_hits": true}
	if req.Query != nil {
		body["query"] = req.Query
	}
	if len(req.Sort) > 0 {
		body["sort"] = req.Sort
	}
	r, err := encode(body)
	if err != nil {
		return searchindex.SearchResult{}, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(r),
		c.es.Search.WithFrom(req.From),
		c.es.Search.WithSize(req.Size),
	)
	if err != nil {
		return searchindex.SearchResult{}, err
	}
	defer res.Body.Close()
	if err := responseError(res); err != nil {
		return searchindex.SearchResult{}, err
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return searchindex.SearchResult{}, fmt.Errorf("searchinfra: decode search: %w", err)
	}

	result := searchindex.SearchResult{Total: out.Hits.Total.Value}
	for _, hit := range out.Hits.Hits {
		result.Hits = append(result.Hits, searchindex.Hit{ID: hit.ID, Source: hit.Source})
	}
	return result, nil
}

func (c *ElasticClient) Get(ctx context.Context, index, id string) (searchindex.Document, bool, error) {
	res, err := c.es.Get(index, id, c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, false, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if err := responseError(res); err != nil {
		return nil, false, err
	}

	var out struct {
		Found  bool                 `json:"found"`
		Source searchindex.Document `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("searchinfra: decode get: %w", err)
	}
	if !out.Found {
		return nil, false, nil
	}
	return out.Source, true, nil
}

func (c *ElasticClient) Index(ctx context.Context, index, id string, doc searchindex.Document, refresh bool) (bool, error) {
	r, err := encode(doc)
	if err != nil {
		return false, err
	}
	res, err := c.es.Index(index, r,
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(id),
		c.es.Index.WithRefresh(refreshParam(refresh)),
	)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	if err := responseError(res); err != nil {
		return false, err
	}

	var out struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("searchinfra: decode index: %w", err)
	}
	return out.Result == "created", nil
}

func (c *ElasticClient) Delete(ctx context.Context, index, id string, refresh bool) (bool, error) {
	res, err := c.es.Delete(index, id,
		c.es.Delete.WithContext(ctx),
		c.es.Delete.WithRefresh(refreshParam(refresh)),
	)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err := responseError(res); err != nil {
		return false, err
	}
	return true, nil
}

func (c *ElasticClient) UpdateByQuery(ctx context.Context, index string, req searchindex.UpdateByQueryRequest) (searchindex.UpdateResult, error) {
	body := map[string]any{
		"script": map[string]any{
			"source": req.Script,
			"lang":   "painless",
			"params": req.Params,
		},
	}
	if req.Query != nil {
		body["query"] = req.Query
	}
	r, err := encode(body)
	if err != nil {
		return searchindex.UpdateResult{}, err
	}

	res, err := c.es.UpdateByQuery([]string{index},
		c.es.UpdateByQuery.WithContext(ctx),
		c.es.UpdateByQuery.WithBody(r),
		c.es.UpdateByQuery.WithRefresh(req.Refresh),
	)
	if err != nil {
		return searchindex.UpdateResult{}, err
	}
	defer res.Body.Close()

	var out searchindex.UpdateResult
	if res.StatusCode == http.StatusConflict {
		_ = json.NewDecoder(res.Body).Decode(&out)
		return out, fmt.Errorf("searchinfra: update by query on %s: %w", index, searchindex.ErrVersionConflict)
	}
	if err := responseError(res); err != nil {
		return out, err
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("searchinfra: decode update by query: %w", err)
	}
	return out, nil
}

func (c *ElasticClient) Count(ctx context.Context, index string, query map[string]any) (int64, error) {
	opts := []func(*esapi.CountRequest){
		c.es.Count.WithContext(ctx),
		c.es.Count.WithIndex(index),
	}
	if query != nil {
		r, err := encode(map[string]any{"query": query})
		if err != nil {
			return 0, err
		}
		opts = append(opts, c.es.Count.WithBody(r))
	}

	res, err := c.es.Count(opts...)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if err := responseError(res); err != nil {
		return 0, err
	}

	var out struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("searchinfra: decode count: %w", err)
	}
	return out.Count, nil
}

func encode(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("searchinfra: encode body: %w", err)
	}
	return &buf, nil
}

func refreshParam(refresh bool) string {
	if refresh {
		return "true"
	}
	return "false"
}

func responseError(res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("searchinfra: %s: %s", res.Status(), bytes.TrimSpace(body))
}

// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"video-chat-go/internal/config"
	"video-chat-go/internal/model"
	"video-chat-go/pkg/log"
)

// transcriptMapping 是转写分块索引的结构，tenant_id 用于租户隔离过滤。
const transcriptMapping = `{
	"mappings": {
		"properties": {
			"chunk_key": { "type": "keyword" },
			"tenant_id": { "type": "long" },
			"video_id": { "type": "keyword" },
			"chunk_id": { "type": "integer" },
			"title": { "type": "text" },
			"text_content": {
				"type": "text",
				"analyzer": "standard"
			}
		}
	}
}`

// SearchHit 是一次搜索命中的分块及其得分。
type SearchHit struct {
	Chunk model.TranscriptChunk
	Score float64
}

// Client 封装了 Elasticsearch 客户端和转写分块索引名。
type Client struct {
	es        *elasticsearch.Client
	indexName string
}

// NewClient 初始化 Elasticsearch 客户端，并确保索引存在。
func NewClient(esCfg config.ElasticsearchConfig) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{es: client, indexName: esCfg.IndexName}
	if err := c.createIndexIfNotExists(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (c *Client) createIndexIfNotExists(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.indexName}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	// 如果 res.StatusCode 是 200，说明索引已存在
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", c.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = c.es.Indices.Create(
		c.indexName,
		c.es.Indices.Create.WithBody(strings.NewReader(transcriptMapping)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", c.indexName, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", c.indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", c.indexName)
	return nil
}

// IndexChunks 将一个视频的全部分块写入索引，最后一个请求带 refresh 以便立即可查。
func (c *Client) IndexChunks(ctx context.Context, chunks []model.TranscriptChunk) error {
	for i, chunk := range chunks {
		docBytes, err := json.Marshal(chunk)
		if err != nil {
			return err
		}

		req := esapi.IndexRequest{
			Index:      c.indexName,
			DocumentID: chunk.ChunkKey,
			Body:       bytes.NewReader(docBytes),
		}
		if i == len(chunks)-1 {
			req.Refresh = "true"
		}

		res, err := req.Do(ctx, c.es)
		if err != nil {
			return err
		}
		if res.IsError() {
			body := res.String()
			res.Body.Close()
			log.Errorf("索引分块到 Elasticsearch 出错: %s", body)
			return fmt.Errorf("failed to index chunk %s", chunk.ChunkKey)
		}
		res.Body.Close()
	}
	return nil
}

// DeleteVideoChunks 删除某个租户下某个视频的所有分块。
func (c *Client) DeleteVideoChunks(ctx context.Context, tenantID uint, videoID string) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"tenant_id": tenantID}},
					map[string]interface{}{"term": map[string]interface{}{"video_id": videoID}},
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return err
	}

	res, err := c.es.DeleteByQuery(
		[]string{c.indexName},
		bytes.NewReader(body),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("delete by query failed: %s", res.String())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64               `json:"_score"`
			Source model.TranscriptChunk `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search 在指定租户的分块中做全文检索。
func (c *Client) Search(ctx context.Context, tenantID uint, query string, size int) ([]SearchHit, error) {
	esQuery := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"match": map[string]interface{}{"text_content": query},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"tenant_id": tenantID},
				},
			},
		},
	}
	body, err := json.Marshal(esQuery)
	if err != nil {
		return nil, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.indexName),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		b, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch search failed: %s", string(b))
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	hits := make([]SearchHit, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		hits = append(hits, SearchHit{Chunk: h.Source, Score: h.Score})
	}
	return hits, nil
}

// Package model 定义了与数据库表对应的 Go 结构体。
package model

// TranscriptChunk 定义了存储在 Elasticsearch 中的转写文本分块。
type TranscriptChunk struct {
	ChunkKey    string `json:"chunk_key"` // 唯一标识：tenantId:videoId:chunkId
	TenantID    uint   `json:"tenant_id"`
	VideoID     string `json:"video_id"`
	ChunkID     int    `json:"chunk_id"`
	Title       string `json:"title"`
	TextContent string `json:"text_content"`
}

// SearchResponseDTO 定义了返回给客户端的搜索结果结构。
type SearchResponseDTO struct {
	VideoID     string  `json:"videoId"`
	Title       string  `json:"title"`
	ChunkID     int     `json:"chunkId"`
	TextContent string  `json:"textContent"`
	Score       float64 `json:"score"`
}

package ingest

import (
	"context"
	"fmt"

	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"house-ai/internal/storage/metadata"
	"house-ai/pkg/log"
)

// Service 写入商品目录与文章：商品同时落库（供推荐、对比）与写入向量索引
type Service struct {
	store    metadata.Store
	products einoindexer.Indexer
	articles einoindexer.Indexer
	embedder einoembed.Embedder
	logger   *log.Logger
}

// NewService store 为 nil 时商品只写向量索引
func NewService(store metadata.Store, products, articles einoindexer.Indexer, embedder einoembed.Embedder, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{store: store, products: products, articles: articles, embedder: embedder, logger: logger}
}

// IndexProducts 返回写入向量索引的文档数
func (s *Service) IndexProducts(ctx context.Context, products []*metadata.Product) (int, error) {
	docs := make([]*schema.Document, 0, len(products))
	for _, p := range products {
		if p.ID == "" {
			p.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(p.Name)).String()
		}
		if s.store != nil {
			if err := s.store.UpsertProduct(ctx, p); err != nil {
				return 0, fmt.Errorf("保存商品 %s: %w", p.Name, err)
			}
		}
		docs = append(docs, ProductDocument(p))
	}
	return s.index(ctx, s.products, "products", docs)
}

// IndexArticles 返回写入向量索引的文档数
func (s *Service) IndexArticles(ctx context.Context, docs []*schema.Document) (int, error) {
	return s.index(ctx, s.articles, "articles", docs)
}

func (s *Service) index(ctx context.Context, idx einoindexer.Indexer, name string, docs []*schema.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	if idx == nil {
		return 0, fmt.Errorf("%s 索引未配置", name)
	}
	var opts []einoindexer.Option
	if s.embedder != nil {
		opts = append(opts, einoindexer.WithEmbedding(s.embedder))
	}
	ids, err := idx.Store(ctx, docs, opts...)
	if err != nil {
		return 0, fmt.Errorf("写入 %s 索引: %w", name, err)
	}
	s.logger.InfoContext(ctx, "索引写入完成", "index", name, "docs", len(ids))
	return len(ids), nil
}

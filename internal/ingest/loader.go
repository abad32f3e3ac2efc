// Package ingest 将商品目录与博客文章写入向量索引
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	einodoc "github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"house-ai/internal/rag"
)

// 文章元数据键
const (
	MetaSource   = "source"
	MetaCategory = "category"
)

// SupportedExtensions 文章加载支持的扩展名
var SupportedExtensions = []string{".txt", ".md", ".pdf"}

// FileLoader 本地文章加载器，实现 eino document.Loader；Source.URI 为文件路径或 file:// 路径
type FileLoader struct{}

var _ einodoc.Loader = FileLoader{}

// Load 读取单个文件为一篇文章
func (FileLoader) Load(ctx context.Context, src einodoc.Source, opts ...einodoc.LoaderOption) ([]*schema.Document, error) {
	path := strings.TrimPrefix(strings.TrimSpace(src.URI), "file://")
	if path == "" {
		return nil, fmt.Errorf("Source.URI 为空")
	}
	if !Supported(path) {
		return nil, fmt.Errorf("不支持的文件类型: %s", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 %s: %w", path, err)
	}

	text := string(data)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		if text, err = ExtractPDFText(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return []*schema.Document{{
		ID:      uuid.NewSHA1(uuid.NameSpaceURL, []byte(path)).String(),
		Content: text,
		MetaData: map[string]any{
			rag.MetaTitle: titleOf(path, text),
			MetaSource:    filepath.Base(path),
			MetaCategory:  rag.SourceArticle,
		},
	}}, nil
}

// Supported 是否为可加载的文章文件
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadDir 递归加载目录下全部支持的文件，按路径排序；单个文件失败时跳过并通过 onSkip 报告
func LoadDir(ctx context.Context, dir string, onSkip func(path string, err error)) ([]*schema.Document, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历 %s: %w", dir, err)
	}
	sort.Strings(paths)

	var loader FileLoader
	var docs []*schema.Document
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return docs, err
		}
		out, err := loader.Load(ctx, einodoc.Source{URI: p})
		if err != nil {
			if onSkip != nil {
				onSkip(p, err)
			}
			continue
		}
		docs = append(docs, out...)
	}
	return docs, nil
}

// titleOf markdown 一级标题优先，否则用文件名
func titleOf(path, text string) string {
	first, _, _ := strings.Cut(text, "\n")
	if t, ok := strings.CutPrefix(strings.TrimSpace(first), "# "); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

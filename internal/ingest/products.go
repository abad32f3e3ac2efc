package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	"house-ai/internal/rag"
	"house-ai/internal/storage/metadata"
)

// ReadProducts 读取 JSON 数组形式的商品目录；缺少名称的条目视为错误
func ReadProducts(r io.Reader) ([]*metadata.Product, error) {
	var products []*metadata.Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("解析商品目录: %w", err)
	}
	for i, p := range products {
		if p == nil || strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("第 %d 个商品缺少 name", i)
		}
		if p.Currency == "" {
			p.Currency = "UZS"
		}
	}
	return products, nil
}

// ProductDocument 商品 → 向量文档；正文用于嵌入，元数据供检索上下文格式化
func ProductDocument(p *metadata.Product) *schema.Document {
	score := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return &schema.Document{
		ID:      p.ID,
		Content: productText(p),
		MetaData: map[string]any{
			rag.MetaName:        p.Name,
			rag.MetaBrand:       p.Brand,
			rag.MetaPrice:       strconv.FormatFloat(p.Price, 'f', -1, 64),
			rag.MetaCPU:         p.CPU,
			rag.MetaRAM:         p.RAM,
			rag.MetaCamera:      p.Camera,
			rag.MetaBattery:     p.Battery,
			rag.MetaGamingScore: score(p.GamingScore),
			rag.MetaValueScore:  score(p.ValueScore),
			MetaCategory:        rag.SourceProduct,
		},
	}
}

func productText(p *metadata.Product) string {
	parts := []string{p.Name, p.Brand}
	for _, kv := range [][2]string{
		{"CPU", p.CPU}, {"GPU", p.GPU}, {"RAM", p.RAM}, {"Storage", p.Storage},
		{"Battery", p.Battery}, {"Display", p.Display}, {"Camera", p.Camera},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+": "+kv[1])
		}
	}
	return strings.Join(parts, ". ")
}

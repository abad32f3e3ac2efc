// indexer 离线索引工具：把商品目录与文章写入向量索引
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"house-ai/internal/app"
	"house-ai/internal/ingest"
	"house-ai/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "商品与文章向量索引",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/api.yaml", "配置文件路径（同目录 model.yaml 会被合并）")

	root.AddCommand(&cobra.Command{
		Use:   "products <catalog.json>",
		Short: "读取商品 JSON 数组，写入元数据库并索引到商品向量库",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			products, err := ingest.ReadProducts(f)
			if err != nil {
				return err
			}
			if len(products) == 0 {
				return fmt.Errorf("%s: 商品列表为空", args[0])
			}
			return withService(cmd.Context(), configPath, func(svc *ingest.Service) error {
				start := time.Now()
				n, err := svc.IndexProducts(cmd.Context(), products)
				if err != nil {
					return err
				}
				report(cmd.OutOrStdout(), "products", n, start)
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "articles <dir|file>",
		Short: "加载 .txt/.md/.pdf 文档并索引到文章向量库",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			docs, err := loadArticles(cmd.Context(), args[0], out)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Fprintln(out, "没有可索引的文档")
				return nil
			}
			return withService(cmd.Context(), configPath, func(svc *ingest.Service) error {
				start := time.Now()
				n, err := svc.IndexArticles(cmd.Context(), docs)
				if err != nil {
					return err
				}
				report(out, "articles", n, start)
				return nil
			})
		},
	})
	return root
}

func loadArticles(ctx context.Context, path string, out io.Writer) ([]*schema.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return ingest.LoadDir(ctx, path, func(p string, err error) {
			fmt.Fprintf(out, "跳过 %s: %v\n", p, err)
		})
	}
	if !ingest.Supported(path) {
		return nil, fmt.Errorf("%s: 不支持的文件类型", path)
	}
	return ingest.FileLoader{}.Load(ctx, document.Source{URI: path})
}

func withService(ctx context.Context, path string, fn func(*ingest.Service) error) error {
	cfg, err := config.LoadWithModel(path)
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	svc, closeFn, err := app.NewIngest(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()
	return fn(svc)
}

func report(out io.Writer, kind string, n int, start time.Time) {
	fmt.Fprintf(out, "indexed %s %s in %s\n", humanize.Comma(int64(n)), kind, time.Since(start).Round(time.Millisecond))
}

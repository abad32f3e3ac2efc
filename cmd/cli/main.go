package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"house-ai/internal/classify"
	"house-ai/internal/orchestrator"
	"house-ai/pkg/config"
)

const version = "house-ai cli 1.0.0"

type options struct {
	apiURL    string
	token     string
	language  string
	sessionID string
	userID    string
	timeout   time.Duration
	jsonOut   bool
}

func (o *options) client() *Client {
	return newClient(o.apiURL, o.token, o.timeout)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "house",
		Short:        "house-ai 命令行客户端",
		Version:      version,
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.apiURL, "api-url", apiBaseURL(), "API 地址（也可用 HOUSE_API_URL）")
	pf.StringVar(&opts.token, "token", os.Getenv("HOUSE_API_TOKEN"), "Bearer token")
	pf.StringVarP(&opts.language, "lang", "l", "", "回复语言 uz|ru|en，空为自动识别")
	pf.StringVarP(&opts.sessionID, "session", "s", "", "会话 ID")
	pf.StringVarP(&opts.userID, "user", "u", "", "用户 ID")
	pf.DurationVar(&opts.timeout, "timeout", 60*time.Second, "请求超时")
	pf.BoolVar(&opts.jsonOut, "json", false, "输出原始 JSON")

	root.AddCommand(
		newChatCmd(opts),
		newRecommendCmd(opts),
		newCompareCmd(opts),
		newSessionCmd(opts),
		newHealthCmd(opts),
		newConfigCmd(),
	)
	return root
}

func newChatCmd(opts *options) *cobra.Command {
	var stream bool
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "发送一条消息；不带参数时进入交互模式",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			send := func(msg string) error {
				req := orchestrator.ChatRequest{
					Message:   msg,
					SessionID: opts.sessionID,
					UserID:    opts.userID,
					Language:  classify.Language(opts.language),
				}
				if stream {
					return streamChat(cmd.Context(), opts, out, req)
				}
				resp, err := opts.client().Chat(cmd.Context(), req)
				if err != nil {
					return err
				}
				// 交互模式下沿用服务端分配的会话
				opts.sessionID = resp.SessionID
				if opts.jsonOut {
					return writeJSON(out, resp)
				}
				printChat(out, resp)
				return nil
			}
			if len(args) > 0 {
				return send(strings.Join(args, " "))
			}
			return repl(cmd.InOrStdin(), out, send)
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "使用流式接口")
	return cmd
}

func streamChat(ctx context.Context, opts *options, out io.Writer, req orchestrator.ChatRequest) error {
	var streamErr error
	err := opts.client().ChatStream(ctx, req, func(chunk orchestrator.Chunk) {
		switch chunk.Type {
		case orchestrator.ChunkText:
			fmt.Fprint(out, chunk.Content)
		case orchestrator.ChunkDone:
			fmt.Fprintln(out)
			if id, ok := chunk.Data["session_id"].(string); ok {
				opts.sessionID = id
			}
		case orchestrator.ChunkError:
			streamErr = fmt.Errorf("stream: %s", chunk.Content)
		}
	})
	if err != nil {
		return err
	}
	return streamErr
}

func repl(in io.Reader, out io.Writer, send func(string) error) error {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		msg := strings.TrimSpace(line)
		if msg == "exit" || msg == "quit" {
			return nil
		}
		if msg != "" {
			if sendErr := send(msg); sendErr != nil {
				fmt.Fprintf(out, "发送失败: %v\n", sendErr)
			}
		}
		if err != nil {
			fmt.Fprintln(out)
			return nil
		}
	}
}

func printChat(out io.Writer, resp *orchestrator.ChatResponse) {
	fmt.Fprintln(out, resp.Message)
	for _, p := range resp.Products {
		fmt.Fprintf(out, "  • %s (%s) %s %s\n", p.Name, p.Brand, humanize.FormatFloat("#,###.", p.Price), p.Currency)
	}
	for _, s := range resp.Sources {
		fmt.Fprintf(out, "  [source] %s\n", s)
	}
	fmt.Fprintf(out, "-- session=%s intent=%s lang=%s tokens=%d model=%s\n",
		resp.SessionID, resp.Intent, resp.Language, resp.TokensUsed, resp.Model)
}

func newRecommendCmd(opts *options) *cobra.Command {
	var budgetMin, budgetMax float64
	var focus string
	cmd := &cobra.Command{
		Use:   "recommend <query>",
		Short: "商品推荐",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := orchestrator.RecommendRequest{
				Query:     strings.Join(args, " "),
				Focus:     focus,
				SessionID: opts.sessionID,
				UserID:    opts.userID,
				Language:  classify.Language(opts.language),
			}
			if cmd.Flags().Changed("budget-min") {
				req.BudgetMin = &budgetMin
			}
			if cmd.Flags().Changed("budget-max") {
				req.BudgetMax = &budgetMax
			}
			resp, err := opts.client().Recommend(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, resp)
			}
			fmt.Fprintln(out, resp.Message)
			for i, p := range resp.Products {
				fmt.Fprintf(out, "%d. %s (%s) %s %s  score=%.1f\n",
					i+1, p.Name, p.Brand, humanize.FormatFloat("#,###.", p.Price), p.Currency, p.OverallScore)
				if p.BestFor != "" {
					fmt.Fprintf(out, "   best for: %s\n", p.BestFor)
				}
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&budgetMin, "budget-min", 0, "最低价格（UZS）")
	cmd.Flags().Float64Var(&budgetMax, "budget-max", 0, "最高价格（UZS）")
	cmd.Flags().StringVar(&focus, "focus", "", "侧重点 camera|gaming|battery|value")
	return cmd
}

func newCompareCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <product> <product> [product...]",
		Short: "对比 2 到 5 个商品",
		Args:  cobra.RangeArgs(2, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().Compare(cmd.Context(), orchestrator.CompareRequest{
				ProductNames: args,
				SessionID:    opts.sessionID,
				UserID:       opts.userID,
				Language:     classify.Language(opts.language),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, resp)
			}
			if resp.Comparison != nil {
				for _, row := range resp.Comparison.Rows {
					names := make([]string, 0, len(row.Values))
					for name := range row.Values {
						names = append(names, name)
					}
					sort.Strings(names)
					cells := make([]string, 0, len(names))
					for _, name := range names {
						cells = append(cells, name+"="+row.Values[name])
					}
					line := fmt.Sprintf("%-10s %s", row.Category, strings.Join(cells, " | "))
					if row.Winner != "" {
						line += "  → " + row.Winner
					}
					fmt.Fprintln(out, line)
				}
			}
			fmt.Fprintln(out, resp.Message)
			return nil
		},
	}
}

func newSessionCmd(opts *options) *cobra.Command {
	var anonymousID string
	cmd := &cobra.Command{
		Use:   "session",
		Short: "创建会话",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.client().Session(cmd.Context(), orchestrator.SessionRequest{
				UserID:             opts.userID,
				AnonymousSessionID: anonymousID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (created %s)\n", sess.ID, humanize.Time(sess.CreatedAt))
			return nil
		},
	}
	cmd.Flags().StringVar(&anonymousID, "anonymous-id", "", "匿名会话 ID")
	return cmd
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "检查 API 服务状态",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (version %s)\n", h["status"], h["version"])
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [path]",
		Short: "显示生效配置（密钥已隐藏）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "configs/api.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			cfg, err := config.LoadWithModel(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "api.port=%d\n", cfg.API.Port)
			fmt.Fprintf(out, "api.host=%s\n", cfg.API.Host)
			fmt.Fprintf(out, "api.grpc.enable=%t\n", cfg.API.Grpc.Enable)
			fmt.Fprintf(out, "storage.metadata.type=%s\n", cfg.Storage.Metadata.Type)
			fmt.Fprintf(out, "storage.vector.type=%s\n", cfg.Storage.Vector.Type)
			fmt.Fprintf(out, "storage.cache.type=%s\n", cfg.Storage.Cache.Type)
			fmt.Fprintf(out, "model.defaults.llm=%s\n", cfg.Model.Defaults.LLM)
			fmt.Fprintf(out, "model.defaults.advanced=%s\n", cfg.Model.Defaults.Advanced)
			fmt.Fprintf(out, "model.defaults.embedding=%s\n", cfg.Model.Defaults.Embedding)
			fmt.Fprintf(out, "chat.daily_token_budget=%s\n", humanize.Comma(int64(cfg.Chat.DailyTokenBudget)))
			fmt.Fprintf(out, "search.provider=%s\n", cfg.Search.Provider)
			fmt.Fprintf(out, "search.api_key=%s\n", redact(cfg.Search.APIKey))
			providers := make([]string, 0, len(cfg.Model.LLM.Providers))
			for name := range cfg.Model.LLM.Providers {
				providers = append(providers, name)
			}
			sort.Strings(providers)
			for _, name := range providers {
				fmt.Fprintf(out, "model.llm.providers.%s.api_key=%s\n", name, redact(cfg.Model.LLM.Providers[name].APIKey))
			}
			return nil
		},
	}
}

func redact(s string) string {
	if s == "" {
		return "(unset)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

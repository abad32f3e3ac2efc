package classify

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
)

// GraphName 分类编排在 Eino Dev 中显示的名称
const GraphName = "house_classify"

// GraphInput 分类编排输入
type GraphInput struct {
	Message  string   `json:"message"`
	Language Language `json:"language,omitempty"`
}

// BuildGraph 将级联分类编排为 correct → language → intent → emotion 的 compose.Graph
func (c *Cascade) BuildGraph() (*compose.Graph[*GraphInput, *Classification], error) {
	g := compose.NewGraph[*GraphInput, *Classification]()

	steps := []struct {
		name string
		fn   func(context.Context, *Classification) (*Classification, error)
	}{
		{"language", func(ctx context.Context, cl *Classification) (*Classification, error) {
			c.detectLanguage(ctx, cl)
			return cl, nil
		}},
		{"intent", func(ctx context.Context, cl *Classification) (*Classification, error) {
			c.classifyIntent(ctx, cl)
			return cl, nil
		}},
		{"emotion", func(ctx context.Context, cl *Classification) (*Classification, error) {
			c.detectEmotion(ctx, cl)
			return cl, nil
		}},
	}

	if err := g.AddLambdaNode("correct", compose.InvokableLambda(func(ctx context.Context, in *GraphInput) (*Classification, error) {
		if in == nil || in.Message == "" {
			return nil, fmt.Errorf("消息不能为空")
		}
		cl := &Classification{Original: in.Message, Override: in.Language}
		c.correct(cl)
		return cl, nil
	})); err != nil {
		return nil, err
	}
	if err := g.AddEdge(compose.START, "correct"); err != nil {
		return nil, err
	}

	prev := "correct"
	for _, s := range steps {
		if err := g.AddLambdaNode(s.name, compose.InvokableLambda(s.fn)); err != nil {
			return nil, err
		}
		if err := g.AddEdge(prev, s.name); err != nil {
			return nil, err
		}
		prev = s.name
	}
	if err := g.AddEdge(prev, compose.END); err != nil {
		return nil, err
	}
	return g, nil
}

// Compile 编译分类编排
func (c *Cascade) Compile(ctx context.Context) (compose.Runnable[*GraphInput, *Classification], error) {
	g, err := c.BuildGraph()
	if err != nil {
		return nil, fmt.Errorf("build classify graph: %w", err)
	}
	return g.Compile(ctx, compose.WithGraphName(GraphName))
}

package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"house-ai/internal/catalog"
	"house-ai/internal/classify"
	"house-ai/internal/orchestrator"
	herrors "house-ai/pkg/errors"
)

type fakeService struct {
	err      error
	lastChat orchestrator.ChatRequest
}

func (f *fakeService) Chat(ctx context.Context, req orchestrator.ChatRequest) *orchestrator.ChatResponse {
	f.lastChat = req
	return &orchestrator.ChatResponse{
		Message:    "salom",
		SessionID:  "s-1",
		Intent:     classify.IntentGeneralChat,
		Language:   classify.LanguageUzbek,
		Sources:    []string{},
		TokensUsed: 12,
	}
}

func (f *fakeService) Recommend(ctx context.Context, req orchestrator.RecommendRequest) (*orchestrator.RecommendResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.RecommendResponse{
		Message:  req.Query,
		Products: []catalog.ProductCard{{Name: "Galaxy S24", Price: 11000000}},
	}, nil
}

func (f *fakeService) Compare(ctx context.Context, req orchestrator.CompareRequest) (*orchestrator.CompareResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.CompareResponse{Message: req.ProductNames[0]}, nil
}

func dial(t *testing.T, svc Service) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := NewServer(svc, nil)
	srv := grpc.NewServer(grpc.UnaryInterceptor(s.UnaryInterceptor()))
	s.Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func invoke(t *testing.T, conn *grpc.ClientConn, method string, in map[string]any) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(in)
	require.NoError(t, err)
	out := &structpb.Struct{}
	err = conn.Invoke(context.Background(), "/"+ServiceName+"/"+method, req, out)
	return out, err
}

func TestChat(t *testing.T) {
	svc := &fakeService{}
	conn := dial(t, svc)

	out, err := invoke(t, conn, "Chat", map[string]any{"message": "salom", "user_id": "u-1", "language": "uz"})
	require.NoError(t, err)
	assert.Equal(t, "salom", out.Fields["message"].GetStringValue())
	assert.Equal(t, "s-1", out.Fields["session_id"].GetStringValue())
	assert.Equal(t, float64(12), out.Fields["tokens_used"].GetNumberValue())
	assert.Equal(t, "u-1", svc.lastChat.UserID)
	assert.Equal(t, classify.LanguageUzbek, svc.lastChat.Language)

	_, err = invoke(t, conn, "Chat", map[string]any{"message": ""})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRecommendAndCompare(t *testing.T) {
	conn := dial(t, &fakeService{})

	out, err := invoke(t, conn, "Recommend", map[string]any{"query": "gaming", "budget_max": 5000000})
	require.NoError(t, err)
	products := out.Fields["products"].GetListValue().GetValues()
	require.Len(t, products, 1)
	assert.Equal(t, "Galaxy S24", products[0].GetStructValue().Fields["name"].GetStringValue())

	out, err = invoke(t, conn, "Compare", map[string]any{"product_names": []any{"Galaxy S24", "iPhone 15"}})
	require.NoError(t, err)
	assert.Equal(t, "Galaxy S24", out.Fields["message"].GetStringValue())

	_, err = invoke(t, conn, "Compare", map[string]any{"product_names": []any{"Galaxy S24"}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestErrorCodes(t *testing.T) {
	cases := map[codes.Code]error{
		codes.ResourceExhausted: &orchestrator.BudgetError{Message: "limit"},
		codes.InvalidArgument:   herrors.Wrap(herrors.ErrInvalidArg, "query"),
		codes.NotFound:          herrors.Wrap(herrors.ErrNotFound, "product"),
		codes.Unavailable:       herrors.Wrap(herrors.ErrUnavailable, "db"),
		codes.Internal:          assert.AnError,
	}
	for want, svcErr := range cases {
		conn := dial(t, &fakeService{err: svcErr})
		_, err := invoke(t, conn, "Recommend", map[string]any{"query": "x"})
		assert.Equal(t, want, status.Code(err), svcErr.Error())
	}
}

func TestUnknownMethod(t *testing.T) {
	conn := dial(t, &fakeService{})
	_, err := invoke(t, conn, "Stream", map[string]any{})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

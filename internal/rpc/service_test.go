package rpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"job-dispatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type echoTransformer struct {
	got chan domain.JobRequest
	err error
}

func (e *echoTransformer) Transform(_ context.Context, req domain.JobRequest) (domain.JobReply, error) {
	e.got <- req
	if e.err != nil {
		return domain.JobReply{}, e.err
	}
	return domain.JobReply{Text: req.JobID + " via " + req.OriginTag}, nil
}

// startServer serves srv over an in-memory listener and returns a connected client conn.
func startServer(t *testing.T, srv domain.Transformer) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterWorkerServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestTransformRoundTrip(t *testing.T) {
	srv := &echoTransformer{got: make(chan domain.JobRequest, 1)}
	client := NewWorkerClient(startServer(t, srv))

	createdAt := time.Date(2026, 10, 19, 8, 30, 0, 123456789, time.UTC)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := client.Transform(ctx, domain.JobRequest{
		JobID:     "job-card-17",
		OriginTag: domain.OriginRobot,
		CreatedAt: createdAt,
	})
	require.NoError(t, err)
	assert.Equal(t, "job-card-17 via workerRobot", reply.Text)

	got := <-srv.got
	assert.Equal(t, "job-card-17", got.JobID)
	assert.Equal(t, domain.OriginRobot, got.OriginTag)
	assert.True(t, createdAt.Equal(got.CreatedAt), "created_at survives the wire: %v", got.CreatedAt)
}

func TestTransformRejectsMissingJobID(t *testing.T) {
	srv := &echoTransformer{got: make(chan domain.JobRequest, 1)}
	conn := startServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in, err := structpb.NewStruct(map[string]any{"origin_tag": "manual"})
	require.NoError(t, err)
	err = conn.Invoke(ctx, TransformMethod, in, new(wrapperspb.StringValue))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Empty(t, srv.got)
}

func TestTransformPropagatesServerErrors(t *testing.T) {
	srv := &echoTransformer{got: make(chan domain.JobRequest, 1), err: errors.New("boom")}
	client := NewWorkerClient(startServer(t, srv))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Transform(ctx, domain.JobRequest{JobID: "job-card-99"})
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestDecodeRequestRejectsBadTimestamp(t *testing.T) {
	in, err := structpb.NewStruct(map[string]any{
		"job_id":     "job-card-10",
		"created_at": "yesterday",
	})
	require.NoError(t, err)

	_, err = DecodeRequest(in)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

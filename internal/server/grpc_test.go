package server

import (
	"context"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/entity"
)

func startGRPC(t *testing.T, svc *ExtractionService) *ExtractionClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(grpc.UnaryInterceptor(UnaryInterceptor(discardLogger())))
	NewGRPCServer(svc, discardLogger()).Register(s)
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
	return NewExtractionClient(conn)
}

func TestGRPCExtract(t *testing.T) {
	proc := newFakeProcessor()
	client := startGRPC(t, NewExtractionService(proc, nil, nil, discardLogger()))

	ctx := common.WithRequestID(context.Background(), "grpc-req-1")
	out, header, err := client.Extract(ctx, []byte("%PDF lease"), "lease.pdf", "PDF")
	require.NoError(t, err)

	m := out.AsMap()
	assert.Equal(t, []any{"Acme Corp", "Jane Doe"}, m["party_names"])
	assert.Equal(t, "2024-01-01", m["start_date"])
	assert.Equal(t, false, m["needs_review"])

	assert.Equal(t, []string{proc.jobID.String()}, header.Get(MDJobID))
	assert.Equal(t, []string{"miss"}, header.Get(MDCache))
	assert.Equal(t, []string{"grpc-req-1"}, header.Get(MDRequestID))

	got := proc.last()
	assert.Equal(t, "lease.pdf", got.Name)
	assert.Equal(t, "PDF", got.FormatHint)
}

func TestGRPCExtractErrorCodes(t *testing.T) {
	client := startGRPC(t, NewExtractionService(newFakeProcessor(), nil, nil, discardLogger()))

	tests := []struct {
		data string
		want codes.Code
	}{
		{data: "", want: codes.InvalidArgument},
		{data: "broken", want: codes.InvalidArgument},
		{data: "db-down", want: codes.Internal},
		{data: "panic", want: codes.Internal},
	}
	for _, tt := range tests {
		_, _, err := client.Extract(context.Background(), []byte(tt.data), "a.pdf", "")
		require.Error(t, err, tt.data)
		assert.Equal(t, tt.want, status.Code(err), tt.data)
	}
}

func TestGRPCSubmitAndGetJob(t *testing.T) {
	q := &fakeQueue{}
	jobs := &mockJobs{}
	svc := NewExtractionService(newFakeProcessor(), q, jobs, discardLogger())
	client := startGRPC(t, svc)

	id, err := client.Submit(context.Background(), []byte("PK"), "nda.docx", "DOC")
	require.NoError(t, err)
	require.Len(t, q.enqueued(), 1)
	assert.Equal(t, q.enqueued()[0].ID.String(), id)
	assert.Equal(t, "DOC", q.enqueued()[0].Request.FormatHint)

	jobID := uuid.MustParse(id)
	jobs.On("Get", mock.Anything, jobID).Return(&entity.ExtractJob{ID: jobID, Status: "QUEUED", SourceName: "nda.docx"}, nil)

	job, err := client.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "QUEUED", job.AsMap()["status"])
	assert.Equal(t, "nda.docx", job.AsMap()["source_name"])

	missing := uuid.New()
	jobs.On("Get", mock.Anything, missing).Return(nil, common.NewNotFound("extract job not found"))
	_, err = client.GetJob(context.Background(), missing.String())
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetJob(context.Background(), "nope")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCSubmitWithoutQueue(t *testing.T) {
	client := startGRPC(t, NewExtractionService(newFakeProcessor(), nil, nil, discardLogger()))

	_, err := client.Submit(context.Background(), []byte("x"), "a.pdf", "")
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

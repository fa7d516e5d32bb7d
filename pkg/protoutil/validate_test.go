package protoutil_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/argus-labs/kamisync/pkg/protoutil"
)

type pageRequest struct {
	numChunks uint32
}

func (r *pageRequest) Validate() error {
	if r.numChunks == 0 {
		return errors.New("num_chunks: value must be greater than or equal to 1")
	}
	return nil
}

// recvStream hands out a fixed request.
type recvStream struct {
	grpc.ServerStream
	numChunks uint32
}

func (s *recvStream) RecvMsg(m any) error {
	m.(*pageRequest).numChunks = s.numChunks
	return nil
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, protoutil.Validate(struct{}{}))
	require.NoError(t, protoutil.Validate(&pageRequest{numChunks: 1}))

	err := protoutil.Validate(&pageRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "num_chunks")
}

func TestUnaryServerInterceptor(t *testing.T) {
	t.Parallel()

	intercept := protoutil.UnaryServerInterceptor()
	called := 0
	handler := func(context.Context, any) (any, error) {
		called++
		return "ok", nil
	}

	_, err := intercept(context.Background(), &pageRequest{}, &grpc.UnaryServerInfo{}, handler)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, 0, called)

	resp, err := intercept(context.Background(), &pageRequest{numChunks: 2}, &grpc.UnaryServerInfo{}, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, 1, called)
}

func TestStreamServerInterceptor(t *testing.T) {
	t.Parallel()

	intercept := protoutil.StreamServerInterceptor()
	recv := func(_ any, ss grpc.ServerStream) error {
		return ss.RecvMsg(&pageRequest{})
	}

	err := intercept(nil, &recvStream{}, &grpc.StreamServerInfo{}, recv)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	require.NoError(t, intercept(nil, &recvStream{numChunks: 3}, &grpc.StreamServerInfo{}, recv))
}

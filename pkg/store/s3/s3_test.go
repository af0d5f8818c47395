package s3

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/mdus/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &types.NotFound{})))
	assert.False(t, isNotFound(fmt.Errorf("boom")))
}

func TestS3Store_Key(t *testing.T) {
	s := &S3Store{keyPrefix: "mdus/files/"}
	assert.Equal(t, "mdus/files/a.txt", s.key("a.txt"))
}

func TestS3Store_ChecksBeforeNetwork(t *testing.T) {
	// No client: every path below must return before touching S3
	s := &S3Store{}

	_, err := s.Open(context.Background(), "")
	assert.ErrorIs(t, err, store.ErrInvalidName)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Write(ctx, "a", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, s.Close())
	_, err = s.Open(context.Background(), "a")
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), Config{Bucket: "b"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Client: &s3.Client{}})
	assert.Error(t, err)
}

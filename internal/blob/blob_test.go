package blob

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *MinioStorage {
	t.Helper()
	s, err := NewMinio(Options{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "teamchat-test",
		Region:    "us-east-1",
		URLTTL:    time.Hour,
	})
	require.NoError(t, err)
	return s
}

// Presigning is local computation once the region is known; no server needed.
func TestGenerateUploadURL(t *testing.T) {
	s := newTestStorage(t)

	up, err := s.GenerateUploadURL(context.Background())
	require.NoError(t, err)
	assert.True(t, ValidRef(up.StorageRef))

	u, err := url.Parse(up.URL)
	require.NoError(t, err)
	assert.Equal(t, "/teamchat-test/"+up.StorageRef, u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}

func TestGetURL(t *testing.T) {
	s := newTestStorage(t)
	ref := "uploads/" + uuid.NewString()

	got, err := s.GetURL(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, strings.Contains(got, ref))
	assert.Contains(t, got, "X-Amz-Expires=3600")
}

func TestGetURLRejectsForeignRefs(t *testing.T) {
	s := newTestStorage(t)
	for _, ref := range []string{"", "secrets/passwords.txt", "uploads/../etc", "uploads/not-a-uuid"} {
		_, err := s.GetURL(context.Background(), ref)
		assert.ErrorIs(t, err, ErrInvalidRef, ref)
	}
}

func TestURLTTLIsCapped(t *testing.T) {
	s, err := NewMinio(Options{Endpoint: "localhost:9000", Bucket: "b", Region: "us-east-1", URLTTL: 30 * 24 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, s.urlTTL)
}

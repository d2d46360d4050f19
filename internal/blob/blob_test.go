package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	got, err := CleanPath(" /imports/org/leads.csv ")
	require.NoError(t, err)
	assert.Equal(t, "imports/org/leads.csv", got)

	for _, bad := range []string{"", "  ", "../etc/passwd", "imports/../../x", `imports\leads.csv`, "/"} {
		_, err := CleanPath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestCleanScopedPath(t *testing.T) {
	orgID, tableID := uuid.New(), uuid.New()
	prefix := TablePrefix(orgID, tableID)
	assert.Equal(t, "imports/"+orgID.String()+"/"+tableID.String()+"/", prefix)

	got, err := CleanScopedPath("/"+prefix+"march/leads.csv", prefix)
	require.NoError(t, err)
	assert.Equal(t, prefix+"march/leads.csv", got)

	for _, raw := range []string{
		TablePrefix(uuid.New(), tableID) + "leads.csv",
		TablePrefix(orgID, uuid.New()) + "leads.csv",
		"imports/" + orgID.String() + "/leads.csv",
		prefix,
	} {
		_, err := CleanScopedPath(raw, prefix)
		assert.ErrorIs(t, err, ErrOutOfScope, raw)
	}

	_, err = CleanScopedPath(prefix+"../../x.csv", prefix)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestLocalDownload(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "imports"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "imports", "leads.csv"), []byte("business_name\nAcme"), 0o644))

	store := NewLocal(root)

	data, err := store.Download(context.Background(), "imports/leads.csv", 1024)
	require.NoError(t, err)
	assert.Equal(t, "business_name\nAcme", string(data))

	_, err = store.Download(context.Background(), "imports/missing.csv", 1024)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Download(context.Background(), "imports/leads.csv", 4)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = store.Download(context.Background(), "../leads.csv", 1024)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

type fakeS3 struct {
	s3iface.S3API
	objects map[string]string
	lastKey string
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	f.lastKey = aws.StringValue(in.Key)
	body, ok := f.objects[f.lastKey]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func TestS3Download(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"uploads/a.csv": "business_name\nAcme"}}
	store := NewS3WithClient(client, "leads-bucket")

	data, err := store.Download(context.Background(), "/uploads/a.csv", 0)
	require.NoError(t, err)
	assert.Equal(t, "business_name\nAcme", string(data))
	assert.Equal(t, "uploads/a.csv", client.lastKey)

	_, err = store.Download(context.Background(), "uploads/none.csv", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Download(context.Background(), "uploads/a.csv", 3)
	assert.ErrorIs(t, err, ErrTooLarge)
}

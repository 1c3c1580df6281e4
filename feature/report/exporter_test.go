package report

import (
	"context"
	"io"
	"testing"
	"time"

	"rollcall/core/storage/mocks"
	"rollcall/feature/troupe/models"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExporterUploadsArtifacts(t *testing.T) {
	client := new(mocks.Client)
	client.On("BucketExists", mock.Anything, "rollcall").Return(true, nil)

	var rosterBody []byte
	client.On("PutObject", mock.Anything, "rollcall", "troupes/tr/dashboard.json",
		mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)
	client.On("PutObject", mock.Anything, "rollcall", "troupes/tr/roster.csv",
		mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			body, err := io.ReadAll(args.Get(3).(io.Reader))
			require.NoError(t, err)
			rosterBody = body
		}).
		Return(minio.UploadInfo{}, nil)

	tr := reportTroupe()
	tr.Dashboard = &models.Dashboard{Members: 1, ComputedAt: time.Now()}
	members := []*models.Member{
		{ID: "mem-1", TroupeID: "tr", Key: "m-1",
			Properties: map[string]models.PropertyValue{models.PropMemberID: {Value: "m-1"}},
			Points:     map[string]float64{models.PointTotal: 4, "Fall": 0}},
	}

	e := NewExporter(client, "rollcall", zap.NewNop())
	require.NoError(t, e.Export(context.Background(), tr, members))

	client.AssertExpectations(t)
	assert.Contains(t, string(rosterBody), "Member ID")
	assert.Contains(t, string(rosterBody), "m-1")
}

func TestExporterCreatesMissingBucket(t *testing.T) {
	client := new(mocks.Client)
	client.On("BucketExists", mock.Anything, "rollcall").Return(false, nil)
	client.On("MakeBucket", mock.Anything, "rollcall", mock.Anything).Return(nil)
	client.On("PutObject", mock.Anything, "rollcall", mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)

	tr := reportTroupe()
	e := NewExporter(client, "rollcall", zap.NewNop())
	require.NoError(t, e.Export(context.Background(), tr, nil))
	client.AssertExpectations(t)
}

package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"

	"rollcall/core/props"
	"rollcall/core/storage"
	"rollcall/feature/troupe/models"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Exporter writes post-sync artifacts to object storage: the dashboard
// snapshot as JSON and the member roster as CSV. Both are derived data;
// losing an export costs nothing a later sync does not restore.
type Exporter struct {
	client storage.Client
	bucket string
	logger *zap.Logger
}

func NewExporter(client storage.Client, bucket string, logger *zap.Logger) *Exporter {
	return &Exporter{client: client, bucket: bucket, logger: logger}
}

// Export uploads the troupe's artifacts under troupes/<id>/.
func (e *Exporter) Export(ctx context.Context, tr *models.Troupe, members []*models.Member) error {
	if err := e.ensureBucket(ctx); err != nil {
		return err
	}
	if tr.Dashboard != nil {
		payload, err := json.MarshalIndent(tr.Dashboard, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode dashboard: %w", err)
		}
		if err := e.put(ctx, tr.ID, "dashboard.json", payload, "application/json"); err != nil {
			return err
		}
	}
	roster, err := renderRoster(tr, members)
	if err != nil {
		return err
	}
	return e.put(ctx, tr.ID, "roster.csv", roster, "text/csv")
}

func (e *Exporter) ensureBucket(ctx context.Context) error {
	exists, err := e.client.BucketExists(ctx, e.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", e.bucket, err)
	}
	if exists {
		return nil
	}
	if err := e.client.MakeBucket(ctx, e.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", e.bucket, err)
	}
	return nil
}

func (e *Exporter) put(ctx context.Context, troupeID, name string, payload []byte, contentType string) error {
	key := fmt.Sprintf("troupes/%s/%s", troupeID, name)
	_, err := e.client.PutObject(ctx, e.bucket, key,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	e.logger.Debug("artifact uploaded", zap.String("key", key), zap.Int("bytes", len(payload)))
	return nil
}

// renderRoster writes the member roster as CSV: one column per property in
// audience order, then one per point type.
func renderRoster(tr *models.Troupe, members []*models.Member) ([]byte, error) {
	propCols := orderProperties(tr.Properties)
	pointCols := orderPointTypes(tr.PointTypes)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append(append([]string{}, propCols...), pointCols...)); err != nil {
		return nil, fmt.Errorf("failed to render roster: %w", err)
	}

	ordered := make([]*models.Member, len(members))
	copy(ordered, members)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Key < ordered[j].Key })

	for _, m := range ordered {
		row := make([]string, 0, len(propCols)+len(pointCols))
		for _, name := range propCols {
			row = append(row, props.Format(m.Properties[name].Value))
		}
		for _, name := range pointCols {
			row = append(row, formatNumber(m.Points[name]))
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to render roster: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to render roster: %w", err)
	}
	return buf.Bytes(), nil
}

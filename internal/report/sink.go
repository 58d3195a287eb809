// AngelaMos | 2026
// sink.go

package report

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/reportriser/backend/internal/artifact"
	"github.com/reportriser/backend/internal/core"
)

const filenameLayout = "20060102_150405"

// Locator identifies a persisted artifact.
type Locator struct {
	Key         string
	Filename    string
	ContentType string
	Size        int
}

// ArtifactSink renders documents and hands the bytes to a Store.
type ArtifactSink struct {
	renderer Renderer
	store    artifact.Store
}

func NewArtifactSink(renderer Renderer, store artifact.Store) *ArtifactSink {
	return &ArtifactSink{renderer: renderer, store: store}
}

func Filename(doc *Document, ext string) string {
	return "report_" + doc.GeneratedAt().Format(filenameLayout) + ext
}

func (s *ArtifactSink) Persist(
	ctx context.Context,
	ownerID string,
	doc *Document,
) (Locator, error) {
	ctx, span := core.StartSpan(ctx, "report.persist",
		attribute.String("report.owner", ownerID),
	)
	defer span.End()

	body, err := s.renderer.Render(doc)
	if err != nil {
		core.SetSpanError(ctx, err)
		return Locator{}, err
	}

	filename := Filename(doc, s.renderer.Extension())
	loc := Locator{
		Key:         path.Join(ownerID, uuid.NewString(), filename),
		Filename:    filename,
		ContentType: s.renderer.ContentType(),
		Size:        len(body),
	}

	if err := s.store.Put(ctx, loc.Key, body, loc.ContentType); err != nil {
		core.SetSpanError(ctx, err)
		return Locator{}, fmt.Errorf("persist report: %w", err)
	}

	return loc, nil
}

func (s *ArtifactSink) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	return rc, nil
}

func (s *ArtifactSink) Discard(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("discard report: %w", err)
	}
	return nil
}

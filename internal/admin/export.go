package admin

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/okian/flames/pkg/logger"
	"github.com/okian/flames/pkg/metrics"
)

// Format is an export payload format.
type Format string

// Export formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts json or csv.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	}
	return "", errors.Mark(errors.Newf("format %q: want json or csv", s), ErrUnknownFormat)
}

// FileName is the default download name of a format.
func (f Format) FileName() string {
	if f == FormatCSV {
		return "interactions.csv"
	}
	return "redteam_export.json"
}

// Export downloads the backend payload for format and writes it to w
// unchanged. It returns the number of bytes written.
func (d *Dashboard) Export(ctx context.Context, format Format, w io.Writer) (int, error) {
	u, err := d.admin(ctx)
	if err != nil {
		return 0, err
	}

	var payload []byte
	switch format {
	case FormatJSON:
		payload, err = d.api.ExportJSON(ctx, u.Token)
	case FormatCSV:
		payload, err = d.api.ExportCSV(ctx, u.Token)
	default:
		return 0, errors.Mark(errors.Newf("format %q", format), ErrUnknownFormat)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "export %s", format)
	}

	n, err := w.Write(payload)
	metrics.RecordExportBytes(string(format), n)
	if err != nil {
		return n, errors.Wrap(err, "write export")
	}
	return n, nil
}

// ExportFile exports into the export directory under name, or under the
// format's default file name when name is empty. It returns the path.
func (d *Dashboard) ExportFile(ctx context.Context, format Format, name string) (string, error) {
	if name == "" {
		name = format.FileName()
	}
	path := filepath.Join(d.exportDir, name)

	// Nothing is written unless the download succeeds.
	var buf bytes.Buffer
	if _, err := d.Export(ctx, format, &buf); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.exportDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create export dir")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	d.logger.Info(ctx, "export written", logger.String("format", string(format)), logger.String("path", path), logger.Int("bytes", buf.Len()))
	return path, nil
}

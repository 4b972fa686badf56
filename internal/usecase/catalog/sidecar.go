package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"xihong/internal/bootstrap/logging"
	"xihong/internal/domain/ingest"
	"xihong/internal/errs"
)

const sidecarSuffix = ".meta.json"

// Sidecar is the parsed <stem>.meta.json written by the collector.
type Sidecar struct {
	Path         string
	ShopID       string
	ShopSection  string
	Account      string
	OriginalPath string
	DateFrom     *time.Time
	DateTo       *time.Time
	QualityScore *float64
}

type sidecarFile struct {
	CollectionInfo struct {
		ShopID       any    `json:"shop_id"`
		Account      any    `json:"account"`
		OriginalPath string `json:"original_path"`
	} `json:"collection_info"`
	BusinessMetadata struct {
		DateFrom any `json:"date_from"`
		DateTo   any `json:"date_to"`
		ShopID   any `json:"shop_id"`
	} `json:"business_metadata"`
	DataQuality struct {
		QualityScore any `json:"quality_score"`
	} `json:"data_quality"`
}

var originalPathRange = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})_(\d{4}-\d{2}-\d{2})`)

// SidecarPath returns the companion metadata path for a data file.
func SidecarPath(dataFile string) string {
	return strings.TrimSuffix(dataFile, filepath.Ext(dataFile)) + sidecarSuffix
}

// ReadSidecar loads the companion file if present. A malformed file is
// logged and treated as absent.
func ReadSidecar(ctx context.Context, dataFile string) (Sidecar, bool, error) {
	path := SidecarPath(dataFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Sidecar{}, false, nil
		}
		return Sidecar{}, false, errs.Wrapf(err, "read sidecar %s", path)
	}

	var file sidecarFile
	if err := json.Unmarshal(raw, &file); err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "catalog.sidecar")),
			"malformed sidecar ignored",
			slog.String("path", path),
			slog.Any("err", errs.Loggable(err)),
		)
		return Sidecar{}, false, nil
	}

	out := Sidecar{
		Path:         path,
		Account:      scalarText(file.CollectionInfo.Account),
		OriginalPath: strings.TrimSpace(file.CollectionInfo.OriginalPath),
	}
	if id := scalarText(file.BusinessMetadata.ShopID); id != "" {
		out.ShopID, out.ShopSection = id, "business_metadata"
	} else if id := scalarText(file.CollectionInfo.ShopID); id != "" {
		out.ShopID, out.ShopSection = id, "collection_info"
	}

	if d, ok := ingest.ParseDate(file.BusinessMetadata.DateFrom, ingest.DayFirstUnknown, false); ok {
		out.DateFrom = &d
	}
	if d, ok := ingest.ParseDate(file.BusinessMetadata.DateTo, ingest.DayFirstUnknown, false); ok {
		out.DateTo = &d
	}
	if (out.DateFrom == nil || out.DateTo == nil) && out.OriginalPath != "" {
		if m := originalPathRange.FindStringSubmatch(out.OriginalPath); m != nil {
			from, okFrom := ingest.ParseDate(m[1], ingest.DayFirstNo, false)
			to, okTo := ingest.ParseDate(m[2], ingest.DayFirstNo, false)
			if okFrom && okTo {
				out.DateFrom, out.DateTo = &from, &to
			}
		}
	}

	if score, ok := ingest.ParseNumber(file.DataQuality.QualityScore); ok {
		score = min(max(score, 0), 100)
		out.QualityScore = &score
	}
	return out, true, nil
}

// Resolution turns the sidecar shop id into a resolution, or false when the
// sidecar does not name a shop.
func (s Sidecar) Resolution() (ingest.ShopResolution, bool) {
	if s.ShopID == "" {
		return ingest.ShopResolution{}, false
	}
	confidence := ingest.ConfidenceSidecarCollection
	if s.ShopSection == "business_metadata" {
		confidence = ingest.ConfidenceSidecarBusiness
	}
	return ingest.ShopResolution{
		ShopID:     s.ShopID,
		Confidence: confidence,
		Source:     ingest.ShopSourceSidecar,
		Detail:     fmt.Sprintf("%s.%s", filepath.Base(s.Path), s.ShopSection),
	}, true
}

// scalarText accepts ids written as strings or numbers.
func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return ""
	}
}

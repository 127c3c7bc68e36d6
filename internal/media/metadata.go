package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hbomb79/Syphon/internal/extractor"
)

// ErrMetadataUnavailable indicates the extractor tool produced output
// that could not be understood as a metadata document.
var ErrMetadataUnavailable = errors.New("failed to parse video information")

const (
	descriptionLimit    = 500
	descriptionEllipsis = "..."
)

type (
	Thumbnail struct {
		URL string `json:"url"`
	}

	// Metadata is the subset of the extractor tool's JSON document that
	// Syphon actually reads. Field names mirror the tool's own keys; the
	// document is never persisted.
	Metadata struct {
		Title          string      `json:"title"`
		Ext            string      `json:"ext"`
		Duration       float64     `json:"duration"`
		Uploader       string      `json:"uploader"`
		Channel        string      `json:"channel"`
		Creator        string      `json:"creator"`
		UploadDate     string      `json:"upload_date"`
		ViewCount      *int64      `json:"view_count"`
		LikeCount      *int64      `json:"like_count"`
		CommentCount   *int64      `json:"comment_count"`
		ExtractorKey   string      `json:"extractor_key"`
		SingleThumb    string      `json:"thumbnail"`
		Thumbnails     []Thumbnail `json:"thumbnails"`
		Formats        []Format    `json:"formats"`
		Filesize       *int64      `json:"filesize"`
		FilesizeApprox *int64      `json:"filesize_approx"`
		Description    string      `json:"description"`
	}
)

// Author resolves the video's author through the uploader -> channel ->
// creator fallback chain.
func (metadata *Metadata) Author() string {
	if metadata.Uploader != "" {
		return metadata.Uploader
	}
	if metadata.Channel != "" {
		return metadata.Channel
	}

	return metadata.Creator
}

// Thumbnail returns the best thumbnail URL for this video. The tool sorts
// its thumbnails list worst-first, so the last entry wins; a lone
// 'thumbnail' field is the fallback when no list is present.
func (metadata *Metadata) Thumbnail() string {
	if len(metadata.Thumbnails) > 0 {
		return metadata.Thumbnails[len(metadata.Thumbnails)-1].URL
	}

	return metadata.SingleThumb
}

// ShortDescription clips overly long descriptions to a reporting-friendly
// length. The limit counts characters, not bytes; a byte-wise cut could
// split a rune and emit invalid UTF-8.
func (metadata *Metadata) ShortDescription() string {
	if utf8.RuneCountInString(metadata.Description) <= descriptionLimit {
		return metadata.Description
	}

	return string([]rune(metadata.Description)[:descriptionLimit]) + descriptionEllipsis
}

// ApproxFilesize prefers the tool's estimate, falling back to the exact
// size when no estimate was reported.
func (metadata *Metadata) ApproxFilesize() *int64 {
	if metadata.FilesizeApprox != nil {
		return metadata.FilesizeApprox
	}

	return metadata.Filesize
}

// FormatDuration renders a duration in seconds as a compact human string
// (e.g. '1h 2m 3s').
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "Unknown"
	}

	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	parts := make([]string, 0, 3)
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}

	return strings.Join(parts, " ")
}

// fetchMetadata performs an independent capture-mode invocation of the
// extractor tool requesting a single self-describing JSON document.
// Playlist expansion is disabled so a playlist locator yields only the
// addressed item, and certificate validation is skipped as the tool is
// trusted to reach unreliable endpoints.
func fetchMetadata(ctx context.Context, invoker extractor.Invoker, url string) (*Metadata, error) {
	output, err := invoker.SpawnCapturing(ctx,
		url,
		"--dump-json",
		"--no-playlist",
		"--no-warnings",
		"--no-check-certificate",
	)
	if err != nil {
		return nil, err
	}

	metadata := &Metadata{}
	if err := json.Unmarshal(output, metadata); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMetadataUnavailable, err)
	}

	return metadata, nil
}

package media

import "strconv"

type QualityTier string

const (
	QualityBest  QualityTier = "best"
	QualityWorst QualityTier = "worst"
	Quality720p  QualityTier = "720p"
	Quality480p  QualityTier = "480p"
	Quality360p  QualityTier = "360p"
)

// formatExpressions maps each supported quality tier to the selector
// expression understood by the extractor tool. The 'best' row is the one
// canonical fallback for anything unrecognised.
var formatExpressions = map[QualityTier]string{
	QualityBest:  "best[ext=mp4]/best",
	QualityWorst: "worst[ext=mp4]/worst",
	Quality720p:  "best[height<=720][ext=mp4]/best[height<=720]",
	Quality480p:  "best[height<=480][ext=mp4]/best[height<=480]",
	Quality360p:  "best[height<=360][ext=mp4]/best[height<=360]",
}

// NormaliseQuality validates a client-requested tier against the fixed
// enumeration. Quality is advisory, so an unrecognised value quietly
// becomes 'best' rather than failing the request.
func NormaliseQuality(raw string) QualityTier {
	tier := QualityTier(raw)
	if _, ok := formatExpressions[tier]; ok {
		return tier
	}

	return QualityBest
}

func (tier QualityTier) Expression() string {
	if expression, ok := formatExpressions[tier]; ok {
		return expression
	}

	return formatExpressions[QualityBest]
}

// Format is one entry from the metadata document's formats list.
type Format struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	FormatNote     string  `json:"format_note"`
	Quality        float64 `json:"quality"`
	Filesize       *int64  `json:"filesize"`
	FilesizeApprox *int64  `json:"filesize_approx"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Height         int     `json:"height"`
	Width          int     `json:"width"`
	FPS            float64 `json:"fps"`
}

// HasMedia reports whether this format actually carries audio or video;
// entries where the tool explicitly marks both codecs 'none' are
// metadata-only placeholders (storyboards and the like).
func (format *Format) HasMedia() bool {
	return format.VCodec != "none" || format.ACodec != "none"
}

// QualityLabel resolves a display label for this format, preferring the
// tool's own note over its numeric quality ranking.
func (format *Format) QualityLabel() string {
	if format.FormatNote != "" {
		return format.FormatNote
	}
	if format.Quality != 0 {
		return strconv.FormatFloat(format.Quality, 'f', -1, 64)
	}

	return "Unknown"
}

// EffectiveFilesize prefers the exact size, falling back to the estimate.
func (format *Format) EffectiveFilesize() *int64 {
	if format.Filesize != nil {
		return format.Filesize
	}

	return format.FilesizeApprox
}

// PlayableFormats filters a formats list down to the entries that carry
// at least one media stream.
func PlayableFormats(formats []Format) []Format {
	playable := make([]Format, 0, len(formats))
	for _, format := range formats {
		if format.HasMedia() {
			playable = append(playable, format)
		}
	}

	return playable
}

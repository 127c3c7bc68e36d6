package downloads

import "github.com/hbomb79/Syphon/internal/media"

type (
	infoResponse struct {
		Title            string `json:"title"`
		Duration         *int   `json:"duration"`
		DurationText     string `json:"duration_text"`
		Uploader         string `json:"uploader,omitempty"`
		UploadDate       string `json:"upload_date,omitempty"`
		ViewCount        *int64 `json:"view_count"`
		LikeCount        *int64 `json:"like_count"`
		CommentCount     *int64 `json:"comment_count"`
		Platform         string `json:"platform"`
		Thumbnail        string `json:"thumbnail,omitempty"`
		FormatsAvailable int    `json:"formats_available"`
		FilesizeApprox   *int64 `json:"filesize_approx"`
		Description      string `json:"description"`
	}

	formatDto struct {
		FormatID string  `json:"format_id"`
		Ext      string  `json:"ext"`
		Quality  string  `json:"quality"`
		Filesize *int64  `json:"filesize"`
		VCodec   string  `json:"vcodec"`
		ACodec   string  `json:"acodec"`
		Height   int     `json:"height,omitempty"`
		Width    int     `json:"width,omitempty"`
		FPS      float64 `json:"fps,omitempty"`
	}

	formatsResponse struct {
		Title       string      `json:"title"`
		Formats     []formatDto `json:"formats"`
		FormatCount int         `json:"format_count"`
	}
)

func newInfoResponse(metadata *media.Metadata) *infoResponse {
	response := &infoResponse{
		Title:            metadata.Title,
		DurationText:     "Unknown",
		Uploader:         metadata.Author(),
		UploadDate:       metadata.UploadDate,
		ViewCount:        metadata.ViewCount,
		LikeCount:        metadata.LikeCount,
		CommentCount:     metadata.CommentCount,
		Platform:         metadata.ExtractorKey,
		Thumbnail:        metadata.Thumbnail(),
		FormatsAvailable: len(metadata.Formats),
		FilesizeApprox:   metadata.ApproxFilesize(),
		Description:      metadata.ShortDescription(),
	}

	if response.Title == "" {
		response.Title = "Unknown Title"
	}
	if response.Platform == "" {
		response.Platform = "Unknown"
	}
	if metadata.Duration > 0 {
		seconds := int(metadata.Duration)
		response.Duration = &seconds
		response.DurationText = media.FormatDuration(seconds)
	}

	return response
}

func newFormatsResponse(metadata *media.Metadata, formats []media.Format) *formatsResponse {
	dtos := make([]formatDto, 0, len(formats))
	for _, format := range formats {
		dtos = append(dtos, formatDto{
			FormatID: format.FormatID,
			Ext:      format.Ext,
			Quality:  format.QualityLabel(),
			Filesize: format.EffectiveFilesize(),
			VCodec:   format.VCodec,
			ACodec:   format.ACodec,
			Height:   format.Height,
			Width:    format.Width,
			FPS:      format.FPS,
		})
	}

	return &formatsResponse{
		Title:       metadata.Title,
		Formats:     dtos,
		FormatCount: len(dtos),
	}
}

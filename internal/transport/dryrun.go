package transport

import (
	"context"

	"safetyrelay/internal/logger"
)

// DryRun logs what would have been sent and reports success.
type DryRun struct {
	logger logger.Logger
}

func NewDryRun(log logger.Logger) *DryRun {
	return &DryRun{logger: log}
}

func (d *DryRun) SendText(ctx context.Context, chatID int64, text string) error {
	d.logger.InfowCtx(ctx, "Dry run: text not sent",
		"chat_id", chatID,
		"length", len(text),
	)
	return nil
}

func (d *DryRun) SendVideo(ctx context.Context, chatID int64, video Video, caption string) error {
	d.logger.InfowCtx(ctx, "Dry run: video not sent",
		"chat_id", chatID,
		"upload", video.IsUpload(),
		"caption_length", len(caption),
	)
	return nil
}

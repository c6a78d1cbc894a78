package postprocessing

import (
	"time"
)

var DefaultPostProcessingSettings = PostProcessingSettings{
	Enabled:      false,
	OutputFormat: "mp4",
	OutputCodec:  "libx264",
	VideoBitRate: "1000k",
	KeepRaw:      true,
}

type PostProcessingSettings struct {
	Enabled      bool   // Whether closed recordings are transcoded at all
	OutputFormat string // Output container format (e.g., "mp4", "mkv")
	OutputCodec  string // Video codec to use (e.g., "libx264")
	VideoBitRate string // Bitrate for video compression (e.g., "1000k")
	Grayscale    bool   // Whether to convert the recording to grayscale
	KeepRaw      bool   // Keep the raw recording next to the transcoded one
}

// ProcessedRecording is the transcoded form of a session recording.
type ProcessedRecording struct {
	Path      string
	RawPath   string
	Codec     string
	Format    string
	StartedAt time.Time
	Duration  time.Duration
}

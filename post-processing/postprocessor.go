package postprocessing

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xfrr/goffmpeg/transcoder"
	"github.com/yeti47/securitycam/ccc/logging"
	"github.com/yeti47/securitycam/config"
	"github.com/yeti47/securitycam/recording"
)

type PostProcessor interface {
	// ProcessRecording transcodes a closed session recording.
	ProcessRecording(rec *recording.Recording) (*ProcessedRecording, error)
}

type FfmpegPostProcessor struct {
	settingsProvider config.SettingsProvider[PostProcessingSettings]
	logger           logging.Logger
}

func NewFfmpegPostProcessor(settingsProvider config.SettingsProvider[PostProcessingSettings], logger logging.Logger) *FfmpegPostProcessor {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &FfmpegPostProcessor{
		settingsProvider: settingsProvider,
		logger:           logger,
	}
}

func (p *FfmpegPostProcessor) ProcessRecording(rec *recording.Recording) (*ProcessedRecording, error) {

	settings := p.settingsProvider.GetSettings()

	outputPath := OutputPath(rec.Path, settings.OutputFormat)
	if outputPath == rec.Path {
		return nil, fmt.Errorf("output path %s equals the raw recording path", outputPath)
	}

	trans := new(transcoder.Transcoder)

	if err := trans.Initialize(rec.Path, outputPath); err != nil {
		return nil, fmt.Errorf("failed to initialize transcoder: %w", err)
	}

	trans.MediaFile().SetVideoCodec(settings.OutputCodec)
	trans.MediaFile().SetOutputFormat(settings.OutputFormat)
	trans.MediaFile().SetSkipAudio(true)

	if settings.Grayscale {
		trans.MediaFile().SetVideoFilter("format=gray")
	}

	if settings.VideoBitRate != "" {
		trans.MediaFile().SetVideoBitRate(settings.VideoBitRate)
	}

	done := trans.Run(false)

	// The input metadata was read during Initialize, so the duration is already known.
	duration, err := ParseDuration(trans.MediaFile().Metadata().Format.Duration)
	if err != nil {
		duration = rec.Duration()
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to transcode recording %s: %w", rec.Path, err)
	}

	if !settings.KeepRaw {
		if err := os.Remove(rec.Path); err != nil {
			p.logger.Warn("Failed to remove raw recording", "path", rec.Path, "error", err)
		}
	}

	p.logger.Info("Recording transcoded", "raw", rec.Path, "output", outputPath, "codec", settings.OutputCodec, "duration", duration)

	return &ProcessedRecording{
		Path:      outputPath,
		RawPath:   rec.Path,
		Codec:     settings.OutputCodec,
		Format:    settings.OutputFormat,
		StartedAt: rec.StartedAt,
		Duration:  duration,
	}, nil
}

// OutputPath swaps the extension of rawPath for format.
func OutputPath(rawPath, format string) string {
	return strings.TrimSuffix(rawPath, filepath.Ext(rawPath)) + "." + strings.TrimLeft(format, ".")
}

// ParseDuration parses the ffprobe duration, given in seconds.
func ParseDuration(durationStr string) (time.Duration, error) {
	if durationStr == "" {
		return 0, fmt.Errorf("empty duration in video metadata")
	}

	durationSeconds, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration '%s': %w", durationStr, err)
	}

	if durationSeconds <= 0 {
		return 0, fmt.Errorf("invalid or zero duration: %f seconds", durationSeconds)
	}

	return time.Duration(durationSeconds * float64(time.Second)), nil
}

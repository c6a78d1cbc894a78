package app

import (
	"fmt"
	"path/filepath"

	"github.com/yeti47/securitycam/config"
	"github.com/yeti47/securitycam/detection"
	eventlevel "github.com/yeti47/securitycam/event-level"
	"github.com/yeti47/securitycam/recording"
)

// cameraSetup is a camera entry resolved against the global configuration.
type cameraSetup struct {
	ID       string
	Device   string
	Detector detection.Kind
	Policy   eventlevel.PolicyKind
	Snapshot recording.SnapshotSettings
	Stream   recording.StreamSettings
}

// resolveCamera applies the global defaults to cam. Every camera writes below its own
// directory so that snapshots of different cameras never collide.
func resolveCamera(cfg *config.Config, cam config.CameraConfig) (cameraSetup, error) {
	kind, err := detection.ParseKind(cfg.CameraDetector(cam))
	if err != nil {
		return cameraSetup{}, fmt.Errorf("camera %s: %w", cam.ID, err)
	}
	policy, err := eventlevel.ParsePolicyKind(cfg.CameraPolicy(cam))
	if err != nil {
		return cameraSetup{}, fmt.Errorf("camera %s: %w", cam.ID, err)
	}

	dir := filepath.Join(cfg.OutputDirectory, cam.ID)

	return cameraSetup{
		ID:       cam.ID,
		Device:   cam.Device,
		Detector: kind,
		Policy:   policy,
		Snapshot: recording.SnapshotSettings{
			Directory:   dir,
			LowQuality:  cfg.Snapshot.LowQuality,
			HighQuality: cfg.Snapshot.HighQuality,
		},
		Stream: recording.StreamSettings{
			Directory: dir,
			Codec:     cfg.Recording.Codec,
			FrameRate: cfg.Recording.FrameRate,
			Width:     cfg.Recording.Width,
			Height:    cfg.Recording.Height,
		},
	}, nil
}

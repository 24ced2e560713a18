package recordings

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xfrr/goffmpeg/transcoder"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/logging"
)

// MetadataProbe extracts metadata from a recording file
type MetadataProbe interface {
	// Duration returns the playback length of the recording
	Duration(filePath string) (time.Duration, error)
}

// FFmpegMetadataProbe implements MetadataProbe using FFmpeg
type FFmpegMetadataProbe struct {
	logger logging.Logger
}

// NewFFmpegMetadataProbe creates a new FFmpeg-based metadata probe
func NewFFmpegMetadataProbe(logger logging.Logger) *FFmpegMetadataProbe {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &FFmpegMetadataProbe{
		logger: logger,
	}
}

// Duration probes the recording with ffprobe and returns its length
func (p *FFmpegMetadataProbe) Duration(filePath string) (time.Duration, error) {
	trans := new(transcoder.Transcoder)
	if err := trans.Initialize(filePath, ""); err != nil {
		return 0, fmt.Errorf("failed to initialize transcoder for metadata: %w", err)
	}

	metadata := trans.MediaFile().Metadata()

	seconds, err := strconv.ParseFloat(metadata.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse recording duration %q: %w", metadata.Format.Duration, err)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// nopMetadataProbe always reports an unknown duration
type nopMetadataProbe struct{}

// NopMetadataProbe is a MetadataProbe for systems without FFmpeg installed.
var NopMetadataProbe MetadataProbe = &nopMetadataProbe{}

// Duration returns zero without touching the file.
func (p *nopMetadataProbe) Duration(filePath string) (time.Duration, error) {
	return 0, nil
}

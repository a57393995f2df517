package config

import "runtime"

const (
	defaultStagingDir       = "~/.local/share/opusify/staging"
	defaultLogDir           = "~/.local/share/opusify/logs"
	defaultStateDir         = "~/.local/share/opusify/state"
	defaultScanPattern      = `\.(mp3|m4a|m4b)$`
	defaultCodec            = "opus"
	defaultExtension        = ".m4b"
	defaultBitrate          = "32k"
	defaultChannels         = 1
	defaultMinDurationRatio = 0.98
	defaultDisposal         = DisposalKeep
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Disposal policies for originals whose extension differs from the output.
const (
	DisposalKeep   = "keep"
	DisposalRename = "rename"
	DisposalDelete = "delete"
)

var defaultStereoFilenameMarkers = []string{"dramatized"}

var defaultStereoPublishers = []string{"GraphicAudio"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
		},
		Scan: Scan{
			Pattern: defaultScanPattern,
		},
		Encode: Encode{
			Codec:     defaultCodec,
			Extension: defaultExtension,
			Bitrate:   defaultBitrate,
			Channels:  defaultChannels,
		},
		Policy: Policy{
			StereoFilenameMarkers: append([]string(nil), defaultStereoFilenameMarkers...),
			StereoPublishers:      append([]string(nil), defaultStereoPublishers...),
		},
		Run: Run{
			Workers:          defaultWorkers(),
			MinDurationRatio: defaultMinDurationRatio,
			Disposal:         defaultDisposal,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultWorkers() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	if n > 8 {
		n = 8
	}
	return n
}

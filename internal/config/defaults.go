package config

const (
	defaultShareDir          = "~/.local/share/shuttle"
	defaultMediaDir          = "/mnt/media/landing_point/Video"
	defaultTempDir           = "/var/tmp/shuttle"
	defaultRAMDir            = "/dev/shm"
	defaultStoreBackend      = StoreBackendFile
	defaultQueuePollInterval = 10
	defaultMaxRetries        = 3
	defaultStaleClaimMinutes = 0
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

var (
	defaultExtensions  = []string{".mkv"}
	defaultSkipMarkers = []string{"_final", "_DV_P8"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ShareDir: defaultShareDir,
			MediaDir: defaultMediaDir,
			TempDir:  defaultTempDir,
			RAMDir:   defaultRAMDir,
		},
		Store: Store{
			Backend: defaultStoreBackend,
		},
		Workflow: Workflow{
			QueuePollInterval: defaultQueuePollInterval,
			MaxRetries:        defaultMaxRetries,
			StaleClaimMinutes: defaultStaleClaimMinutes,
		},
		Scanner: Scanner{
			Extensions:  append([]string(nil), defaultExtensions...),
			SkipMarkers: append([]string(nil), defaultSkipMarkers...),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Binaries: Binaries{
			FFmpeg:   "ffmpeg",
			FFprobe:  "ffprobe",
			DoviTool: "dovi_tool",
			MKVMerge: "mkvmerge",
		},
	}
}

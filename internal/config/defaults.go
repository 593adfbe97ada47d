package config

const (
	defaultInboxDir        = "~/.local/share/kasikai/inbox"
	defaultProcessedDir    = "~/.local/share/kasikai/processed"
	defaultDataDir         = "~/.local/share/kasikai/data"
	defaultLogDir          = "~/.local/share/kasikai/logs"
	defaultBookingConfig   = "~/.config/kasikai/rooms.json"
	defaultAPIBind         = "0.0.0.0:5000"
	defaultDebounceSeconds = 5
	defaultMaxUploadMiB    = 16
	defaultMaxFilesPerReq  = 10
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InboxDir:      defaultInboxDir,
			ProcessedDir:  defaultProcessedDir,
			DataDir:       defaultDataDir,
			LogDir:        defaultLogDir,
			BookingConfig: defaultBookingConfig,
			APIBind:       defaultAPIBind,
		},
		Ingest: Ingest{
			DebounceSeconds: defaultDebounceSeconds,
			PurgeProcessed:  true,
		},
		Server: Server{
			MaxUploadMiB:      defaultMaxUploadMiB,
			MaxFilesPerUpload: defaultMaxFilesPerReq,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

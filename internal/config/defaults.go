package config

const (
	defaultLogDir         = "~/.local/share/shuttle/logs"
	defaultHistoryDB      = "~/.local/share/shuttle/history.db"
	defaultAPIBind        = "127.0.0.1:7719"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultConcurrency    = 3
	defaultSweepMaxAge    = 72
	defaultEventBuffer    = 512
	defaultConnectTimeout = 15
	defaultSSHPort        = 22
	defaultRsyncBinary    = "rsync"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
			APIBind:   defaultAPIBind,
		},
		Transfers: Transfers{
			Concurrency: defaultConcurrency,
			SweepMaxAge: defaultSweepMaxAge,
			EventBuffer: defaultEventBuffer,
		},
		SSH: SSH{
			ConnectTimeout: defaultConnectTimeout,
			RsyncBinary:    defaultRsyncBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

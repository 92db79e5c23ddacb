package ui

// Config contains TUI-specific configuration.
type Config struct {
	ShowAllFiles bool
	EnableMouse  bool
	HomeDir      string `env:"HOME"`

	// MaxWidth caps the transcript column. Zero means no cap beyond the
	// terminal width.
	MaxWidth uint

	// Timing file or corpus directory being presented.
	Path string

	// Initial playback rate for the simulated transport.
	Speed float64

	// Watch reloads content when the timing file changes on disk.
	Watch bool

	// SeekThresholdMs is passed through to the playback controller.
	SeekThresholdMs int64
}

package transcode

import (
	"github.com/jmylchreest/hlsforge/internal/config"
)

func testLoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{Level: "error", Format: "text"}
}

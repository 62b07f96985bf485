package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// setupLogging sends logs to stderr; stdout carries the stdio transport
// and command output.
func setupLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(lvl)
	return nil
}

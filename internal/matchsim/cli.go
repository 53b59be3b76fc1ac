package matchsim

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/touchline/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging sends logs to both stdout and a file. If logFile is empty a
// timestamped name is used. The returned closer releases the file.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		logFile = "match_sim_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("log_file", logFile))
	return file, nil
}

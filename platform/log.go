package platform

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Hook rotates the access-log file daily.
type Hook struct {
	writer   *os.File
	logPath  string
	fileName string
	fileDate string
}

func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	today := time.Now().Format("2006-01-02")
	line, _ := entry.String()
	if h.fileDate != today {
		h.fileDate = today
		h.writer.Close()
		dir := fmt.Sprintf("%s/%s", h.logPath, h.fileDate)
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			logrus.Error(err)
			return err
		}
		filename := fmt.Sprintf("%s/%s.log", dir, h.fileName)
		h.writer, _ = os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	}
	h.writer.Write([]byte(line))
	return nil
}

type LogFormatter struct {
}

func (m *LogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05.000")
	b.WriteString(fmt.Sprintf("[%s] [%s] %s\n", timestamp, entry.Level, entry.Message))
	return b.Bytes(), nil
}

// InitFile attaches the rotating file hook to the default logrus logger,
// used for the gin access log.
func InitFile(logPath string, fileName string) {
	logrus.SetFormatter(&LogFormatter{})
	today := time.Now().Format("2006-01-02")
	if err := os.MkdirAll(logPath, os.ModePerm); err != nil {
		logrus.Error(err)
		return
	}
	filename := fmt.Sprintf("%s/%s-%s.log", logPath, today, fileName)
	writer, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		logrus.Error(err)
		return
	}
	logrus.AddHook(&Hook{
		writer:   writer,
		logPath:  logPath,
		fileName: fileName,
		fileDate: today,
	})
}

// InitAppLogger builds the application logger that writes to both a dated
// file and stderr.
func InitAppLogger(logPath string, fileName string) *logrus.Logger {
	logger := logrus.New()

	today := time.Now().Format("2006-01-02")
	if err := os.MkdirAll(logPath, os.ModePerm); err != nil {
		logrus.Error(err)
		return logger
	}
	filename := fmt.Sprintf("%s/%s-%s.log", logPath, today, fileName)
	logFile, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		logrus.Error(err)
		return logger
	}
	logger.SetFormatter(&LogFormatter{})
	logger.SetOutput(io.MultiWriter(logFile, os.Stderr))
	return logger
}

var Logger = InitAppLogger("./log", "finchat")

package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

var (
	InfoLog  *log.Logger
	ErrorLog *log.Logger
	WarnLog  *log.Logger
	DebugLog *log.Logger
	logFile  *os.File
	level    = INFO
	initOnce sync.Once
)

const (
	INFO = iota
	DEBUG
)

// ParseLevel maps a LOG_LEVEL value to a level constant.
func ParseLevel(s string) int {
	if strings.EqualFold(strings.TrimSpace(s), "debug") {
		return DEBUG
	}
	return INFO
}

// InitLogger initializes the logger with console output and, when filename
// is not empty, a copy of every line appended to that file.
func InitLogger(filename string, lvl int) error {
	var out io.Writer = os.Stdout
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		logFile = f
		out = io.MultiWriter(os.Stdout, logFile)
	}
	setOutput(out, out)
	level = lvl
	return nil
}

// SetOutput redirects all levels to w.
func SetOutput(w io.Writer) {
	setOutput(w, w)
}

func setOutput(out, errOut io.Writer) {
	InfoLog = log.New(out, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLog = log.New(errOut, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarnLog = log.New(out, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
	DebugLog = log.New(out, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
}

func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Init installs console writers unless InitLogger or SetOutput ran first.
func Init() {
	initOnce.Do(func() {
		if InfoLog == nil {
			setOutput(os.Stdout, os.Stderr)
		}
	})
}

func Info(format string, v ...interface{}) {
	Init()
	InfoLog.Printf(format, v...)
}

func Infof(format string, v ...interface{}) {
	Info(format, v...)
}

func Error(format string, v ...interface{}) {
	Init()
	ErrorLog.Printf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	Error(format, v...)
}

func Warn(format string, v ...interface{}) {
	Init()
	WarnLog.Printf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	Warn(format, v...)
}

func Debugf(format string, v ...interface{}) {
	if level < DEBUG {
		return
	}
	Init()
	DebugLog.Printf(format, v...)
}

// Leveled adapts this package to the leveled logger interface expected by
// the Stripe SDK.
type Leveled struct{}

func (Leveled) Debugf(format string, v ...interface{}) { Debugf(format, v...) }
func (Leveled) Infof(format string, v ...interface{})  { Infof(format, v...) }
func (Leveled) Warnf(format string, v ...interface{})  { Warnf(format, v...) }
func (Leveled) Errorf(format string, v ...interface{}) { Errorf(format, v...) }

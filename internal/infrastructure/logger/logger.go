package logger

import (
	"io"
	"log"
	"os"
)

var (
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Warn  *log.Logger
)

const logFlags = log.Ldate | log.Ltime | log.LUTC | log.Lshortfile

func init() {
	SetOutput(os.Stdout)
}

// SetOutput redirects every level to w. Tests use it to silence or capture logs.
func SetOutput(w io.Writer) {
	Info = log.New(w, "INFO: ", logFlags)
	Error = log.New(w, "ERROR: ", logFlags)
	Debug = log.New(w, "DEBUG: ", logFlags)
	Warn = log.New(w, "WARN: ", logFlags)
}

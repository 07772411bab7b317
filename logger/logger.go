// Package logger exposes leveled loggers with colored prefixes.
package logger

import (
	"io"
	"log"
	"os"

	"github.com/fatih/color"
)

var (
	Info  *log.Logger
	Warn  *log.Logger
	Error *log.Logger
)

const flags = log.Ldate | log.Ltime | log.Lshortfile

func init() {
	Info = log.New(os.Stdout, color.GreenString("[INFO] "), flags)
	Warn = log.New(os.Stdout, color.YellowString("[WARN] "), flags)
	Error = log.New(os.Stderr, color.RedString("[ERROR] "), flags)
}

// SetOutput redirects every level to w. Tests use it to silence output.
func SetOutput(w io.Writer) {
	Info.SetOutput(w)
	Warn.SetOutput(w)
	Error.SetOutput(w)
}

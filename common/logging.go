// Package common provides centralized logging infrastructure for the context
// store service. It implements output routing that directs error-level log
// lines to stderr while sending everything else to stdout, so container
// log collectors can apply different handling per stream.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted logrus output to stdout or stderr based on
// level, without parsing the line beyond a literal "level=error" match.
type OutputSplitter struct{}

// Write implements io.Writer, routing error-level lines to stderr.
func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the shared logrus instance used across the service.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}

package logging

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// CommandLineFormatter prints only the message, which is what people running probectl by hand want to read.
// Fields are appended as key=value pairs so that the session and run identifiers are not lost.
type CommandLineFormatter struct{}

func (f *CommandLineFormatter) Format(entry *log.Entry) ([]byte, error) {
	if len(entry.Data) == 0 {
		return []byte(fmt.Sprintf("%s\n", entry.Message)), nil
	}
	msg := entry.Message
	for _, k := range sortedKeys(entry.Data) {
		if k == Stacktrace {
			continue
		}
		msg += fmt.Sprintf(" %s=%v", k, entry.Data[k])
	}
	return []byte(msg + "\n"), nil
}

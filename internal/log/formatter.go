package log

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// formatter renders entries from a pattern holding %time, %level,
// %field, %msg, %caller and %goroutine placeholders.
type formatter struct {
	pattern string
	time    string
}

func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	out := f.pattern
	out = strings.Replace(out, "%time", entry.Time.Format(f.time), 1)
	out = strings.Replace(out, "%level", entry.Level.String(), 1)
	out = strings.Replace(out, "%field", joinFields(entry), 1)
	out = strings.Replace(out, "%msg", entry.Message, 1)
	out = strings.Replace(out, "%caller", callerOf(entry), 1)
	out = strings.Replace(out, "%goroutine", goroutineID(), 1)
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return []byte(out), nil
}

func callerOf(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "-"
	}
	file := entry.Caller.File
	if i := strings.LastIndex(file, "/"); i >= 0 {
		file = file[i+1:]
	}
	return fmt.Sprintf("%s:%d", file, entry.Caller.Line)
}

// goroutineID extracts the id from the first line of a stack dump. There
// is no runtime API for it.
func goroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))
	if len(fields) > 0 {
		return fields[0]
	}
	return "?"
}

// joinFields renders entry data as k=v pairs in key order, so lines are
// stable for tests and for eyeballs.
func joinFields(entry *logrus.Entry) string {
	if len(entry.Data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fmt.Sprint(entry.Data[k]))
	}
	return strings.Join(parts, ",")
}

package servershm

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/scbus/server-shm/pkg/shm"
)

// Minimal leveled logger for lifecycle events. Default level is Warn; the
// SCSHM_LOG_LEVEL env var or SetLogLevel lowers it.

type logger struct {
	out       io.Writer
	callDepth int
}

var (
	internalLogger = &logger{out: os.Stderr, callDepth: 3}
	logLevel       = levelWarn
)

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
	levelNoPrint
)

var levelName = []string{"Debug", "Info", "Warn", "Error"}

func init() {
	if v := os.Getenv("SCSHM_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n <= levelNoPrint {
			logLevel = n
		}
	}
}

// SetLogLevel changes the internal logger's level. The default is Warn; the
// SCSHM_LOG_LEVEL process env works too.
func SetLogLevel(l int) {
	if l <= levelNoPrint {
		logLevel = l
	}
}

func (l *logger) logf(level int, format string, a ...interface{}) {
	if logLevel > level {
		return
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = buf.WriteString(levelName[level])
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(time.Now().Format("2006-01-02 15:04:05.999999"))
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.location())
	_ = buf.WriteByte(' ')
	_, _ = fmt.Fprintf(buf, format, a...)
	_ = buf.WriteByte('\n')
	_, _ = l.out.Write(buf.Bytes())
}

func (l *logger) debugf(format string, a ...interface{}) { l.logf(levelDebug, format, a...) }
func (l *logger) infof(format string, a ...interface{})  { l.logf(levelInfo, format, a...) }
func (l *logger) warnf(format string, a ...interface{})  { l.logf(levelWarn, format, a...) }
func (l *logger) errorf(format string, a ...interface{}) { l.logf(levelError, format, a...) }

func (l *logger) location() string {
	_, file, line, ok := runtime.Caller(l.callDepth)
	if !ok {
		return "???:0"
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// DebugSegmentDetail prints the state of the bus segment for the given port:
// header fields, directory match count and the current bus values. Intended
// for troubleshooting attachment problems from a third process.
func DebugSegmentDetail(port int, w io.Writer) error {
	name := SegmentName(port)
	seg, err := shm.Acquire(name)
	if err != nil {
		return err
	}
	defer func() {
		if err := shm.Release(seg); err != nil {
			internalLogger.warnf("release segment %s: %v", name, err)
		}
	}()

	blockOff, blockSize, matches := seg.Find(name)

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = fmt.Fprintf(buf, "segment:%s size:%d live:%v epoch:%d owner_pid:%d remaining:%d\n",
		name, seg.Size(), seg.Live(), seg.Epoch(), seg.OwnerPID(), seg.Remaining())
	_, _ = fmt.Fprintf(buf, "bus block: matches:%d off:%d size:%d\n", matches, blockOff, blockSize)
	if matches == 1 && blockSize >= busBlockSize {
		blk := (*busBlock)(seg.Pointer(blockOff))
		_, _ = fmt.Fprintf(buf, "busses: count:%d data_off:%d\n", blk.count, blk.dataOff)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

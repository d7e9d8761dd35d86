package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

const envVar = "LOGLEVEL"

type tagLevel struct {
	tag   string
	level Level
}

var (
	tagLevels   []tagLevel
	tagLevelsMu sync.RWMutex
)

func init() {
	if err := Configure(os.Getenv(envVar)); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", envVar, err)
	}
}

// Configure parses comma-separated "tag=level" directives. A directive without
// "tag=" sets the default level. Loggers derived after this call pick up the
// new levels; DefaultLogger is updated in place.
func Configure(directives string) error {
	var firstErr error
	for _, d := range strings.Split(directives, ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		v := strings.SplitN(d, "=", 2)
		level, err := parseLevel(v[len(v)-1])
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("invalid directive '%s': %v", d, err)
			}
			continue
		}
		if len(v) == 1 {
			defaultLevel = level
			DefaultLogger.Level = level
		} else {
			setTagLevel(v[0], level)
		}
	}
	return firstErr
}

func setTagLevel(tag string, level Level) {
	tagLevelsMu.Lock()
	defer tagLevelsMu.Unlock()
	for i := range tagLevels {
		if tagLevels[i].tag == tag {
			tagLevels[i].level = level
			return
		}
	}
	tagLevels = append(tagLevels, tagLevel{tag, level})
}

// Tags match exactly, or by prefix up to a '/' (so "capture" also covers
// "capture/1a2b3c4d").
func determineLevel(tag string, fallback Level) Level {
	tagLevelsMu.RLock()
	defer tagLevelsMu.RUnlock()
	for _, e := range tagLevels {
		if e.tag == tag {
			return e.level
		}
	}
	for _, e := range tagLevels {
		if strings.HasPrefix(tag, e.tag+"/") {
			return e.level
		}
	}
	return fallback
}

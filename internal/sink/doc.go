// Package sink provides encoders for the raw frame path: a file writer, a
// broadcaster that fans frames out to subscribers, a websocket preview
// handler fed by a broadcaster, and a tee.
package sink

import (
	"github.com/lanikai/camsource/internal/logging"
)

var log = logging.DefaultLogger.WithTag("sink")

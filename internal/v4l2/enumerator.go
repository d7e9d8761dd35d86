package v4l2

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/pkg/errors"

	"github.com/lanikai/camsource/internal/capture"
	"github.com/lanikai/camsource/internal/logging"
)

var log = logging.DefaultLogger.WithTag("v4l2")

// Probed device nodes to remember.
const probeCacheSize = 16

// What a device node reported when probed.
type deviceInfo struct {
	path    string
	driver  string
	card    string
	capture bool
	fourccs []uint32
	sizes   []capture.Size
}

func (info *deviceInfo) addSize(size capture.Size) {
	for _, s := range info.sizes {
		if s == size {
			return
		}
	}
	info.sizes = append(info.sizes, size)
}

func (info *deviceInfo) capabilities() capture.Capabilities {
	caps := capture.Capabilities{PreviewSizes: info.sizes}
	for _, fourcc := range info.fourccs {
		if fourcc == V4L2_PIX_FMT_NV21 || fourcc == V4L2_PIX_FMT_YUYV {
			// Both are delivered as NV21.
			caps.Formats = []capture.PixelFormat{capture.PixelFormatNV21}
			break
		}
	}
	return caps
}

// Enumerator lists and opens V4L2 capture devices. It implements
// capture.Enumerator.
type Enumerator struct {
	configured []DeviceConfig
	pattern    string

	// Swapped out in tests.
	probe func(path string) (*deviceInfo, error)
	open  func(path string, info *deviceInfo) (capture.Device, error)

	mu      sync.Mutex
	cache   *lru.Cache // path -> *deviceInfo
	devices []DeviceConfig
}

// NewEnumerator returns an enumerator over the given devices, in order. If
// none are given, /dev/video* nodes that support streaming capture are used.
func NewEnumerator(devices []DeviceConfig) *Enumerator {
	return &Enumerator{
		configured: devices,
		pattern:    "/dev/video*",
		probe:      probe,
		open:       open,
		cache:      lru.New(probeCacheSize),
	}
}

// Cameras lists the available devices. Ids passed to Open index into the most
// recent listing.
func (e *Enumerator) Cameras() ([]capture.CameraInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	devices := e.configured
	if len(devices) == 0 {
		var err error
		if devices, err = e.scan(); err != nil {
			return nil, err
		}
	}
	e.devices = devices

	cams := make([]capture.CameraInfo, len(devices))
	for i, d := range devices {
		cams[i] = capture.CameraInfo{Facing: d.Facing, Orientation: d.Orientation}
	}
	return cams, nil
}

func (e *Enumerator) scan() ([]DeviceConfig, error) {
	paths, err := filepath.Glob(e.pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "v4l2: scanning %s", e.pattern)
	}
	sort.Strings(paths)

	var devices []DeviceConfig
	for _, path := range paths {
		info, err := e.lookup(path)
		if err != nil {
			log.Debug("skipping %s: %v", path, err)
			continue
		}
		if !info.capture {
			log.Debug("skipping %s (%s): not a streaming capture device", path, info.card)
			continue
		}
		devices = append(devices, DeviceConfig{Path: path})
	}
	return devices, nil
}

// Probe path, or return the cached result. Failures are not cached.
func (e *Enumerator) lookup(path string) (*deviceInfo, error) {
	if v, ok := e.cache.Get(path); ok {
		return v.(*deviceInfo), nil
	}
	info, err := e.probe(path)
	if err != nil {
		return nil, err
	}
	log.Debug("%s: %s (%s), capture=%v", path, info.card, info.driver, info.capture)
	e.cache.Add(path, info)
	return info, nil
}

// Open opens camera id from the last call to Cameras.
func (e *Enumerator) Open(id int) (capture.Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id < 0 || id >= len(e.devices) {
		return nil, errors.Errorf("v4l2: no camera %d", id)
	}
	path := e.devices[id].Path

	info, err := e.lookup(path)
	if err != nil {
		return nil, err
	}
	if !info.capture {
		return nil, errors.Errorf("v4l2: %s is not a streaming capture device", path)
	}
	dev, err := e.open(path, info)
	if err != nil {
		// The node may have been replaced; probe it afresh next time.
		e.cache.Remove(path)
		return nil, err
	}
	return dev, nil
}

package platform

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"cdr.dev/slog/v3"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/xerrors"

	"ulogme/tracker"
)

const (
	evKey      = 0x01
	keyPressed = 1
)

// inputEventSize is sizeof(struct input_event): a timeval followed by
// type, code and value.
var inputEventSize = 2*strconv.IntSize/8 + 8

// Keypresser is the part of tracker.KeyCounter the readers need.
type Keypresser interface {
	RecordKeypress()
}

var _ Keypresser = (*tracker.KeyCounter)(nil)

// KeyboardDevices lists the evdev keyboards exposed by udev.
func KeyboardDevices() ([]string, error) {
	var devices []string
	for _, pattern := range []string{"/dev/input/by-id/*-event-kbd", "/dev/input/by-path/*-event-kbd"} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, xerrors.Errorf("glob %s: %w", pattern, err)
		}
		devices = append(devices, matches...)
	}
	devices = uniqueDevices(devices)
	if len(devices) == 0 {
		return nil, xerrors.Errorf("no keyboard device: %w", tracker.ErrUnavailable)
	}
	return devices, nil
}

// uniqueDevices drops links resolving to an already listed device. udev
// links one keyboard from both by-id and by-path, and every open file gets
// its own copy of each event.
func uniqueDevices(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		target, err := filepath.EvalSymlinks(p)
		if err != nil {
			target = p
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, p)
	}
	return out
}

// CountKeypresses reads input events from r and records one keypress per
// key-down event. Repeats and releases are ignored, and the key code is
// never looked at. It returns when r fails or reaches EOF.
func CountKeypresses(r io.Reader, keys Keypresser) error {
	buf := make([]byte, inputEventSize)
	off := inputEventSize - 8
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if xerrors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		typ := binary.LittleEndian.Uint16(buf[off:])
		value := int32(binary.LittleEndian.Uint32(buf[off+4:]))
		if typ == evKey && value == keyPressed {
			keys.RecordKeypress()
		}
	}
}

// WatchKeyboards counts key presses from every keyboard device until ctx
// is canceled. Reading /dev/input needs membership of the input group.
func WatchKeyboards(ctx context.Context, devices []string, keys Keypresser, logger slog.Logger) error {
	devices = uniqueDevices(devices)
	if len(devices) == 0 {
		return xerrors.Errorf("no keyboard device: %w", tracker.ErrUnavailable)
	}
	var (
		files []*os.File
		errs  *multierror.Error
	)
	for _, dev := range devices {
		f, err := os.Open(dev)
		if err != nil {
			errs = multierror.Append(errs, xerrors.Errorf("open %s: %w", dev, err))
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return xerrors.Errorf("%v: %w", errs.ErrorOrNil(), tracker.ErrUnavailable)
	}
	if err := errs.ErrorOrNil(); err != nil {
		logger.Warn(ctx, "some keyboards cannot be read", slog.Error(err))
	}

	var wg sync.WaitGroup
	for _, f := range files {
		wg.Add(1)
		go func(f *os.File) {
			defer wg.Done()
			if err := CountKeypresses(f, keys); err != nil && ctx.Err() == nil {
				logger.Warn(ctx, "keyboard reader stopped", slog.F("device", f.Name()), slog.Error(err))
			}
		}(f)
	}

	<-ctx.Done()
	// closing unblocks the pending reads
	for _, f := range files {
		_ = f.Close()
	}
	wg.Wait()
	return nil
}

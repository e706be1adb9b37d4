package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/hb9tf/fieldsense/sensor"
)

const (
	SourceName         = "gps"
	DefaultDevice      = "/dev/ttyAMA0"
	DefaultBaud        = 9600
	DefaultPrefix      = "$GPGGA"
	defaultAttempts    = 10
	defaultReadTimeout = time.Second

	// maxSentenceLen is the longest NMEA 0183 sentence including the line end.
	maxSentenceLen = 82
)

// ErrNoFix is returned when the receiver reports a fix sentence without a position.
var ErrNoFix = errors.New("receiver has no fix")

// errReadTimeout marks a read that returned no data within the port's read timeout.
var errReadTimeout = errors.New("serial read timed out")

type Source struct {
	Device      string
	Baud        int
	MaxAttempts int
	ReadTimeout time.Duration
	// Prefix selects the fix sentence, e.g. $GPGGA or $GNGGA.
	Prefix string
}

func (s Source) Name() string {
	return SourceName
}

// Fix opens the serial device and returns the first position reported within
// the attempt budget. A nil location without error means no fix sentence arrived.
func (s *Source) Fix(ctx context.Context) (*sensor.Location, error) {
	device := s.Device
	if device == "" {
		device = DefaultDevice
	}
	baud := s.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}
	readTimeout := s.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("%w: unable to open %s: %s", sensor.ErrSourceUnavailable, device, err)
	}
	defer port.Close()
	if err := port.SetReadTimeout(readTimeout); err != nil {
		return nil, fmt.Errorf("%w: unable to set read timeout on %s: %s", sensor.ErrSourceUnavailable, device, err)
	}
	attempts := s.attempts()
	ctx, cancel := context.WithTimeout(ctx, readTimeout*time.Duration(attempts))
	defer cancel()
	// Unblock a pending read once the cycle is cancelled or the budget is spent.
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer stop()

	loc, err := ReadFix(&timeoutReader{r: port}, s.prefix(), attempts)
	if err != nil && ctx.Err() != nil {
		glog.V(1).Infof("no fix from %s before deadline: %s", device, ctx.Err())
		return nil, nil
	}
	return loc, err
}

func (s *Source) prefix() string {
	if s.Prefix == "" {
		return DefaultPrefix
	}
	return s.Prefix
}

func (s *Source) attempts() int {
	if s.MaxAttempts <= 0 {
		return defaultAttempts
	}
	return s.MaxAttempts
}

// ReadFix reads at most maxAttempts lines from r and parses the first one
// starting with prefix. A read timeout counts as one attempt, so does a run of
// maxSentenceLen bytes without a line end, which is dropped. Data received
// before a read timeout is kept and completed by the following reads.
func ReadFix(r io.Reader, prefix string, maxAttempts int) (*sensor.Location, error) {
	br := bufio.NewReaderSize(r, maxSentenceLen)
	var pending []byte
	for attempt := 0; attempt < maxAttempts; attempt++ {
		chunk, err := br.ReadSlice('\n')
		pending = append(pending, chunk...)
		eof := false
		switch {
		case err == nil:
		case errors.Is(err, errReadTimeout):
			glog.V(2).Infof("GPS read %d/%d timed out", attempt+1, maxAttempts)
			if len(pending) > maxSentenceLen {
				pending = pending[:0]
			}
			continue
		case errors.Is(err, bufio.ErrBufferFull):
			glog.V(2).Infof("dropping %d bytes without line end", len(pending))
			pending = pending[:0]
			continue
		case errors.Is(err, io.EOF):
			if len(pending) == 0 {
				return nil, nil
			}
			eof = true
		default:
			return nil, fmt.Errorf("%w: read failed: %s", sensor.ErrSourceUnavailable, err)
		}

		line := strings.TrimSpace(string(pending))
		pending = pending[:0]
		glog.V(3).Info(line)
		if strings.HasPrefix(line, prefix) {
			return parseFix(line)
		}
		if eof {
			return nil, nil
		}
	}
	glog.V(1).Infof("no %s sentence within %d reads", prefix, maxAttempts)
	return nil, nil
}

func parseFix(line string) (*sensor.Location, error) {
	s, err := nmea.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sensor.ErrParse, err)
	}
	gga, ok := s.(nmea.GGA)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a fix sentence", sensor.ErrParse, s.DataType())
	}
	if gga.FixQuality == nmea.Invalid {
		return nil, ErrNoFix
	}
	return &sensor.Location{Lat: gga.Latitude, Lon: gga.Longitude}, nil
}

// timeoutReader turns the empty reads a serial port returns on timeout into errors.
type timeoutReader struct {
	r io.Reader
}

func (t *timeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n == 0 && err == nil {
		return 0, errReadTimeout
	}
	return n, err
}

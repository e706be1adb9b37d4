package wifi

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/fieldsense/sensor"
)

const (
	SourceName     = "wifi"
	scanAlias      = "iw"
	defaultTimeout = 10 * time.Second
	pipeWaitDelay  = time.Second

	// stationMarker starts a new station block in `iw dev <iface> scan` output.
	// Station lines are not indented, nested attributes such as "BSS Load" are.
	stationMarker = "BSS "
	signalMarker  = "signal:"
)

type Source struct {
	Interface string
	Timeout   time.Duration
	// Sudo prefixes the scan command with sudo, scanning needs CAP_NET_ADMIN.
	Sudo bool
	// Binary overrides the iw executable.
	Binary string
}

func (s Source) Name() string {
	return SourceName
}

func (s *Source) command(ctx context.Context) *exec.Cmd {
	binary := scanAlias
	if s.Binary != "" {
		binary = s.Binary
	}
	args := []string{"dev", s.Interface, "scan"}
	var cmd *exec.Cmd
	if s.Sudo {
		cmd = exec.CommandContext(ctx, "sudo", append([]string{binary}, args...)...)
	} else {
		cmd = exec.CommandContext(ctx, binary, args...)
	}
	cmd.WaitDelay = pipeWaitDelay
	return cmd
}

// Collect runs a scan on the configured interface and returns one observation
// per station found.
func (s *Source) Collect(ctx context.Context) ([]sensor.Observation, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := s.command(ctx)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sensor.ErrSourceUnavailable, err)
	}
	glog.V(1).Infof("Running Wi-Fi scan: %q\n", cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: unable to start scan: %s", sensor.ErrSourceUnavailable, err)
	}
	// Killing sudo leaves iw running with the pipe open.
	closePipe := context.AfterFunc(ctx, func() { out.Close() })
	defer closePipe()

	observations := Parse(out)
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%w: scan command ended with error: %s", sensor.ErrSourceUnavailable, err)
	}
	return observations, nil
}

// Parse turns scan output into wifi observations. The signal value is
// attributed to the station block it was last seen in and carries over to
// following stations which do not report one themselves.
func Parse(r io.Reader) []sensor.Observation {
	var (
		observations []sensor.Observation
		address      string
		signal       *int
	)
	flush := func() {
		if address == "" {
			return
		}
		o := sensor.Observation{
			Kind:         sensor.KindWiFi,
			IdentityHash: sensor.HashAddress(address),
		}
		if signal != nil {
			o.SignalStrength = sensor.Signal(*signal)
		}
		observations = append(observations, o)
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		raw := scanner.Text()
		glog.V(3).Info(raw)
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(raw, stationMarker):
			flush()
			fields := strings.Fields(line)
			if len(fields) < 2 {
				glog.Warningf("station line without address: %q\n", line)
				address = ""
				continue
			}
			address = fields[1]
		case strings.Contains(line, signalMarker):
			v, err := parseSignal(line)
			if err != nil {
				glog.Warningf("error parsing line: %s\n", err)
				continue
			}
			signal = &v
		}
	}
	if err := scanner.Err(); err != nil {
		glog.Warningf("error reading scan output: %s\n", err)
	}
	flush()

	return observations
}

func parseSignal(line string) (int, error) {
	_, rest, _ := strings.Cut(line, signalMarker)
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: no signal value in %q", sensor.ErrParse, line)
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: signal value in %q: %s", sensor.ErrParse, line, err)
	}
	return int(v), nil
}

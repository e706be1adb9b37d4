package deauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/hb9tf/fieldsense/sensor"
)

const (
	SourceName      = "deauth"
	defaultTimeout  = 10 * time.Second
	defaultSnapLen  = 512
	pcapReadTimeout = 500 * time.Millisecond

	mgmtFrameType       = 0
	deauthFrameSubtype  = 12
	maxConsecutiveFails = 100
)

type Source struct {
	// Interface must be in monitor mode.
	Interface string
	Timeout   time.Duration
	SnapLen   int32
}

func (s Source) Name() string {
	return SourceName
}

// Collect captures frames on the monitor interface until the timeout expires
// and returns one observation per deauthentication frame seen.
func (s *Source) Collect(ctx context.Context) ([]sensor.Observation, error) {
	snapLen := s.SnapLen
	if snapLen <= 0 {
		snapLen = defaultSnapLen
	}
	handle, err := pcap.OpenLive(s.Interface, snapLen, true, pcapReadTimeout)
	if err != nil {
		glog.Errorf("unable to start capture on %s: %s", s.Interface, err)
		return nil, fmt.Errorf("%w: capture on %s: %s", sensor.ErrSourceUnavailable, s.Interface, err)
	}
	defer handle.Close()

	linkType := handle.LinkType()
	if linkType != layers.LinkTypeIEEE80211Radio && linkType != layers.LinkTypeIEEE802_11 {
		glog.Errorf("interface %s is not in monitor mode (link type %s)", s.Interface, linkType)
		return nil, fmt.Errorf("%w: %s is not in monitor mode (link type %s)", sensor.ErrSourceUnavailable, s.Interface, linkType)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	glog.V(1).Infof("Monitoring %s for deauthentication frames for %s", s.Interface, timeout)
	return Monitor(ctx, handle, linkType), nil
}

// Monitor reads frames from src until ctx is done or src is exhausted.
// Sources are expected to return a timeout error periodically so the deadline
// is honoured while the air is quiet.
func Monitor(ctx context.Context, src gopacket.PacketDataSource, decoder gopacket.Decoder) []sensor.Observation {
	var (
		observations []sensor.Observation
		fails        int
	)
	for ctx.Err() == nil {
		data, _, err := src.ReadPacketData()
		switch {
		case err == nil:
			fails = 0
		case errors.Is(err, pcap.NextErrorTimeoutExpired):
			continue
		case errors.Is(err, io.EOF):
			return observations
		default:
			fails++
			if fails >= maxConsecutiveFails {
				glog.Errorf("giving up capture after %d read errors: %s", fails, err)
				return observations
			}
			glog.Warningf("error reading frame: %s\n", err)
			continue
		}

		packet := gopacket.NewPacket(data, decoder, gopacket.NoCopy)
		if obs, ok := Classify(packet); ok {
			glog.Warningf("deauthentication frame from %s", obs.Address)
			observations = append(observations, obs)
		}
	}
	return observations
}

// Classify reports whether the packet is an 802.11 deauthentication frame.
func Classify(packet gopacket.Packet) (sensor.Observation, bool) {
	layer := packet.Layer(layers.LayerTypeDot11)
	if layer == nil {
		return sensor.Observation{}, false
	}
	obs, ok := classifyFrame(layer.(*layers.Dot11))
	if !ok {
		return obs, false
	}
	if rt, isRadioTap := packet.Layer(layers.LayerTypeRadioTap).(*layers.RadioTap); isRadioTap && rt.Present.DBMAntennaSignal() {
		obs.SignalStrength = sensor.Signal(int(rt.DBMAntennaSignal))
	}
	return obs, true
}

func classifyFrame(frame *layers.Dot11) (sensor.Observation, bool) {
	frameType := uint8(frame.Type.MainType())
	subtype := uint8(frame.Type) >> 2
	if frameType != mgmtFrameType || subtype != deauthFrameSubtype {
		return sensor.Observation{}, false
	}
	return sensor.Observation{
		Kind:    sensor.KindDeauth,
		Address: frame.Address2.String(),
	}, true
}

// Package replay reads robot link traffic captured as pcap and feeds the
// recorded sensor frames back through the exploration engine.
package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/maze.explorer/internal/monitoring"
)

// DefaultPort is the robot controller's TCP port.
const DefaultPort = 8080

// Direction tells which side of the link sent a line.
type Direction int

const (
	FromRobot Direction = iota + 1
	ToRobot
)

func (d Direction) String() string {
	switch d {
	case FromRobot:
		return "robot->host"
	case ToRobot:
		return "host->robot"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Line is one framed message seen on the link.
type Line struct {
	Time      time.Time
	Direction Direction
	Text      string
}

// ExtractLines reassembles the link's byte streams from a pcap and splits
// them into lines. port is the robot's TCP or UDP port. Lines may end in a
// newline or a NUL.
func ExtractLines(r io.Reader, port uint16) ([]Line, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	src := gopacket.NewPacketSource(pr, pr.LinkType())
	src.NoCopy = true

	streams := map[Direction]*lineSplitter{
		FromRobot: {dir: FromRobot},
		ToRobot:   {dir: ToRobot},
	}
	var out []Line
	packets := 0
	for {
		packet, err := src.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("read packet %d: %w", packets+1, err)
		}
		packets++

		dir, payload := classify(packet, port)
		if dir == 0 || len(payload) == 0 {
			continue
		}
		out = streams[dir].feed(payload, packet.Metadata().Timestamp, out)
	}
	for _, s := range streams {
		out = s.flush(out)
	}
	monitoring.Debugf("replay: %d packets, %d lines", packets, len(out))
	return out, nil
}

func classify(packet gopacket.Packet, port uint16) (Direction, []byte) {
	if tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		switch {
		case uint16(tcp.SrcPort) == port:
			return FromRobot, tcp.Payload
		case uint16(tcp.DstPort) == port:
			return ToRobot, tcp.Payload
		}
	}
	if udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		switch {
		case uint16(udp.SrcPort) == port:
			return FromRobot, udp.Payload
		case uint16(udp.DstPort) == port:
			return ToRobot, udp.Payload
		}
	}
	return 0, nil
}

type lineSplitter struct {
	dir     Direction
	pending []byte
	since   time.Time
}

func (s *lineSplitter) feed(b []byte, ts time.Time, out []Line) []Line {
	if len(s.pending) == 0 {
		s.since = ts
	}
	s.pending = append(s.pending, b...)
	for {
		i := bytes.IndexAny(s.pending, "\n\x00")
		if i < 0 {
			return out
		}
		text := string(bytes.TrimRight(s.pending[:i], "\r"))
		s.pending = s.pending[i+1:]
		if text != "" {
			out = append(out, Line{Time: s.since, Direction: s.dir, Text: text})
		}
		s.since = ts
	}
}

func (s *lineSplitter) flush(out []Line) []Line {
	if text := string(bytes.TrimSpace(s.pending)); text != "" {
		out = append(out, Line{Time: s.since, Direction: s.dir, Text: text})
	}
	s.pending = nil
	return out
}

// Writer records link lines as a pcap of a single TCP connection between
// the host and the robot.
type Writer struct {
	w        *pcapgo.Writer
	port     uint16
	hostSeq  uint32
	robotSeq uint32
	hostIP   net.IP
	robotIP  net.IP
	hostMAC  net.HardwareAddr
	robotMAC net.HardwareAddr
	hostPort layers.TCPPort
}

// NewWriter writes the pcap file header to w.
func NewWriter(w io.Writer, port uint16) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write capture header: %w", err)
	}
	return &Writer{
		w:        pw,
		port:     port,
		hostSeq:  1000,
		robotSeq: 5000,
		hostIP:   net.IPv4(192, 168, 16, 2),
		robotIP:  net.IPv4(192, 168, 16, 1),
		hostMAC:  net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02},
		robotMAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01},
		hostPort: 50000,
	}, nil
}

// WriteLine records text, newline terminated, as one TCP segment.
func (w *Writer) WriteLine(ts time.Time, dir Direction, text string) error {
	payload := []byte(text + "\n")

	eth := layers.Ethernet{EthernetType: layers.EthernetTypeIPv4}
	ip := layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP}
	tcp := layers.TCP{PSH: true, ACK: true, Window: 65535}
	switch dir {
	case FromRobot:
		eth.SrcMAC, eth.DstMAC = w.robotMAC, w.hostMAC
		ip.SrcIP, ip.DstIP = w.robotIP, w.hostIP
		tcp.SrcPort, tcp.DstPort = layers.TCPPort(w.port), w.hostPort
		tcp.Seq, tcp.Ack = w.robotSeq, w.hostSeq
		w.robotSeq += uint32(len(payload))
	case ToRobot:
		eth.SrcMAC, eth.DstMAC = w.hostMAC, w.robotMAC
		ip.SrcIP, ip.DstIP = w.hostIP, w.robotIP
		tcp.SrcPort, tcp.DstPort = w.hostPort, layers.TCPPort(w.port)
		tcp.Seq, tcp.Ack = w.hostSeq, w.robotSeq
		w.hostSeq += uint32(len(payload))
	default:
		return fmt.Errorf("replay: unknown direction %d", dir)
	}
	if err := tcp.SetNetworkLayerForChecksum(&ip); err != nil {
		return err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &ip, &tcp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("serialize segment: %w", err)
	}
	data := buf.Bytes()
	return w.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}, data)
}

var nowFunc = time.Now

package wol

import (
	"bytes"
	"fmt"
	"net"
	"strconv"

	"codeberg.org/znoxx/sleepynas/internal/logger"
)

const (
	DefaultBroadcast = "255.255.255.255"
	packetLen        = 6 + 16*6
)

// DefaultPorts are the conventional Wake-on-LAN ports (echo and discard).
var DefaultPorts = []int{7, 9}

// Sender broadcasts Wake-on-LAN magic packets.
type Sender struct {
	broadcast string
	ports     []int
}

// NewSender sends to broadcast on each of ports; empty values mean the defaults.
func NewSender(broadcast string, ports ...int) *Sender {
	if broadcast == "" {
		broadcast = DefaultBroadcast
	}
	if len(ports) == 0 {
		ports = DefaultPorts
	}

	return &Sender{
		broadcast: broadcast,
		ports:     ports,
	}
}

// Wake sends a magic packet for mac. It fails only if no port could be used.
func (s *Sender) Wake(mac string) error {
	hwAddr, err := net.ParseMAC(mac)
	if err != nil {
		return fmt.Errorf("invalid MAC address: %w", err)
	}

	packet, err := BuildMagicPacket(hwAddr)
	if err != nil {
		return err
	}

	var lastErr error
	sent := 0
	for _, port := range s.ports {
		addr := net.JoinHostPort(s.broadcast, strconv.Itoa(port))
		if err := sendUDP(addr, packet); err != nil {
			logger.Warn().Err(err).Str("addr", addr).Msg("Failed to send magic packet")
			lastErr = err
			continue
		}
		sent++
		logger.Debug().Str("mac", mac).Str("addr", addr).Msg("Magic packet sent")
	}

	if sent == 0 {
		return fmt.Errorf("failed to send magic packet: %w", lastErr)
	}

	return nil
}

func sendUDP(addr string, packet []byte) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to resolve address %s: %w", addr, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return fmt.Errorf("failed to create UDP connection: %w", err)
	}
	defer conn.Close()

	n, err := conn.Write(packet)
	if err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	if n != len(packet) {
		return fmt.Errorf("incomplete packet send: sent %d of %d bytes", n, len(packet))
	}

	return nil
}

// BuildMagicPacket returns 6 bytes of 0xFF followed by 16 repetitions of mac.
func BuildMagicPacket(mac net.HardwareAddr) ([]byte, error) {
	if len(mac) != 6 {
		return nil, fmt.Errorf("invalid MAC address length: expected 6 bytes, got %d", len(mac))
	}

	var buf bytes.Buffer
	buf.Grow(packetLen)
	buf.Write(bytes.Repeat([]byte{0xFF}, 6))
	for i := 0; i < 16; i++ {
		buf.Write(mac)
	}

	return buf.Bytes(), nil
}

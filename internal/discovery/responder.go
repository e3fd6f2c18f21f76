// Package discovery answers host-identity probes so clients on the same
// network can find the bridge without configuration.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// probeMagic is the fixed payload a client broadcasts when scanning.
const probeMagic = "DiscoverDevices_15dsa15s8"

type reply struct {
	Name string `json:"name"`
}

// Responder answers UDP probes with the host's display name, unicast to
// the prober.
type Responder struct {
	pc   net.PacketConn
	name string
}

func Listen(addr, name string) (*Responder, error) {
	pc, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("discovery: listen %s: %w", addr, err)
	}
	if name == "" {
		name = Hostname()
	}
	return &Responder{pc: pc, name: name}, nil
}

// Addr returns the bound local address.
func (r *Responder) Addr() net.Addr {
	return r.pc.LocalAddr()
}

// Serve answers probes until ctx is cancelled. Anything that is not the
// probe magic is ignored.
func (r *Responder) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		r.pc.Close()
	}()

	payload, err := json.Marshal(reply{Name: r.name})
	if err != nil {
		return fmt.Errorf("discovery: encode reply: %w", err)
	}

	log.Info().Str("addr", r.pc.LocalAddr().String()).Str("name", r.name).Msg("discovery responder listening")

	buf := make([]byte, 512)
	for {
		n, from, err := r.pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("discovery: read: %w", err)
		}
		if string(buf[:n]) != probeMagic {
			continue
		}
		if _, err := r.pc.WriteTo(payload, from); err != nil {
			log.Warn().Str("peer", from.String()).Err(err).Msg("discovery reply failed")
		}
	}
}

// Hostname returns the host's pretty name when one is configured,
// otherwise the kernel hostname.
func Hostname() string {
	if out, err := exec.Command("hostnamectl", "--pretty").Output(); err == nil {
		if pretty := strings.TrimSpace(string(out)); pretty != "" {
			return pretty
		}
	}
	name, err := os.Hostname()
	if err != nil {
		return "mediamote"
	}
	return name
}

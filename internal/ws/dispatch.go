package ws

import (
	"encoding/json"

	"github.com/mediamote/bridge/internal/mpris"
	"github.com/mediamote/bridge/internal/observability"
	"github.com/mediamote/bridge/internal/protocol"
	"github.com/rs/zerolog/log"
)

// dispatch routes one inbound frame. Every event except authenticate
// requires an authorized connection; unauthorized attempts and unknown
// event names are silently ignored.
func (h *Hub) dispatch(c *Conn, env protocol.Envelope) {
	if env.Event == protocol.EventAuthenticate {
		h.handleAuthenticate(c, env.Payload)
		return
	}
	if !c.isAuthorized() {
		observability.RecordEvent(env.Event, "unauthorized")
		return
	}

	switch env.Event {
	case protocol.EventMediaSourceRequest:
		h.handleSourceRequest(c)
	case protocol.EventUpdateMedia:
		h.handleUpdateMedia(c, env.Payload)
	case protocol.EventNextMedia:
		h.command(env.Event, func(p *mpris.Handle) { p.Next() })
	case protocol.EventPrevMedia:
		h.command(env.Event, func(p *mpris.Handle) { p.Previous() })
	case protocol.EventPlayMedia:
		h.command(env.Event, func(p *mpris.Handle) { p.Play() })
	case protocol.EventPauseMedia:
		h.command(env.Event, func(p *mpris.Handle) { p.Pause() })
	case protocol.EventMediaPositionRequest:
		h.handlePositionRequest(c)
	case protocol.EventMediaSeek:
		h.handleSeek(c, env.Payload)
	default:
		observability.RecordEvent(env.Event, "unknown")
	}
}

// command runs a fire-and-forget transport command against the current
// selection; with no selection it is a no-op.
func (h *Hub) command(event string, fn func(p *mpris.Handle)) {
	if p := h.engine.Current(); p != nil {
		fn(p)
	}
	observability.RecordEvent(event, "ok")
}

func (h *Hub) handleAuthenticate(c *Conn, payload json.RawMessage) {
	var req protocol.AuthRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.SessionID == "" {
		observability.RecordEvent(protocol.EventAuthenticate, "malformed")
		h.reply(c, protocol.EventAuthFailure, nil)
		return
	}

	if _, err := h.registry.Authorize(req.SessionID, c.addr); err != nil {
		observability.RecordEvent(protocol.EventAuthenticate, "rejected")
		h.reply(c, protocol.EventAuthFailure, nil)
		return
	}

	c.authorize()
	observability.RecordEvent(protocol.EventAuthenticate, "ok")
	log.Info().Str("addr", c.addr).Msg("client authorized")
	h.reply(c, protocol.EventAuthSuccess, nil)
}

// handleSourceRequest answers with a full snapshot of the current
// selection, addressed to the requester only.
func (h *Hub) handleSourceRequest(c *Conn) {
	observability.RecordEvent(protocol.EventMediaSourceRequest, "ok")
	snap := h.engine.CurrentSnapshot()
	if snap.IsEmpty() {
		h.reply(c, protocol.EventMediaSourceChanged, nil)
		return
	}
	h.reply(c, protocol.EventMediaSourceChanged, snap)
}

func (h *Hub) handleUpdateMedia(c *Conn, payload json.RawMessage) {
	settings, err := protocol.DecodeMediaSettings(payload)
	if err != nil {
		// Unknown field names are rejected at the boundary, not
		// silently applied field-by-field.
		observability.RecordEvent(protocol.EventUpdateMedia, "rejected")
		return
	}
	if p := h.engine.Current(); p != nil {
		p.Apply(settings)
	}
	observability.RecordEvent(protocol.EventUpdateMedia, "ok")
}

// handlePositionRequest is a point-in-time read answered directly to
// the requester, never broadcast.
func (h *Hub) handlePositionRequest(c *Conn) {
	observability.RecordEvent(protocol.EventMediaPositionRequest, "ok")
	pos, ok := h.engine.CurrentPosition()
	if !ok {
		h.reply(c, protocol.EventMediaPositionResponse, nil)
		return
	}
	h.reply(c, protocol.EventMediaPositionResponse, pos)
}

func (h *Hub) handleSeek(c *Conn, payload json.RawMessage) {
	var req protocol.SeekRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ID == "" {
		observability.RecordEvent(protocol.EventMediaSeek, "rejected")
		return
	}
	if p := h.engine.Current(); p != nil {
		p.SetPosition(req.ID, req.Position)
	}
	observability.RecordEvent(protocol.EventMediaSeek, "ok")
}

package http

import (
	"errors"

	"github.com/vovakirdan/typeduel-server/internal/core"
	"github.com/vovakirdan/typeduel-server/internal/proto"
	"github.com/vovakirdan/typeduel-server/internal/room"
)

// inboundToCommand maps a client envelope to a hub command. A protocol
// error is returned for messages the client can correct; err is set only
// for undecodable payloads.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	msg, err := proto.DecodeClient(inbound)
	if errors.Is(err, proto.ErrUnknownType) {
		return nil, &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "unknown message type"}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	switch m := msg.(type) {
	case proto.GetRoomData:
		if m.RoomID == "" {
			return nil, roomRequired(), nil
		}
		return &core.Command{Kind: core.CommandGetRoomData, Room: m.RoomID, PlayerID: m.PlayerID}, nil, nil
	case proto.CreateRoom:
		if m.RoomName == "" || m.PlayerID == "" {
			return nil, &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "room and player id are required"}, nil
		}
		return &core.Command{Kind: core.CommandCreateRoom, Room: m.RoomName, PlayerID: m.PlayerID, PlayerName: m.PlayerName}, nil, nil
	case proto.JoinRoom:
		if m.RoomName == "" || m.PlayerID == "" {
			return nil, &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "room and player id are required"}, nil
		}
		return &core.Command{Kind: core.CommandJoinRoom, Room: m.RoomName, PlayerID: m.PlayerID, PlayerName: m.PlayerName}, nil, nil
	case proto.ReadyIntent:
		return &core.Command{Kind: core.CommandPlayerReady, Room: m.RoomID, PlayerID: m.PlayerID}, nil, nil
	case proto.StatsReport:
		return &core.Command{
			Kind:       core.CommandPlayerStats,
			Room:       m.RoomID,
			PlayerID:   m.PlayerID,
			PlayerName: m.PlayerName,
			SessionID:  m.SessionID,
			Stats:      m.Stats,
		}, nil, nil
	case proto.FinishIntent:
		return &core.Command{Kind: core.CommandPlayerFinished, Room: m.RoomID, PlayerID: m.PlayerID, SessionID: m.SessionID}, nil, nil
	case proto.LeaveRoom:
		return &core.Command{Kind: core.CommandLeaveRoom, Room: m.RoomID, PlayerID: m.PlayerID}, nil, nil
	default:
		return nil, &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "unsupported message"}, nil
	}
}

func roomRequired() *proto.Error {
	return &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "room is required"}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoomData:
		return proto.EncodeServer(proto.RoomData{Room: event.Snapshot})
	case core.EventRoomCreated:
		return proto.EncodeServer(proto.RoomCreated{
			RoomID:     event.Room,
			SessionID:  event.SessionID,
			PlayerID:   event.PlayerID,
			PlayerName: event.PlayerName,
		})
	case core.EventPlayerJoined:
		return proto.EncodeServer(proto.PlayerJoined{RoomID: event.Room, Players: event.Players})
	case core.EventPlayerReady:
		return proto.EncodeServer(proto.PlayerReady{Room: snapshotValue(event)})
	case core.EventPlayerDisconnected:
		return proto.EncodeServer(proto.PlayerDisconnected{RoomID: event.Room, PlayerID: event.PlayerID, Players: event.Players})
	case core.EventPlayerStats:
		return proto.EncodeServer(proto.PlayerStats{
			PlayerID:   event.PlayerID,
			PlayerName: event.PlayerName,
			SessionID:  event.SessionID,
			Stats:      event.Stats,
		})
	case core.EventRaceFinished:
		return proto.EncodeServer(proto.RaceFinished{Room: snapshotValue(event)})
	case core.EventError:
		if event.Error == nil {
			return proto.EncodeServer(proto.ErrorMessage{Code: "unknown", Msg: "unknown error"})
		}
		return proto.EncodeServer(proto.ErrorMessage{Code: event.Error.Code, Msg: event.Error.Message})
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func snapshotValue(event *core.Event) room.Snapshot {
	if event.Snapshot == nil {
		return room.Snapshot{ID: event.Room}
	}
	return *event.Snapshot
}

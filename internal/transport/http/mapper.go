package http

import (
	"encoding/json"

	"github.com/coedit/coedit-server/internal/core"
	"github.com/coedit/coedit-server/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoinProject:
		var join proto.JoinProjectData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.ProjectID == "" || join.Username == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "project_id and username are required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandJoinProject,
			ProjectID: join.ProjectID,
			Username:  join.Username,
		}, nil, nil
	case proto.InboundTypeJoinFile, proto.InboundTypeLeaveFile, proto.InboundTypeLoadLiveUsers:
		var file proto.FileData
		if err := json.Unmarshal(inbound.Data, &file); err != nil {
			return nil, nil, err
		}
		if file.FileID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "file_id is required"}, nil
		}
		kind := core.CommandJoinFile
		switch inbound.Type {
		case proto.InboundTypeLeaveFile:
			kind = core.CommandLeaveFile
		case proto.InboundTypeLoadLiveUsers:
			kind = core.CommandLoadLiveUsers
		}
		return &core.Command{Kind: kind, FileID: file.FileID}, nil, nil
	case proto.InboundTypeSendChange:
		var change proto.ChangeData
		if err := json.Unmarshal(inbound.Data, &change); err != nil {
			return nil, nil, err
		}
		if change.FileID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "file_id is required"}, nil
		}
		return &core.Command{
			Kind:   core.CommandSendChange,
			FileID: change.FileID,
			Change: &core.Change{
				From:   core.Position{Line: change.Change.From.Line, Column: change.Change.From.Column},
				To:     core.Position{Line: change.Change.To.Line, Column: change.Change.To.Column},
				Text:   change.Change.Text,
				Origin: change.Change.Origin,
			},
		}, nil, nil
	case proto.InboundTypeSendCursor:
		var cursor proto.CursorData
		if err := json.Unmarshal(inbound.Data, &cursor); err != nil {
			return nil, nil, err
		}
		if cursor.FileID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "file_id is required"}, nil
		}
		return &core.Command{
			Kind:     core.CommandSendCursor,
			FileID:   cursor.FileID,
			Username: cursor.Username,
			Position: core.Position{Line: cursor.Position.Line, Column: cursor.Position.Column},
		}, nil, nil
	case proto.InboundTypeRemoveCursor:
		var remove proto.RemoveCursorData
		if err := json.Unmarshal(inbound.Data, &remove); err != nil {
			return nil, nil, err
		}
		if remove.FileID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "file_id is required"}, nil
		}
		return &core.Command{
			Kind:     core.CommandRemoveCursor,
			FileID:   remove.FileID,
			Username: remove.Username,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventLiveUserJoined:
		return outboundEvent(proto.EventLiveUserJoined, proto.LiveUserData{Username: event.Username})
	case core.EventLiveUserLeft:
		return outboundEvent(proto.EventLiveUserLeft, proto.LiveUserData{Username: event.Username})
	case core.EventUserJoined:
		var user proto.PresenceUser
		if event.Entry != nil {
			user = presenceUserFromEntry(*event.Entry)
		}
		return outboundEvent(proto.EventUserJoined, proto.UserJoinedData{AUser: user})
	case core.EventUserLeft:
		return outboundEvent(proto.EventUserLeft, proto.UserLeftData{
			FileID:   event.FileID,
			Username: event.Username,
		})
	case core.EventRemoveActiveLiveUser:
		return outboundEvent(proto.EventRemoveActiveLiveUser, proto.LiveUserData{Username: event.Username})
	case core.EventFileSnapshot:
		users := make([]proto.PresenceUser, 0, len(event.Entries))
		for _, entry := range event.Entries {
			users = append(users, presenceUserFromEntry(entry))
		}
		cursors := make(map[string]proto.Position, len(event.Cursors))
		for username, pos := range event.Cursors {
			cursors[username] = proto.Position{Line: pos.Line, Column: pos.Column}
		}
		return outboundEvent(proto.EventLoadLiveUsers, proto.LoadLiveUsersData{
			FileID:   event.FileID,
			AllUsers: users,
			Cursors:  cursors,
		})
	case core.EventReceiveChange:
		var change proto.Change
		if event.Change != nil {
			change = proto.Change{
				From:   proto.Position{Line: event.Change.From.Line, Column: event.Change.From.Column},
				To:     proto.Position{Line: event.Change.To.Line, Column: event.Change.To.Column},
				Text:   event.Change.Text,
				Origin: event.Change.Origin,
			}
		}
		return outboundEvent(proto.EventReceiveChange, proto.ChangeData{
			FileID: event.FileID,
			Change: change,
		})
	case core.EventReceiveCursor:
		return outboundEvent(proto.EventReceiveCursor, proto.CursorData{
			FileID:   event.FileID,
			Username: event.Username,
			Position: proto.Position{Line: event.Position.Line, Column: event.Position.Column},
		})
	case core.EventRemoveCursor:
		return outboundEvent(proto.EventRemoveCursor, proto.RemoveCursorData{
			FileID:   event.FileID,
			Username: event.Username,
		})
	case core.EventRemoveUserCursor:
		return outboundEvent(proto.EventRemoveUserCursor, proto.RemoveCursorData{
			FileID:   event.FileID,
			Username: event.Username,
		})
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func outboundEvent(name string, data any) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: name,
		Data:  data,
	}
}

func presenceUserFromEntry(entry core.PresenceEntry) proto.PresenceUser {
	return proto.PresenceUser{
		FileID:        entry.FileID,
		ProjectID:     entry.ProjectID,
		Username:      entry.Username,
		IsActiveInTab: entry.IsActiveInTab,
		IsLive:        entry.IsLive,
		Timestamp:     entry.Timestamp,
	}
}

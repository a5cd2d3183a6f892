package http

import (
	"encoding/json"

	"github.com/vovakirdan/spellbound-server/internal/lobby"
	"github.com/vovakirdan/spellbound-server/internal/proto"
)

const errCodeInvalidMessage = "invalid_message"

func inboundToCommand(inbound proto.Inbound) (*lobby.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeReadyStateChange:
		var data proto.ReadyStateData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		return &lobby.Command{Kind: lobby.CommandSetReady, Ready: data.Ready}, nil
	case proto.InboundTypeRequesting:
		var data proto.RequestingData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		if data.Target == "" {
			return nil, badRequest("target is required")
		}
		return &lobby.Command{Kind: lobby.CommandChallenge, Target: data.Target}, nil
	case proto.InboundTypeCancelRequest:
		var data proto.CancelRequestData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		if data.Target == "" {
			return nil, badRequest("target is required")
		}
		return &lobby.Command{Kind: lobby.CommandCancel, Target: data.Target}, nil
	case proto.InboundTypeIsAccepted:
		var data proto.IsAcceptedData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		if data.From == "" {
			return nil, badRequest("from is required")
		}
		return &lobby.Command{Kind: lobby.CommandRespond, Target: data.From, Accept: data.Accepted}, nil
	default:
		return nil, &proto.Error{Code: errCodeInvalidMessage, Msg: "unknown message type"}
	}
}

func decodeData(raw json.RawMessage, v any) *proto.Error {
	if len(raw) == 0 {
		return badRequest("data is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badRequest("malformed data: " + err.Error())
	}
	return nil
}

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: lobby.ErrCodeBadRequest, Msg: msg}
}

func errorFrame(e *proto.Error) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Error: e}
}

func outboundFromEvent(event *lobby.Event) proto.Outbound {
	switch event.Kind {
	case lobby.EventReadyUsers:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReadyUsersChange,
			Data:  proto.ReadyUsersData{Users: nonNil(event.ReadyUsers)},
		}
	case lobby.EventRequestLists:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRequesterRequesteesChange,
			Data: proto.RequestListsData{
				Requestees: nonNil(event.Outgoing),
				Requesters: nonNil(event.Incoming),
			},
		}
	case lobby.EventRedirect:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRedirect,
			Data: proto.RedirectData{
				SessionID: event.Redirect.SessionID,
				URL:       event.Redirect.URL,
			},
		}
	case lobby.EventError:
		return errorFrame(&proto.Error{Code: event.Error.Code, Msg: event.Error.Message})
	default:
		return errorFrame(&proto.Error{Code: "internal", Msg: "unknown event"})
	}
}

// nonNil keeps empty lists as [] on the wire.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

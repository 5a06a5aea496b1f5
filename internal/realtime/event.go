package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"nexus/internal/service"

	"github.com/go-playground/validator/v10"
)

type EventType string

const (
	EventRegister EventType = "register"
	EventMessage  EventType = "message"
)

var (
	ErrUnknownEvent = errors.New("未知事件类型")
	ErrInvalidEvent = fmt.Errorf("%w: 事件格式错误", service.ErrValidation)
)

var validate = validator.New()

// Event 客户端上行事件：register | message
type Event interface {
	Type() EventType
}

// RegisterEvent 绑定连接身份
type RegisterEvent struct {
	UserID   string `json:"user_id" validate:"required"`
	Username string `json:"username" validate:"required"`
	Wallet   string `json:"wallet"`
}

func (*RegisterEvent) Type() EventType { return EventRegister }

// MessageEvent 聊天消息，Raw 为原始报文，广播时原样下发
type MessageEvent struct {
	UserID   string `json:"user_id" validate:"required"`
	Username string `json:"username" validate:"required"`
	Message  string `json:"message" validate:"required"`
	Raw      []byte `json:"-"`
}

func (*MessageEvent) Type() EventType { return EventMessage }

// ParseEvent 按 type 字段解析事件并校验必填字段
func ParseEvent(raw []byte) (Event, error) {
	var envelope struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	var evt Event
	switch envelope.Type {
	case EventRegister:
		evt = &RegisterEvent{}
	case EventMessage:
		evt = &MessageEvent{Raw: append([]byte(nil), raw...)}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, envelope.Type)
	}

	if err := json.Unmarshal(raw, evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := validate.Struct(evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return evt, nil
}

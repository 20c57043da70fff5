package contract

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"gitlab.ozon.dev/qwestard/orders/internal/models"
)

// Codec is a grpc encoding.Codec producing standard protobuf bytes for the
// models types. Generated protobuf messages (reflection, health) are passed
// straight to proto.Marshal, so one server can host both.
type Codec struct{}

func (Codec) Name() string {
	return "proto"
}

func (Codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	msg, err := encode(v)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(msg)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	return decode(data, v)
}

func encode(v any) (*dynamicpb.Message, error) {
	switch m := v.(type) {
	case *models.StartRequest:
		msg := dynamicpb.NewMessage(startRequestDesc)
		setString(msg, "client_id", m.ClientID)
		msg.Set(field(msg, "type"), protoreflect.ValueOfEnum(protoreflect.EnumNumber(m.Type)))
		setAddress(msg, "address", m.Address)
		setTime(msg, "time", m.Time)
		return msg, nil
	case *models.StartResponse:
		msg := dynamicpb.NewMessage(startResponseDesc)
		setString(msg, "order_id", m.OrderID)
		return msg, nil
	case *models.UpdateEvent:
		msg := dynamicpb.NewMessage(updateRequestDesc)
		setString(msg, "client_id", m.ClientID)
		setAddress(msg, "address", m.Address)
		setTime(msg, "time", m.Time)
		return msg, nil
	case *models.UpdateResponse:
		msg := dynamicpb.NewMessage(updateResponseDesc)
		list := msg.Mutable(field(msg, "updated")).List()
		for _, ok := range m.Updated {
			list.Append(protoreflect.ValueOfBool(ok))
		}
		return msg, nil
	}
	return nil, fmt.Errorf("contract: cannot marshal %T", v)
}

func decode(data []byte, v any) error {
	switch m := v.(type) {
	case *models.StartRequest:
		msg, err := unmarshalDynamic(data, startRequestDesc)
		if err != nil {
			return err
		}
		m.ClientID = getString(msg, "client_id")
		m.Type = models.OrderType(msg.Get(field(msg, "type")).Enum())
		m.Address = getAddress(msg, "address")
		m.Time = getTime(msg, "time")
		return nil
	case *models.StartResponse:
		msg, err := unmarshalDynamic(data, startResponseDesc)
		if err != nil {
			return err
		}
		m.OrderID = getString(msg, "order_id")
		return nil
	case *models.UpdateEvent:
		msg, err := unmarshalDynamic(data, updateRequestDesc)
		if err != nil {
			return err
		}
		m.ClientID = getString(msg, "client_id")
		m.Address = getAddress(msg, "address")
		m.Time = getTime(msg, "time")
		return nil
	case *models.UpdateResponse:
		msg, err := unmarshalDynamic(data, updateResponseDesc)
		if err != nil {
			return err
		}
		list := msg.Get(field(msg, "updated")).List()
		m.Updated = make([]bool, 0, list.Len())
		for i := 0; i < list.Len(); i++ {
			m.Updated = append(m.Updated, list.Get(i).Bool())
		}
		return nil
	}
	return fmt.Errorf("contract: cannot unmarshal into %T", v)
}

func unmarshalDynamic(data []byte, md protoreflect.MessageDescriptor) (*dynamicpb.Message, error) {
	msg := dynamicpb.NewMessage(md)
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("contract: unmarshal %s: %w", md.FullName(), err)
	}
	return msg, nil
}

func field(msg protoreflect.Message, name string) protoreflect.FieldDescriptor {
	return msg.Descriptor().Fields().ByName(protoreflect.Name(name))
}

func setString(msg protoreflect.Message, name, v string) {
	msg.Set(field(msg, name), protoreflect.ValueOfString(v))
}

func getString(msg protoreflect.Message, name string) string {
	return msg.Get(field(msg, name)).String()
}

func setAddress(msg protoreflect.Message, name string, a models.Address) {
	addr := msg.Mutable(field(msg, name)).Message()
	setString(addr, "street", a.Street)
	addr.Set(field(addr, "number"), protoreflect.ValueOfUint32(a.Number))
	setString(addr, "city", a.City)
	addr.Set(field(addr, "postal_code"), protoreflect.ValueOfUint32(a.PostalCode))
}

func getAddress(msg protoreflect.Message, name string) models.Address {
	addr := msg.Get(field(msg, name)).Message()
	return models.Address{
		Street:     getString(addr, "street"),
		Number:     uint32(addr.Get(field(addr, "number")).Uint()),
		City:       getString(addr, "city"),
		PostalCode: uint32(addr.Get(field(addr, "postal_code")).Uint()),
	}
}

// setTime writes t as a google.protobuf.Timestamp; the zero time is left unset.
func setTime(msg protoreflect.Message, name string, t time.Time) {
	if t.IsZero() {
		return
	}
	ts := msg.Mutable(field(msg, name)).Message()
	ts.Set(field(ts, "seconds"), protoreflect.ValueOfInt64(t.Unix()))
	ts.Set(field(ts, "nanos"), protoreflect.ValueOfInt32(int32(t.Nanosecond())))
}

func getTime(msg protoreflect.Message, name string) time.Time {
	fd := field(msg, name)
	if !msg.Has(fd) {
		return time.Time{}
	}
	ts := msg.Get(fd).Message()
	return time.Unix(ts.Get(field(ts, "seconds")).Int(), ts.Get(field(ts, "nanos")).Int()).UTC()
}

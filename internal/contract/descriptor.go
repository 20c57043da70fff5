// Package contract defines the orders.Orders gRPC service: its protobuf
// schema, the codec used on the wire and the server/client bindings.
//
// The schema is assembled as a FileDescriptorProto and registered in the
// global protobuf registry, so the reflection service can describe it to
// tools such as grpcurl exactly as if it came from orders.proto:
//
//	enum OrderType { APP = 0; ONLINE = 1; }
//	message Address { string street = 1; uint32 number = 2; string city = 3; uint32 postal_code = 4; }
//	message StartRequest { string client_id = 1; OrderType type = 2; Address address = 3; google.protobuf.Timestamp time = 4; }
//	message StartResponse { string order_id = 1; }
//	message UpdateRequest { string client_id = 1; Address address = 2; google.protobuf.Timestamp time = 3; }
//	message UpdateResponse { repeated bool updated = 1; }
//
//	service Orders {
//	  rpc RegisterOrder (StartRequest) returns (StartResponse);
//	  rpc UpdateOrder (stream UpdateRequest) returns (UpdateResponse);
//	}
package contract

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	_ "google.golang.org/protobuf/types/known/timestamppb"
)

const (
	FileName    = "orders.proto"
	ServiceName = "orders.Orders"

	RegisterOrderMethod = "/orders.Orders/RegisterOrder"
	UpdateOrderMethod   = "/orders.Orders/UpdateOrder"
)

var (
	File protoreflect.FileDescriptor

	addressDesc        protoreflect.MessageDescriptor
	startRequestDesc   protoreflect.MessageDescriptor
	startResponseDesc  protoreflect.MessageDescriptor
	updateRequestDesc  protoreflect.MessageDescriptor
	updateResponseDesc protoreflect.MessageDescriptor
)

func init() {
	fd, err := protodesc.NewFile(fileProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("contract: build %s: %v", FileName, err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("contract: register %s: %v", FileName, err))
	}
	File = fd

	msgs := fd.Messages()
	addressDesc = msgs.ByName("Address")
	startRequestDesc = msgs.ByName("StartRequest")
	startResponseDesc = msgs.ByName("StartResponse")
	updateRequestDesc = msgs.ByName("UpdateRequest")
	updateResponseDesc = msgs.ByName("UpdateResponse")
}

func fileProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(FileName),
		Package:    proto.String("orders"),
		Dependency: []string{"google/protobuf/timestamp.proto"},
		Syntax:     proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("OrderType"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("APP"), Number: proto.Int32(0)},
				{Name: proto.String("ONLINE"), Number: proto.Int32(1)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Address"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("street", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalarField("number", 2, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
					scalarField("city", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalarField("postal_code", 4, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				},
			},
			{
				Name: proto.String("StartRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("client_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					typedField("type", 2, descriptorpb.FieldDescriptorProto_TYPE_ENUM, ".orders.OrderType"),
					typedField("address", 3, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".orders.Address"),
					typedField("time", 4, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".google.protobuf.Timestamp"),
				},
			},
			{
				Name: proto.String("StartResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("order_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				},
			},
			{
				Name: proto.String("UpdateRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("client_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					typedField("address", 2, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".orders.Address"),
					typedField("time", 3, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".google.protobuf.Timestamp"),
				},
			},
			{
				Name: proto.String("UpdateResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{{
					Name:     proto.String("updated"),
					JsonName: proto.String("updated"),
					Number:   proto.Int32(1),
					Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
					Type:     descriptorpb.FieldDescriptorProto_TYPE_BOOL.Enum(),
				}},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Orders"),
			Method: []*descriptorpb.MethodDescriptorProto{
				{
					Name:       proto.String("RegisterOrder"),
					InputType:  proto.String(".orders.StartRequest"),
					OutputType: proto.String(".orders.StartResponse"),
				},
				{
					Name:            proto.String("UpdateOrder"),
					InputType:       proto.String(".orders.UpdateRequest"),
					OutputType:      proto.String(".orders.UpdateResponse"),
					ClientStreaming: proto.Bool(true),
				},
			},
		}},
	}
}

func scalarField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(jsonName(name)),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}

func typedField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalarField(name, number, typ)
	f.TypeName = proto.String(typeName)
	return f
}

// jsonName lower-camel-cases a snake_case field name the way protoc does.
func jsonName(name string) string {
	out := make([]byte, 0, len(name))
	upper := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' {
			upper = true
			continue
		}
		if upper && 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}

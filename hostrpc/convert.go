package hostrpc

import (
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/halcyon-games/lua4/vm"
)

// ---------------------------------------------------------------------------
// Message conversion: script values <-> protobuf
// ---------------------------------------------------------------------------
//
// Script arguments are positional; they map onto the request message's
// fields in field-number order. Response fields come back the same way.
// Only scalar fields are supported: scripts traffic in numbers and strings.

// argsToProto builds a request message from positional arguments. Missing
// trailing arguments and nil values leave their fields unset.
func argsToProto(args []vm.Value, msgDesc *desc.MessageDescriptor) (*dynamic.Message, error) {
	fields := msgDesc.GetFields()
	if len(args) > len(fields) {
		return nil, fmt.Errorf("%d args for %d fields in %s",
			len(args), len(fields), msgDesc.GetFullyQualifiedName())
	}

	msg := dynamic.NewMessage(msgDesc)
	for i, arg := range args {
		if arg.IsNil() {
			continue
		}
		field := fields[i]
		protoVal, err := valueToProtoField(arg, field)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.GetName(), err)
		}
		if err := msg.TrySetField(field, protoVal); err != nil {
			return nil, fmt.Errorf("setting field %s: %w", field.GetName(), err)
		}
	}
	return msg, nil
}

// valueToProtoField converts a script value to a protobuf field value.
func valueToProtoField(val vm.Value, field *desc.FieldDescriptor) (interface{}, error) {
	if field.IsRepeated() || field.IsMap() {
		return nil, fmt.Errorf("repeated and map fields are not supported")
	}

	switch field.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32,
		descriptorpb.FieldDescriptorProto_TYPE_SINT32,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		if n, ok := val.AsInt32(); ok {
			return n, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_INT64,
		descriptorpb.FieldDescriptorProto_TYPE_SINT64,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		if n, ok := val.AsInt(); ok {
			return int64(n), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		if n, ok := val.AsInt(); ok && n >= 0 {
			return uint32(n), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		if n, ok := val.AsInt(); ok && n >= 0 {
			return uint64(n), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		if n, ok := val.AsNumber(); ok {
			return float32(n), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		if n, ok := val.AsNumber(); ok {
			return n, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		// Scripts have no booleans; any non-zero number is true.
		if n, ok := val.AsNumber(); ok {
			return n != 0, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		if s, ok := val.AsString(); ok {
			return s, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		if s, ok := val.AsString(); ok {
			return []byte(s), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		if n, ok := val.AsInt32(); ok {
			return n, nil
		}
		if s, ok := val.AsString(); ok {
			if enumVal := field.GetEnumType().FindValueByName(s); enumVal != nil {
				return enumVal.GetNumber(), nil
			}
		}
	}

	return nil, fmt.Errorf("cannot convert %s to proto type %v", val.Kind(), field.GetType())
}

// protoToResults flattens a response message's set fields, in field-number
// order, into script values.
func protoToResults(msg *dynamic.Message) ([]vm.Value, error) {
	var results []vm.Value
	for _, field := range msg.GetMessageDescriptor().GetFields() {
		if !msg.HasField(field) {
			results = append(results, vm.Nil)
			continue
		}
		v, err := protoFieldToValue(msg.GetField(field), field)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.GetName(), err)
		}
		results = append(results, v)
	}
	// Trailing unset fields are dropped so a one-field response yields one
	// result.
	for len(results) > 0 && results[len(results)-1].IsNil() {
		results = results[:len(results)-1]
	}
	return results, nil
}

// protoFieldToValue converts a protobuf field value to a script value.
func protoFieldToValue(val interface{}, field *desc.FieldDescriptor) (vm.Value, error) {
	if field.IsRepeated() || field.IsMap() {
		return vm.Nil, fmt.Errorf("repeated and map fields are not supported")
	}

	switch field.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32,
		descriptorpb.FieldDescriptorProto_TYPE_SINT32,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		return vm.FromNumber(float64(val.(int32))), nil
	case descriptorpb.FieldDescriptorProto_TYPE_INT64,
		descriptorpb.FieldDescriptorProto_TYPE_SINT64,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		return vm.FromNumber(float64(val.(int64))), nil
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		return vm.FromNumber(float64(val.(uint32))), nil
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		return vm.FromNumber(float64(val.(uint64))), nil
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		return vm.FromNumber(float64(val.(float32))), nil
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		return vm.FromNumber(val.(float64)), nil
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		return vm.FromBool(val.(bool)), nil
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		return vm.FromString(val.(string)), nil
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		return vm.FromString(string(val.([]byte))), nil
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		enumNum := val.(int32)
		if enumVal := field.GetEnumType().FindValueByNumber(enumNum); enumVal != nil {
			return vm.FromString(enumVal.GetName()), nil
		}
		return vm.FromNumber(float64(enumNum)), nil
	}

	return vm.Nil, fmt.Errorf("unsupported proto type: %v", field.GetType())
}

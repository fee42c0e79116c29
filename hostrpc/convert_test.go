package hostrpc

import (
	"testing"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/builder"
	"github.com/jhump/protoreflect/dynamic"

	"github.com/halcyon-games/lua4/vm"
)

func buildMessage(t *testing.T, name string, fields ...*builder.FieldBuilder) *desc.MessageDescriptor {
	t.Helper()
	mb := builder.NewMessage(name)
	for _, f := range fields {
		mb.AddField(f)
	}
	md, err := mb.Build()
	if err != nil {
		t.Fatal(err)
	}
	return md
}

func TestArgsToProto(t *testing.T) {
	md := buildMessage(t, "SayRequest",
		builder.NewField("npc_id", builder.FieldTypeInt32()),
		builder.NewField("text", builder.FieldTypeString()),
		builder.NewField("volume", builder.FieldTypeDouble()),
	)

	msg, err := argsToProto([]vm.Value{
		vm.FromInt(7),
		vm.FromString("welcome, traveler"),
		vm.FromNumber(0.5),
	}, md)
	if err != nil {
		t.Fatal(err)
	}

	if got := msg.GetFieldByName("npc_id"); got.(int32) != 7 {
		t.Errorf("npc_id = %v", got)
	}
	if got := msg.GetFieldByName("text"); got.(string) != "welcome, traveler" {
		t.Errorf("text = %v", got)
	}
	if got := msg.GetFieldByName("volume"); got.(float64) != 0.5 {
		t.Errorf("volume = %v", got)
	}
}

func TestArgsToProtoPartial(t *testing.T) {
	md := buildMessage(t, "Req",
		builder.NewField("a", builder.FieldTypeInt32()),
		builder.NewField("b", builder.FieldTypeString()),
	)

	// Trailing fields may be omitted; nil skips a field.
	msg, err := argsToProto([]vm.Value{vm.Nil}, md)
	if err != nil {
		t.Fatal(err)
	}
	if msg.HasFieldName("a") || msg.HasFieldName("b") {
		t.Error("nil argument set a field")
	}
}

func TestArgsToProtoTooMany(t *testing.T) {
	md := buildMessage(t, "Req", builder.NewField("a", builder.FieldTypeInt32()))
	_, err := argsToProto([]vm.Value{vm.FromInt(1), vm.FromInt(2)}, md)
	if err == nil {
		t.Fatal("expected error for excess arguments")
	}
}

func TestArgsToProtoKindMismatch(t *testing.T) {
	md := buildMessage(t, "Req", builder.NewField("n", builder.FieldTypeInt32()))
	if _, err := argsToProto([]vm.Value{vm.FromString("gold")}, md); err == nil {
		t.Fatal("expected error converting non-numeric string to int32")
	}
}

func TestValueToProtoFieldNumericString(t *testing.T) {
	md := buildMessage(t, "Req", builder.NewField("n", builder.FieldTypeInt32()))
	// Numeric strings coerce the way the engine coerces everywhere else.
	v, err := valueToProtoField(vm.FromString("12"), md.GetFields()[0])
	if err != nil {
		t.Fatal(err)
	}
	if v.(int32) != 12 {
		t.Errorf("converted = %v", v)
	}
}

func TestValueToProtoFieldBool(t *testing.T) {
	md := buildMessage(t, "Req", builder.NewField("flag", builder.FieldTypeBool()))
	field := md.GetFields()[0]

	v, err := valueToProtoField(vm.FromInt(1), field)
	if err != nil || v.(bool) != true {
		t.Errorf("1 -> %v, %v", v, err)
	}
	v, err = valueToProtoField(vm.FromInt(0), field)
	if err != nil || v.(bool) != false {
		t.Errorf("0 -> %v, %v", v, err)
	}
}

func TestProtoToResults(t *testing.T) {
	md := buildMessage(t, "SayResponse",
		builder.NewField("ok", builder.FieldTypeBool()),
		builder.NewField("reply", builder.FieldTypeString()),
	)

	msg := dynamic.NewMessage(md)
	if err := msg.TrySetFieldByName("ok", true); err != nil {
		t.Fatal(err)
	}
	if err := msg.TrySetFieldByName("reply", "farewell"); err != nil {
		t.Fatal(err)
	}

	results, err := protoToResults(msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %v", results)
	}
	if n, _ := results[0].AsNumber(); n != 1 {
		t.Errorf("results[0] = %v, want 1", results[0])
	}
	if s, _ := results[1].AsString(); s != "farewell" {
		t.Errorf("results[1] = %v", results[1])
	}
}

func TestProtoToResultsDropsTrailingUnset(t *testing.T) {
	md := buildMessage(t, "Resp",
		builder.NewField("value", builder.FieldTypeInt64()),
		builder.NewField("extra", builder.FieldTypeString()),
	)

	msg := dynamic.NewMessage(md)
	if err := msg.TrySetFieldByName("value", int64(9)); err != nil {
		t.Fatal(err)
	}

	results, err := protoToResults(msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %v, want 1 value", results)
	}
	if n, _ := results[0].AsNumber(); n != 9 {
		t.Errorf("results[0] = %v", results[0])
	}
}

func TestProtoToResultsEmpty(t *testing.T) {
	md := buildMessage(t, "Empty")
	results, err := protoToResults(dynamic.NewMessage(md))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want none", results)
	}
}

func TestNativeToMethodName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"npc_say", "NpcSay"},
		{"give_item", "GiveItem"},
		{"heal", "Heal"},
		{"open_shop_window", "OpenShopWindow"},
	}
	for _, tt := range tests {
		if got := nativeToMethodName(tt.in); got != tt.want {
			t.Errorf("nativeToMethodName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

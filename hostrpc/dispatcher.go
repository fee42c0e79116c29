// Package hostrpc dispatches script native calls to a game server over
// gRPC. Methods are resolved dynamically through server reflection, so the
// engine needs no generated bindings for the server's proto surface.
package hostrpc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"github.com/jhump/protoreflect/grpcreflect"
	"github.com/tliron/commonlog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	rpb "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"

	"github.com/halcyon-games/lua4/vm"
)

var log = commonlog.GetLogger("lua4.hostrpc")

// Dispatcher implements vm.Dispatcher over a gRPC connection. A native name
// is resolved to a method of the configured service; arguments map
// positionally onto the request message's fields and the response message's
// fields come back as results.
type Dispatcher struct {
	// Allow, when set, gates which native names may be dispatched. A nil
	// Allow permits everything the service exposes.
	Allow func(name string) bool

	// Timeout bounds each native call.
	Timeout time.Duration

	conn      *grpc.ClientConn
	refClient *grpcreflect.Client
	service   string

	mu      sync.Mutex
	methods map[string]*desc.MethodDescriptor
}

// Dial connects to a game server and returns a dispatcher bound to the
// named service (for example "halcyon.scripting.v1.NativeService").
func Dial(target, service string) (*Dispatcher, error) {
	conn, err := grpc.Dial(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", target, err)
	}

	refClient := grpcreflect.NewClientV1Alpha(context.Background(), rpb.NewServerReflectionClient(conn))

	log.Infof("connected to %s (service %s)", target, service)
	return &Dispatcher{
		Timeout:   10 * time.Second,
		conn:      conn,
		refClient: refClient,
		service:   service,
		methods:   make(map[string]*desc.MethodDescriptor),
	}, nil
}

// Close releases the reflection client and the connection.
func (d *Dispatcher) Close() error {
	d.refClient.Reset()
	return d.conn.Close()
}

// ListNatives returns the method names the bound service exposes.
func (d *Dispatcher) ListNatives() ([]string, error) {
	svcDesc, err := d.refClient.ResolveService(d.service)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve service %s: %w", d.service, err)
	}
	methods := svcDesc.GetMethods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.GetName()
	}
	return names, nil
}

// CallNative implements vm.Dispatcher.
func (d *Dispatcher) CallNative(name string, args []vm.Value) ([]vm.Value, error) {
	if d.Allow != nil && !d.Allow(name) {
		return nil, fmt.Errorf("native %q is not allowed", name)
	}

	methodDesc, err := d.resolveMethod(name)
	if err != nil {
		return nil, err
	}
	if methodDesc.IsClientStreaming() || methodDesc.IsServerStreaming() {
		return nil, fmt.Errorf("native %q: streaming methods are not callable from scripts", name)
	}

	reqMsg, err := argsToProto(args, methodDesc.GetInputType())
	if err != nil {
		return nil, fmt.Errorf("native %q: request conversion: %w", name, err)
	}
	respMsg := dynamic.NewMessage(methodDesc.GetOutputType())

	ctx := context.Background()
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	fullMethod := "/" + d.service + "/" + methodDesc.GetName()
	log.Debugf("dispatching %s with %d args", fullMethod, len(args))
	if err := d.conn.Invoke(ctx, fullMethod, reqMsg, respMsg); err != nil {
		return nil, fmt.Errorf("native %q: %w", name, err)
	}

	results, err := protoToResults(respMsg)
	if err != nil {
		return nil, fmt.Errorf("native %q: response conversion: %w", name, err)
	}
	return results, nil
}

// resolveMethod maps a native name to a method descriptor, case-insensitively
// on the first letter so "npc_say" style names can hit "NpcSay" methods when
// no exact match exists.
func (d *Dispatcher) resolveMethod(name string) (*desc.MethodDescriptor, error) {
	d.mu.Lock()
	if m, ok := d.methods[name]; ok {
		d.mu.Unlock()
		return m, nil
	}
	d.mu.Unlock()

	svcDesc, err := d.refClient.ResolveService(d.service)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve service %s: %w", d.service, err)
	}

	methodDesc := svcDesc.FindMethodByName(name)
	if methodDesc == nil {
		methodDesc = svcDesc.FindMethodByName(nativeToMethodName(name))
	}
	if methodDesc == nil {
		return nil, fmt.Errorf("native %q not found in service %s", name, d.service)
	}

	d.mu.Lock()
	d.methods[name] = methodDesc
	d.mu.Unlock()
	return methodDesc, nil
}

// nativeToMethodName converts snake_case native names to the CamelCase gRPC
// convention: npc_say -> NpcSay.
func nativeToMethodName(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

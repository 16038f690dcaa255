package telemetry

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
)

// ServiceName is the gRPC service that streams frames.
const ServiceName = "maze.explorer.Telemetry"

// WatchMethod is the full method name of the frame stream.
const WatchMethod = "/" + ServiceName + "/Watch"

type watchServer interface {
	watch(*emptypb.Empty, grpc.ServerStream) error
}

// ServiceDesc describes the Telemetry service: one server streaming method
// taking google.protobuf.Empty and yielding google.protobuf.Struct frames.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*watchServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Watch",
		Handler:       watchHandler,
		ServerStreams: true,
	}},
	Metadata: "telemetry.proto",
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(watchServer).watch(in, stream)
}

// Publisher streams frames to gRPC clients. Each client has its own bounded
// queue; frames are dropped for clients that fall behind.
type Publisher struct {
	server   *grpc.Server
	listener net.Listener

	mu      sync.Mutex
	clients map[int]chan *structpb.Struct
	nextID  int

	frames  atomic.Uint64
	dropped atomic.Uint64
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewPublisher returns a Publisher with its service registered on a new
// gRPC server.
func NewPublisher(opts ...grpc.ServerOption) *Publisher {
	p := &Publisher{clients: make(map[int]chan *structpb.Struct)}
	p.server = grpc.NewServer(opts...)
	p.server.RegisterService(&ServiceDesc, p)
	return p
}

// Serve accepts clients on lis in the background.
func (p *Publisher) Serve(lis net.Listener) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("telemetry: publisher already running")
	}
	p.listener = lis
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		monitoring.Logf("telemetry: gRPC listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			monitoring.Logf("telemetry: gRPC server: %v", err)
		}
	}()
	return nil
}

// Start listens on addr and serves in the background.
func (p *Publisher) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return p.Serve(lis)
}

// Stop drains streams and stops the server.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	p.mu.Lock()
	for id, ch := range p.clients {
		close(ch)
		delete(p.clients, id)
	}
	p.mu.Unlock()
	p.server.GracefulStop()
	p.wg.Wait()
	monitoring.Logf("telemetry: gRPC stopped after %d frames, %d dropped", p.frames.Load(), p.dropped.Load())
}

// Publish converts f and queues it for every client.
func (p *Publisher) Publish(f Frame) {
	if !p.running.Load() {
		return
	}
	msg, err := FrameStruct(f)
	if err != nil {
		monitoring.Logf("telemetry: encode frame %d: %v", f.Seq, err)
		return
	}
	p.frames.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.clients {
		select {
		case ch <- msg:
		default:
			p.dropped.Add(1)
		}
	}
}

// Clients returns the number of active streams.
func (p *Publisher) Clients() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

func (p *Publisher) watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ch := make(chan *structpb.Struct, clientBuffer)
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.clients[id] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.clients, id)
		p.mu.Unlock()
	}()

	ctx := stream.Context()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// FrameStruct renders f as a protobuf Struct. The map is a list of row
// strings in map file notation.
func FrameStruct(f Frame) (*structpb.Struct, error) {
	rows := make([]any, arena.Rows)
	for r := range f.Map {
		var b strings.Builder
		for _, st := range f.Map[r] {
			b.WriteByte('0' + byte(st))
		}
		rows[r] = b.String()
	}
	return structpb.NewStruct(map[string]any{
		"seq":       f.Seq,
		"phase":     f.Phase,
		"primitive": f.Primitive,
		"row":       f.Pose.Pos.Row,
		"col":       f.Pose.Pos.Col,
		"heading":   f.Pose.Heading.String(),
		"coverage":  f.Coverage,
		"map":       rows,
	})
}

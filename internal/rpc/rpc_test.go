package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/funvibe/thunkjit/internal/closure"
	"github.com/funvibe/thunkjit/internal/config"
	"github.com/funvibe/thunkjit/internal/expr"
	"github.com/funvibe/thunkjit/internal/scope"
	thunkjit "github.com/funvibe/thunkjit/pkg/embed"
)

func startServer(t *testing.T, engine *thunkjit.Engine) *Client {
	t.Helper()
	srv, err := NewServer(engine, nil)
	if err != nil {
		t.Fatal(err)
	}
	gs := grpc.NewServer()
	if err := srv.Register(gs); err != nil {
		t.Fatal(err)
	}
	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	client, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func newEngine(t *testing.T) *thunkjit.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Policy = config.PolicyTiered
	cfg.TieredThreshold = 2
	engine, err := thunkjit.New(thunkjit.Options{Config: cfg})
	if err != nil {
		t.Fatal(err)
	}

	// (c, x) => offset + x, offset captured
	offset := expr.Param("offset", expr.IntType)
	rec, err := closure.New(closure.NewSlot(100))
	if err != nil {
		t.Fatal(err)
	}
	c := expr.Param("c", expr.RecordType)
	x := expr.Param("x", expr.IntType)
	add := expr.NewLambda("add", expr.IntType, expr.Add(offset, x), c, x)
	if _, err := engine.Compile("add", add, scope.NewFrame(nil, offset), rec); err != nil {
		t.Fatal(err)
	}

	// (c, s) => throw s
	s := expr.Param("s", expr.StringType)
	fail := expr.NewLambda("fail", expr.StringType, expr.NewThrow(s), c, s)
	if _, err := engine.Compile("fail", fail, nil, nil); err != nil {
		t.Fatal(err)
	}
	return engine
}

func TestInvoke(t *testing.T) {
	client := startServer(t, newEngine(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	states := []string{"interpreting", "compiled", "compiled"}
	for i, want := range states {
		got, state, err := client.Invoke(ctx, "add", i)
		if err != nil {
			t.Fatal(err)
		}
		if got != 100+i {
			t.Errorf("call %d: Expected %d, got %v", i, 100+i, got)
		}
		if state != want {
			t.Errorf("call %d: Expected state %s, got %s", i, want, state)
		}
	}

	// Strings are parsed for numeric parameters.
	if got, _, err := client.Invoke(ctx, "add", "5"); err != nil || got != 105 {
		t.Errorf("Expected 105, got %v (%v)", got, err)
	}
}

func TestInvokeErrors(t *testing.T) {
	client := startServer(t, newEngine(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		name string
		args []any
		code codes.Code
	}{
		{"missing", nil, codes.NotFound},
		{"add", nil, codes.InvalidArgument},
		{"add", []any{1.5}, codes.InvalidArgument},
		{"fail", []any{"boom"}, codes.Aborted},
	}
	for _, tt := range tests {
		_, _, err := client.Invoke(ctx, tt.name, tt.args...)
		if got := status.Code(err); got != tt.code {
			t.Errorf("%s%v: Expected %s, got %s (%v)", tt.name, tt.args, tt.code, got, err)
		}
	}
}

func TestList(t *testing.T) {
	client := startServer(t, newEngine(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, _, err := client.Invoke(ctx, "add", 1); err != nil {
		t.Fatal(err)
	}
	infos, err := client.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 delegates, got %d", len(infos))
	}
	add := infos[0]
	if add.Name != "add" || add.Shape != "func(int) int" || add.Policy != "tiered" || add.Hits != 1 {
		t.Errorf("unexpected delegate info %+v", add)
	}
	if infos[1].Name != "fail" || infos[1].State != "pending" {
		t.Errorf("unexpected delegate info %+v", infos[1])
	}
}

func TestValueEncoding(t *testing.T) {
	s, err := loadSchema()
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []any{nil, 42, 2.5, "hi", true, false, 0} {
		msg, err := s.encodeValue(v)
		if err != nil {
			t.Fatal(err)
		}
		got, err := decodeValue(msg)
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Errorf("Expected %v (%T), got %v (%T)", v, v, got, got)
		}
	}
}

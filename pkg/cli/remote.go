package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"google.golang.org/grpc"

	"github.com/funvibe/thunkjit/internal/journal"
	"github.com/funvibe/thunkjit/internal/rpc"
	thunkjit "github.com/funvibe/thunkjit/pkg/embed"
)

func handleServe(opts *options, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := cfg.Logger(stderr)
	engine, err := thunkjit.New(thunkjit.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	for _, path := range append([]string{opts.file}, opts.args...) {
		if _, err := engine.LoadFile(path); err != nil {
			return err
		}
	}

	lis, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, lis, engine, logger, stdout)
}

// serve runs the engine service on lis until ctx is done.
func serve(ctx context.Context, lis net.Listener, engine *thunkjit.Engine, logger *slog.Logger, stdout io.Writer) error {
	srv, err := rpc.NewServer(engine, logger)
	if err != nil {
		return err
	}
	gs := grpc.NewServer()
	if err := srv.Register(gs); err != nil {
		return err
	}

	p := paletteFor(stdout)
	for _, d := range engine.Delegates() {
		fmt.Fprintf(stdout, "%s %s\n", p.bold(d.Name), p.faint(d.Thunk().Type().Shape().Key()))
	}
	fmt.Fprintf(stdout, "serving %d delegate(s) on %s\n", len(engine.Delegates()), lis.Addr())

	done := make(chan error, 1)
	go func() { done <- gs.Serve(lis) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		logger.Info("shutting down", "addr", lis.Addr().String())
		gs.GracefulStop()
		return <-done
	}
}

func dial(opts *options) (*rpc.Client, context.Context, context.CancelFunc, error) {
	client, err := rpc.Dial(opts.addr)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if opts.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
	}
	return client, ctx, cancel, nil
}

func handleCall(opts *options, stdout io.Writer) error {
	client, ctx, cancel, err := dial(opts)
	if err != nil {
		return err
	}
	defer cancel()
	defer client.Close()

	args := make([]any, len(opts.args))
	for i, a := range opts.args {
		args[i] = a
	}
	result, state, err := client.Invoke(ctx, opts.file, args...)
	if err != nil {
		return err
	}
	p := paletteFor(stdout)
	fmt.Fprintf(stdout, "%s %v\n", p.bold(opts.file+":"), p.ok(fmt.Sprint(result)))
	fmt.Fprintf(stdout, "%s\n", p.faint("state="+state))
	return nil
}

func handleList(opts *options, stdout io.Writer) error {
	client, ctx, cancel, err := dial(opts)
	if err != nil {
		return err
	}
	defer cancel()
	defer client.Close()

	infos, err := client.List(ctx)
	if err != nil {
		return err
	}
	p := paletteFor(stdout)
	for _, d := range infos {
		fmt.Fprintf(stdout, "%s %s %s\n", p.bold(d.Name), d.Shape,
			p.faint(fmt.Sprintf("policy=%s state=%s hits=%s", d.Policy, d.State, humanize.Comma(d.Hits))))
	}
	return nil
}

func handleHistory(opts *options, stdout io.Writer) error {
	if _, err := os.Stat(opts.file); err != nil {
		return err
	}
	j, err := journal.Open(opts.file)
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.Recent(context.Background(), opts.limit)
	if err != nil {
		return err
	}
	p := paletteFor(stdout)
	for _, r := range runs {
		fmt.Fprintf(stdout, "#%d %s %s = %s %s\n", r.ID, p.bold(r.Delegate), p.faint(humanize.Time(r.At)), p.ok(r.Result),
			p.faint(fmt.Sprintf("policy=%s state=%s calls=%s elapsed=%s", r.Policy, r.State, humanize.Comma(int64(r.Calls)), r.Elapsed)))
		for _, s := range r.Backends {
			fmt.Fprintf(stdout, "    %s\n", p.faint(fmt.Sprintf("%-9s compiles=%s invocations=%s", s.Name, humanize.Comma(s.Compiles), humanize.Comma(s.Invocations))))
		}
	}
	return nil
}

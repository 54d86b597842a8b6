package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/go-drift/viewtree/pkg/config"
	"github.com/go-drift/viewtree/pkg/engine"
	"github.com/go-drift/viewtree/pkg/script"
)

// session is a host running on its own loop.
type session struct {
	host    *engine.Host
	cancel  context.CancelFunc
	stopped chan struct{}
	err     error
}

func startSession(ctx context.Context, cfg *config.Config) (*session, error) {
	host, err := engine.New(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &session{host: host, cancel: cancel, stopped: make(chan struct{})}
	go func() {
		s.err = host.Run(ctx)
		close(s.stopped)
	}()
	return s, nil
}

// replay applies sc and waits until every committed edit is mounted. It
// gives up when the host stops.
func (s *session) replay(ctx context.Context, sc *script.Script) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopped:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := script.Run(ctx, s.host, sc)
	if err == nil {
		err = s.host.WaitIdle(ctx)
	}
	select {
	case <-s.stopped:
		if s.err != nil {
			return s.err
		}
	default:
	}
	return err
}

// wait blocks until ctx is done or the host stops, then closes the session.
func (s *session) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-s.stopped:
	}
	return s.Close()
}

// Close stops the host and reports the error that ended it, if any.
func (s *session) Close() error {
	s.cancel()
	<-s.stopped
	return s.err
}

// printTrees writes the native tree of every root, lowest tag first.
func (s *session) printTrees(w io.Writer) {
	roots := s.host.RootTags()
	slices.Sort(roots)
	for _, root := range roots {
		fmt.Fprint(w, s.host.Tree().Dump(root))
	}
}

// runScript loads the script at path and replays it in a fresh session.
// The caller closes the session.
func runScript(ctx context.Context, cfg *config.Config, path string) (*session, error) {
	sc, err := script.Load(path)
	if err != nil {
		return nil, err
	}
	s, err := startSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.replay(ctx, sc); err != nil {
		s.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

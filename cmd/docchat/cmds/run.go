package cmds

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/docchat/pkg/eventbus"
	"github.com/go-go-golems/docchat/pkg/render"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/go-go-golems/docchat/pkg/socketio"
	"github.com/go-go-golems/docchat/pkg/ui"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type runOptions struct {
	kind      session.Kind
	contentID string
	files     []string
	prompt    string
	noTUI     bool
}

// run connects to the server and drives one page until the user quits, or,
// without a TUI, until the submitted prompt has been answered. The TUI is
// only used when both in and out are terminals.
func (a *app) run(ctx context.Context, o runOptions, in io.Reader, out io.Writer) error {
	tui := useTUI(o.noTUI, in, out)
	if !tui && o.prompt == "" {
		return errors.New("a prompt is required without the terminal UI")
	}
	logger := runLogger(tui, a.settings.LogFile)

	opts := a.settings.SocketOptions()
	opts.Logger = &logger
	endpoint, err := socketio.EndpointFromOrigin(a.settings.Server, opts.Path)
	if err != nil {
		return err
	}
	client := socketio.NewClient(endpoint, opts)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Debug().Err(err).Msg("closing socket")
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	busSettings := a.settings.Redis
	busSettings.Logger = &logger
	bus, err := eventbus.New(ctx, busSettings)
	if err != nil {
		return errors.Wrap(err, "create event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing event bus")
		}
	}()
	eventbus.Bridge(client, bus)

	renderer, err := render.NewGlamour(a.settings.RenderSettings())
	if err != nil {
		logger.Warn().Err(err).Msg("markdown rendering disabled")
		renderer = render.Plain
	}
	cfg := session.Config{
		Kind:      o.kind,
		ContentID: o.contentID,
		Controls:  a.settings.Controls(o.files),
		Renderer:  renderer,
	}

	if !tui {
		return a.runConsole(ctx, cancel, client, bus, cfg, o, out)
	}
	return a.runTUI(ctx, cancel, client, bus, cfg, o, in, out)
}

func (a *app) runConsole(
	ctx context.Context,
	cancel context.CancelFunc,
	client *socketio.Client,
	bus *eventbus.Bus,
	cfg session.Config,
	o runOptions,
	out io.Writer,
) error {
	console := ui.NewConsole(out, o.prompt)
	sess := session.New(client, console, cfg)
	bus.Handle("console", func(ev session.Event) error {
		sess.HandleEvent(ev)
		return nil
	})

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return bus.Run(gctx) })
	eg.Go(func() error {
		defer cancel()
		<-bus.Running()
		if err := client.Connect(gctx); err != nil {
			return errors.Wrap(err, "connect")
		}
		if err := sess.EnterChat(); err != nil {
			return err
		}
		if err := sess.Activate(); err != nil {
			return err
		}
		select {
		case <-console.Done():
			return nil
		case <-client.Done():
			return errors.New("connection lost before the answer completed")
		case <-gctx.Done():
			return gctx.Err()
		}
	})
	return ignoreCanceled(eg.Wait())
}

func (a *app) runTUI(
	ctx context.Context,
	cancel context.CancelFunc,
	client *socketio.Client,
	bus *eventbus.Bus,
	cfg session.Config,
	o runOptions,
	in io.Reader,
	out io.Writer,
) error {
	page := ui.NewPage("")
	page.SetInput(o.prompt)
	sess := session.New(client, page, cfg)

	eg, gctx := errgroup.WithContext(ctx)
	p := tea.NewProgram(
		ui.NewModel(page, sess, o.kind),
		tea.WithAltScreen(),
		tea.WithContext(gctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	bus.Handle("ui", ui.ForwardFunc(p))

	eg.Go(func() error { return bus.Run(gctx) })
	eg.Go(func() error {
		<-bus.Running()
		if err := client.Connect(gctx); err != nil {
			return errors.Wrap(err, "connect")
		}
		p.Send(ui.EnterChatMsg{})
		return nil
	})
	eg.Go(func() error {
		defer cancel()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	return ignoreCanceled(eg.Wait())
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

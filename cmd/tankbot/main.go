// Command tankbot plays the tank game: it receives frames from the game
// server, keeps an up to date world and answers with commands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/tankbot/logging"
	"github.com/brensch/tankbot/protocol"
	"github.com/brensch/tankbot/rules"
	"github.com/brensch/tankbot/session"
	"github.com/brensch/tankbot/status"
	"github.com/brensch/tankbot/store"
	"github.com/brensch/tankbot/transport"
	"github.com/brensch/tankbot/viewer"
)

type config struct {
	listenAddr  string
	serverAddr  string
	wsURL       string
	readTimeout time.Duration
	sendTimeout time.Duration
	onViolation string
	workers     int
	seed        uint64
	recordDir   string
	sessionLog  string
	flushRows   int
	flushEvery  time.Duration
	statusAddr  string
	tui         bool
	logCfg      logging.Config
}

func main() {
	var cfg config
	flag.StringVar(&cfg.listenAddr, "listen", getEnvOrDefault("LISTEN_ADDR", transport.DefaultListenAddr), "Address the game server delivers frames to")
	flag.StringVar(&cfg.serverAddr, "server", getEnvOrDefault("SERVER_ADDR", transport.DefaultServerAddr), "Game server address commands are sent to")
	flag.StringVar(&cfg.wsURL, "ws-url", getEnvOrDefault("WS_URL", ""), "Websocket relay URL; replaces the TCP listener and sender when set")
	flag.DurationVar(&cfg.readTimeout, "read-timeout", getEnvDurationOrDefault("READ_TIMEOUT", 10*time.Second), "Read timeout per server connection")
	flag.DurationVar(&cfg.sendTimeout, "send-timeout", getEnvDurationOrDefault("SEND_TIMEOUT", 2*time.Second), "Timeout for sending one command")
	flag.StringVar(&cfg.onViolation, "on-violation", getEnvOrDefault("ON_VIOLATION", "skip"), "What to do when a frame contradicts the world: skip or abort")
	flag.IntVar(&cfg.workers, "workers", getEnvIntOrDefault("DECODE_WORKERS", session.DefaultWorkers), "Parallel frame decoders")
	seed := flag.Int64("seed", int64(getEnvIntOrDefault("SEED", 0)), "Seed for the move policy; 0 picks one from the clock")
	flag.StringVar(&cfg.recordDir, "record-dir", getEnvOrDefault("RECORD_DIR", "recordings"), "Directory for parquet recordings; empty disables recording")
	flag.StringVar(&cfg.sessionLog, "session-log", getEnvOrDefault("SESSION_LOG", filepath.Join("recordings", "sessions.log")), "Append-only index of recorded sessions")
	flag.IntVar(&cfg.flushRows, "flush-rows", getEnvIntOrDefault("FLUSH_ROWS", 1000), "Flush a recording batch at this many rows")
	flag.DurationVar(&cfg.flushEvery, "flush-every", getEnvDurationOrDefault("FLUSH_EVERY", time.Minute), "Flush a recording batch at this interval")
	flag.StringVar(&cfg.statusAddr, "status-addr", getEnvOrDefault("STATUS_ADDR", "127.0.0.1:8080"), "HTTP status address; empty disables it")
	flag.BoolVar(&cfg.tui, "tui", getEnvBoolOrDefault("TUI", false), "Show the terminal view")
	flag.StringVar(&cfg.logCfg.Level, "log-level", getEnvOrDefault("LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.StringVar(&cfg.logCfg.Format, "log-format", getEnvOrDefault("LOG_FORMAT", "pretty"), "pretty, json or text")
	flag.StringVar(&cfg.logCfg.File, "log-file", getEnvOrDefault("LOG_FILE", ""), "Rotated log file; stderr when empty")
	flag.Parse()

	cfg.seed = uint64(*seed)
	if cfg.seed == 0 {
		cfg.seed = uint64(time.Now().UnixNano())
	}
	if cfg.tui && cfg.logCfg.File == "" {
		// Keep logs from drawing over the terminal view.
		cfg.logCfg.File = "tankbot.log"
	}

	logger, closer, err := logging.Setup(cfg.logCfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("tankbot stopped", "error", err)
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	policy, err := rules.ParsePolicy(cfg.onViolation)
	if err != nil {
		return err
	}

	metrics := &status.Metrics{}
	transition := rules.Transitioner{
		Policy: policy,
		OnSkip: func(v *rules.ViolationError) {
			metrics.IncSkipped()
			logger.Log(context.Background(), skipLevel(v), "skipped record", "message", v.Message.String(), "location", v.Location.String(), "player", v.Player, "error", v.Err)
		},
	}
	sess := session.New(transition, session.NewRandomPolicy(cfg.seed))
	board := status.NewBoard(sess.ID)
	logger = logger.With("session", sess.ID)

	logger.Info("Starting tankbot",
		"listen", cfg.listenAddr,
		"server", cfg.serverAddr,
		"ws_url", cfg.wsURL,
		"on_violation", policy.String(),
		"workers", cfg.workers,
		"seed", cfg.seed,
		"record_dir", cfg.recordDir,
		"status_addr", cfg.statusAddr,
		"tui", cfg.tui,
	)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	var (
		source transport.Source
		sender transport.Sender
	)
	if cfg.wsURL != "" {
		conn, err := transport.DialWS(ctx, transport.DefaultWSConfig(cfg.wsURL))
		if err != nil {
			return err
		}
		defer conn.Close()
		source, sender = conn, conn
	} else {
		ln, err := transport.Listen(ctx, cfg.listenAddr, cfg.readTimeout, logger)
		if err != nil {
			return err
		}
		defer ln.Close()
		source = ln
		sender = &transport.TCPSender{Addr: cfg.serverAddr, DialTimeout: cfg.sendTimeout}
	}

	var recorder *store.Recorder
	if cfg.recordDir != "" {
		recorder, err = store.NewRecorder(cfg.recordDir, sess.ID, cfg.flushRows)
		if err != nil {
			return err
		}
	}

	send := func(cmd protocol.Command) {
		sendCtx, cancel := context.WithTimeout(ctx, cfg.sendTimeout)
		defer cancel()
		if err := sender.Send(sendCtx, cmd); err != nil {
			metrics.IncSendErrors()
			logger.Warn("send failed", "command", cmd.String(), "error", err)
			return
		}
		metrics.IncCommands()
		logger.Debug("sent", "command", cmd.String())
	}
	record := func(step session.Step) {
		if recorder == nil {
			return
		}
		if err := recorder.Record(step); err != nil {
			logger.Warn("record failed", "seq", step.Seq, "error", err)
		}
	}

	var tuiUpdates chan session.Step
	if cfg.tui {
		tuiUpdates = make(chan session.Step, 64)
	}

	g, ctx := errgroup.WithContext(ctx)
	frames := make(chan string, 64)

	g.Go(func() error {
		defer close(frames)
		return source.Serve(ctx, frames)
	})

	if cmd, ok := sess.Open(); ok {
		send(cmd)
	}
	record(sess.History()[0])

	pipeline := &session.Pipeline{Session: sess, Workers: cfg.workers, Logger: logger}
	g.Go(func() error {
		if tuiUpdates != nil {
			defer close(tuiUpdates)
		}
		return pipeline.Run(ctx, frames, func(step session.Step) error {
			metrics.IncFrames()
			board.Update(step)
			record(step)

			var violation *rules.ViolationError
			switch {
			case errors.As(step.Err, &violation):
				metrics.IncViolations()
				logger.Error("frame contradicts world", "seq", step.Seq, "frame", step.Frame, "error", step.Err)
				return step.Err
			case errors.Is(step.Err, rules.ErrNoWorld):
				logger.Warn("frame before initiation", "seq", step.Seq, "frame", step.Frame)
			case step.Err != nil:
				metrics.IncDecodeErrors()
				logger.Warn("decode failed", "seq", step.Seq, "frame", step.Frame, "error", step.Err)
			}
			if _, ok := step.Message.(protocol.Broadcast); ok {
				metrics.IncBroadcasts()
			}
			if step.HasCommand {
				send(step.Command)
			}
			if tuiUpdates != nil {
				select {
				case tuiUpdates <- step:
				default:
				}
			}
			return nil
		})
	})

	if cfg.statusAddr != "" {
		g.Go(func() error {
			return status.Serve(ctx, cfg.statusAddr, status.SetupRouter(board, metrics), logger)
		})
	}

	if recorder != nil {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.flushEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if path, err := recorder.Flush(); err != nil {
						logger.Warn("flush failed", "reason", "ticker", "error", err)
					} else if path != "" {
						logger.Info("flushed recording", "path", path)
					}
				}
			}
		})
	}

	if tuiUpdates != nil {
		g.Go(func() error {
			err := viewer.Run(ctx, tuiUpdates)
			// Quitting the view stops the client.
			cancel()
			return err
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if recorder != nil {
		if err := finishRecording(recorder, cfg.sessionLog, sess.ID, logger); err != nil {
			logger.Warn("final flush failed", "error", err)
		}
	}

	m := metrics.Snapshot()
	logger.Info("Session complete",
		"frames", m["frames"],
		"decode_errors", m["decode_errors"],
		"violations", m["violations"],
		"skipped", m["skipped"],
		"commands", m["commands"],
		"send_errors", m["send_errors"],
	)
	return err
}

// skipLevel keeps the destroyed bricks the server repeats every broadcast
// out of the default log.
func skipLevel(v *rules.ViolationError) slog.Level {
	if errors.Is(v.Err, rules.ErrBrickGone) {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

func finishRecording(recorder *store.Recorder, logPath, sessionID string, logger *slog.Logger) error {
	if _, err := recorder.Flush(); err != nil {
		return err
	}
	paths, rows := recorder.Written()
	if len(paths) == 0 {
		return nil
	}
	index, err := store.OpenSessionLog(logPath)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	defer index.Close()
	if err := index.Add(sessionID, paths...); err != nil {
		return err
	}
	logger.Info("recording saved", "batches", len(paths), "rows", rows, "index", logPath)
	return nil
}

// Environment variable helpers
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

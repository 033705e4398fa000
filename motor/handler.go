package motor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/google/uuid"
	"github.com/pb33f/mirrorlog/motor/model"
)

// State is a step of the per-connection state machine.
type State int

const (
	StateAwaitingRecord State = iota
	StateDecoding
	StateNormalizing
	StateEmitted
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingRecord:
		return "awaiting_record"
	case StateDecoding:
		return "decoding"
	case StateNormalizing:
		return "normalizing"
	case StateEmitted:
		return "emitted"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result summarises one connection.
type Result struct {
	ID      string
	Final   State
	Records int
	Emitted int
	Failed  int

	// Err is the read error that moved the connection to StateFailed
	Err error
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Decoder    *Decoder
	Normalizer *Normalizer
	Sink       Sink
	Framing    FramerOptions
	Metrics    *Metrics
	Logger     *slog.Logger

	// OnState, when set, observes every state transition
	OnState func(id string, state State)
}

// Handler runs the read loop for one connection at a time. It keeps no
// state between connections and may serve many concurrently.
type Handler struct {
	decoder    *Decoder
	normalizer *Normalizer
	sink       Sink
	framing    FramerOptions
	metrics    *Metrics
	logger     *slog.Logger
	onState    func(string, State)
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		decoder:    cfg.Decoder,
		normalizer: cfg.Normalizer,
		sink:       cfg.Sink,
		framing:    cfg.Framing,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		onState:    cfg.OnState,
	}
	if h.decoder == nil {
		h.decoder = NewDecoder(DecoderOptions{})
	}
	if h.normalizer == nil {
		h.normalizer = NewNormalizer(nil)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Serve reads records from conn until the peer closes, a read fails or ctx is
// cancelled. Records are processed strictly in arrival order; a bad record is
// logged and skipped. Serve always closes conn.
func (h *Handler) Serve(ctx context.Context, conn net.Conn) Result {
	result := Result{ID: uuid.NewString()}
	logger := h.logger.With("conn", result.ID, "remote", remoteString(conn))

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	h.metrics.connOpened()
	defer h.metrics.connClosed()

	info := InspectConn(conn)
	framer, err := NewFramer(conn, h.framing)
	if err != nil {
		result.Final, result.Err = StateFailed, err
		h.setState(result.ID, StateFailed)
		logger.Error("unable to frame connection", "error", err)
		return result
	}

	logger.Debug("connection opened", "transport", info.Transport, "type", info.Type)

	for {
		h.setState(result.ID, StateAwaitingRecord)

		raw, err := framer.Next()
		if err != nil {
			var oversize *OversizeError
			if errors.As(err, &oversize) {
				result.Records++
				result.Failed++
				h.metrics.record(model.ShapeUnknown.String(), OutcomeDecodeError, oversize.Limit)
				logger.Warn("record discarded", "record", result.Records-1, "error", err)
				continue
			}
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				result.Final = StateClosed
			} else {
				result.Final, result.Err = StateFailed, err
				logger.Error("connection read failed", "error", err)
			}
			h.setState(result.ID, result.Final)
			break
		}

		if raw.Direct != nil {
			// one request per direct-capture connection
			closeWrite(conn)
		}

		index := result.Records
		result.Records++

		shape, outcome, err := h.process(ctx, result.ID, raw, info, logger)
		h.metrics.record(shape.String(), outcome, raw.Size())
		if err != nil {
			result.Failed++
			logger.Error("record failed",
				"record", index,
				"shape", shape.String(),
				"outcome", string(outcome),
				"error", err)
			continue
		}
		result.Emitted++
	}

	logger.Debug("connection closed",
		"state", result.Final.String(),
		"records", result.Records,
		"emitted", result.Emitted,
		"failed", result.Failed)
	return result
}

// process runs one record through decode, normalize and emit. Panics below this
// point are turned into record-level errors for the stage that raised them.
func (h *Handler) process(ctx context.Context, id string, raw RawRecord, info ConnInfo, logger *slog.Logger) (shape model.Shape, outcome Outcome, err error) {
	stage := StateDecoding
	outcome = OutcomeDecodeError

	defer func() {
		if r := recover(); r != nil {
			if stage == StateNormalizing {
				outcome, err = OutcomeNormalizeError, normalizeErr("panic", fmt.Errorf("%v", r))
			} else {
				outcome, err = OutcomeDecodeError, decodeErr("panic", fmt.Errorf("%v", r))
			}
		}
	}()

	h.setState(id, StateDecoding)
	rec, err := Classify(raw)
	if err != nil {
		return model.ShapeUnknown, outcome, err
	}
	shape = rec.Shape()

	decoded, err := h.decoder.Decode(rec)
	if err != nil {
		return shape, outcome, err
	}
	for _, warning := range decoded.Warnings {
		logger.Warn("record decoded with warnings", "shape", shape.String(), "warning", warning)
	}

	stage = StateNormalizing
	outcome = OutcomeNormalizeError
	h.setState(id, StateNormalizing)
	entry, err := h.normalizer.Normalize(decoded, info)
	if err != nil {
		return shape, outcome, err
	}

	if h.sink != nil {
		if err := h.sink.Emit(ctx, entry); err != nil {
			return shape, OutcomeEmitError, fmt.Errorf("emit: %w", err)
		}
	}
	h.setState(id, StateEmitted)
	return shape, OutcomeEmitted, nil
}

func (h *Handler) setState(id string, s State) {
	if h.onState != nil {
		h.onState(id, s)
	}
}

func closeWrite(conn net.Conn) {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := conn.(writeCloser); ok {
		_ = wc.CloseWrite()
	}
}

func remoteString(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

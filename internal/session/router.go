package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/saturnino-fabrica-de-software/facestream/internal/audit"
	"github.com/saturnino-fabrica-de-software/facestream/internal/classifier"
	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
	"github.com/saturnino-fabrica-de-software/facestream/internal/registry"
	"github.com/saturnino-fabrica-de-software/facestream/internal/storage"
)

// Trainer is satisfied by *classifier.Service.
type Trainer interface {
	Load(ctx context.Context) (*classifier.KNN, error)
	Fit(ctx context.Context, samples map[string]domain.Sample) (*classifier.KNN, classifier.SearchResult, error)
	Dataset(samples map[string]domain.Sample) (*classifier.Dataset, error)
}

// Projector is satisfied by *projection.Projector.
type Projector interface {
	Render(ds *classifier.Dataset, people []string) ([]byte, error)
}

// CaptureStore is satisfied by *storage.FaceStore.
type CaptureStore interface {
	SaveCapture(sessionID string, id domain.Label, frame int64, jpeg []byte) (string, error)
	Promote(sessionID string, id domain.Label) (int, error)
	Discard(sessionID string) (bool, error)
	ScanTraining() ([]storage.TrainingImage, error)
}

// EmbeddingMemo caches embeddings by crop hash across processes. It is
// satisfied by *repository.SampleRepository.
type EmbeddingMemo interface {
	Get(ctx context.Context, hash string) (*domain.Sample, error)
	Put(ctx context.Context, hash string, sample domain.Sample) error
}

// Recorder is satisfied by *metrics.Manager.
type Recorder interface {
	MessageReceived(msgType string)
	Warning(reason string)
	Fit(result string, took time.Duration)
	Prediction(known bool)
	ObservePipeline(path string, took time.Duration)
}

// Dependencies are the collaborators every session shares.
type Dependencies struct {
	Detector   provider.Detector
	Embedder   provider.Embedder
	Aligner    *imaging.Aligner
	Classifier Trainer
	Projector  Projector
	Registry   registry.Registry
	Store      CaptureStore
}

// Router applies client messages to session state. It holds no
// per-session data and is safe to share between connections.
type Router struct {
	Dependencies

	memo    EmbeddingMemo
	metrics Recorder
	audit   audit.Logger
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*Router)

func WithEmbeddingMemo(memo EmbeddingMemo) Option {
	return func(r *Router) {
		r.memo = memo
	}
}

func WithMetrics(m Recorder) Option {
	return func(r *Router) {
		if m != nil {
			r.metrics = m
		}
	}
}

func WithAuditLogger(l audit.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.audit = l
		}
	}
}

// WithClock replaces the wall clock used for registration ids.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

func NewRouter(deps Dependencies, logger *slog.Logger, opts ...Option) *Router {
	if deps.Aligner == nil {
		deps.Aligner = imaging.NewAligner(imaging.DefaultDim)
	}

	r := &Router{
		Dependencies: deps,
		metrics:      nopRecorder{},
		audit:        &audit.NoOpLogger{},
		now:          time.Now,
		logger:       logger.With("component", "session"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleRaw decodes and dispatches one client message. Messages that fail
// to decode are logged and leave st untouched.
func (r *Router) HandleRaw(ctx context.Context, st *State, raw []byte) []Outbound {
	msg, err := Decode(raw)
	if err != nil {
		r.metrics.MessageReceived("unknown")
		if errors.Is(err, domain.ErrUnknownMessage) {
			r.logger.WarnContext(ctx, "ignoring unknown message type", "session_id", st.ID, "error", err)
		} else {
			r.logger.WarnContext(ctx, "ignoring malformed message", "session_id", st.ID, "error", err)
		}
		return nil
	}
	return r.Dispatch(ctx, st, msg)
}

// Dispatch runs the handler for msg and returns what to send back, in order.
func (r *Router) Dispatch(ctx context.Context, st *State, msg Inbound) []Outbound {
	st.FrameCounter++
	r.metrics.MessageReceived(msg.Type())

	log := r.logger.With("session_id", st.ID, "type", msg.Type(), "frame", st.FrameCounter)
	log.DebugContext(ctx, "message received")

	switch m := msg.(type) {
	case SetMode:
		return r.setMode(ctx, st, m)
	case BulkEnroll:
		return r.bulkEnroll(ctx, st)
	case RegisterInfo:
		info := m.UserInfo
		st.PendingUser = &info
		return []Outbound{EndFaceCollection{}}
	case SubmitTestFrame:
		return r.submitTestFrame(ctx, st, m)
	case CollectionStoppedAck:
		return r.finalize(ctx, st)
	case Feedback:
		return r.feedback(ctx, st, m)
	case Ping:
		return []Outbound{Null{}}
	case SubmitTrainFrame:
		return r.submitTrainFrame(ctx, st, m)
	case RegisterClick:
		log.InfoContext(ctx, "register click", "val", string(m.Val))
		return nil
	case UpdateLabel:
		return r.updateLabel(ctx, st, m)
	case RemoveSample:
		return r.removeSample(ctx, st, m)
	case RequestProjection:
		return r.requestProjection(ctx, st, m)
	case LoadState:
		return r.loadState(ctx, st, m)
	default:
		log.ErrorContext(ctx, "no handler for message")
		return nil
	}
}

// Close releases what a session leaves on disk when its connection ends.
func (r *Router) Close(ctx context.Context, st *State) {
	moved, err := r.Store.Discard(st.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to discard captures", "session_id", st.ID, "error", err)
		return
	}
	if moved {
		r.logAudit(ctx, audit.Event{
			SessionID: st.ID,
			EventType: audit.EventCapturesDiscarded,
			Success:   true,
		})
	}
}

func (r *Router) logAudit(ctx context.Context, event audit.Event) {
	if err := r.audit.Log(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "failed to log audit event", "event_type", event.EventType, "error", err)
	}
}

type nopRecorder struct{}

func (nopRecorder) MessageReceived(string)                {}
func (nopRecorder) Warning(string)                        {}
func (nopRecorder) Fit(string, time.Duration)             {}
func (nopRecorder) Prediction(bool)                       {}
func (nopRecorder) ObservePipeline(string, time.Duration) {}

// Package dispatch executes manifest-declared endpoints against installed
// services over their declared transport and normalizes every outcome into
// a response envelope. It is the only layer that touches service state:
// each dispatch records the service's observed reachability best-effort.
package dispatch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/TOoSmOotH/homie-sub000/envelope"
	"github.com/TOoSmOotH/homie-sub000/errors"
	"github.com/TOoSmOotH/homie-sub000/logger"
	"github.com/TOoSmOotH/homie-sub000/manifest"
	"github.com/TOoSmOotH/homie-sub000/store"
	"github.com/TOoSmOotH/homie-sub000/transform"
)

// Transport executes one endpoint definition against a service and returns
// the decoded result. Implementations classify their own failures into
// AdapterErrors.
type Transport interface {
	// Execute runs the endpoint. params is the interpolation context, the
	// service configuration merged with caller-supplied parameters.
	Execute(ctx context.Context, svc *store.Service, def manifest.EndpointDefinition, params map[string]any) (any, error)
	// DefaultTimeout is applied when the endpoint declares none.
	DefaultTimeout() time.Duration
}

// Dispatcher routes endpoint executions to the right transport.
type Dispatcher struct {
	services   store.ServiceStore
	status     store.StatusWriter
	transports map[manifest.Transport]Transport
	transforms *transform.Registry
	tracer     trace.Tracer
	log        *logger.Logger
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithStatusWriter enables best-effort reachability recording.
func WithStatusWriter(w store.StatusWriter) DispatcherOption {
	return func(d *Dispatcher) { d.status = w }
}

// WithTransforms replaces the transform registry.
func WithTransforms(r *transform.Registry) DispatcherOption {
	return func(d *Dispatcher) { d.transforms = r }
}

// WithTransport registers or replaces a transport implementation.
func WithTransport(name manifest.Transport, t Transport) DispatcherOption {
	return func(d *Dispatcher) { d.transports[name] = t }
}

// WithDispatchLogger sets the dispatcher's logger.
func WithDispatchLogger(log *logger.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = log }
}

// NewDispatcher creates a dispatcher with the built-in transports. The
// docker transport talks to dockerSocket; pass the empty string to use the
// standard engine socket path.
func NewDispatcher(services store.ServiceStore, dockerSocket string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		services:   services,
		transforms: transform.NewRegistry(),
		tracer:     otel.Tracer("dispatch"),
		log:        logger.Get("dispatch"),
		transports: map[manifest.Transport]Transport{},
	}
	d.transports[manifest.TransportHTTP] = NewHTTPTransport()
	d.transports[manifest.TransportDocker] = NewDockerTransport(dockerSocket)
	d.transports[manifest.TransportSSH] = NewSSHTransport()
	d.transports[manifest.TransportWS] = NewWSTransport()
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute runs the named endpoint of a stored service and always returns an
// envelope; failures are carried inside it, never as a Go error.
func (d *Dispatcher) Execute(ctx context.Context, serviceID, endpointName string, params map[string]any) *envelope.Envelope {
	start := time.Now()

	svc, err := d.services.GetService(ctx, serviceID)
	if err != nil {
		e := errors.NotFound("service", serviceID).WithCause(err)
		return envelope.Fail(e, time.Since(start), envelope.WithOperation(endpointName))
	}

	opts := []envelope.Option{
		envelope.WithServiceType(svc.Type),
		envelope.WithOperation(endpointName),
	}

	if svc.Manifest == nil {
		return envelope.Fail(errors.EndpointNotFound(endpointName), time.Since(start), opts...)
	}
	def, ok := svc.Manifest.Endpoint(endpointName)
	if !ok {
		return envelope.Fail(errors.EndpointNotFound(endpointName), time.Since(start), opts...)
	}
	if err := def.Validate(); err != nil {
		return envelope.Fail(errors.ConfigInvalid(err.Error()).WithCause(err), time.Since(start), opts...)
	}

	transport, ok := d.transports[def.Transport]
	if !ok {
		return envelope.Fail(errors.ConfigInvalid("no transport registered for "+string(def.Transport)), time.Since(start), opts...)
	}

	interpCtx := buildParams(svc, params)

	ctx, span := d.tracer.Start(ctx, "dispatch."+string(def.Transport), trace.WithAttributes(
		attribute.String("service.id", svc.ID),
		attribute.String("service.type", svc.Type),
		attribute.String("endpoint", endpointName),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, def.Timeout(transport.DefaultTimeout()))
	defer cancel()

	data, err := transport.Execute(callCtx, svc, def, interpCtx)
	elapsed := time.Since(start)

	d.recordReachability(svc.ID, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.log.Warn("dispatch failed", map[string]interface{}{
			logger.FieldService:   svc.ID,
			logger.FieldOperation: endpointName,
			logger.FieldTransport: string(def.Transport),
			logger.FieldError:     err.Error(),
		})
		return envelope.Fail(err, elapsed, opts...)
	}

	data = d.applyTransform(def.Transform, data, svc.ID, endpointName)

	d.log.Debug("dispatch complete", map[string]interface{}{
		logger.FieldService:   svc.ID,
		logger.FieldOperation: endpointName,
		logger.FieldTransport: string(def.Transport),
		logger.FieldDuration:  elapsed.Milliseconds(),
	})
	return envelope.OK(data, elapsed, opts...)
}

// applyTransform runs the declarative transform, keeping the original data
// when it fails. Transform errors never fail a dispatch.
func (d *Dispatcher) applyTransform(expression string, data any, serviceID, endpointName string) any {
	if expression == "" {
		return data
	}
	out, err := d.transforms.Apply(expression, data)
	if err != nil {
		d.log.Warn("transform failed, returning untransformed data", map[string]interface{}{
			logger.FieldService:   serviceID,
			logger.FieldOperation: endpointName,
			"expression":          expression,
			logger.FieldError:     err.Error(),
		})
		return data
	}
	return out
}

// recordReachability writes the service's observed status. A remote-side
// error (bad request, auth failure) still proves the service is reachable;
// only network-level failures mark it offline. Write failures are logged
// and never mask the dispatch result.
func (d *Dispatcher) recordReachability(serviceID string, callErr error) {
	if d.status == nil {
		return
	}

	status := store.StatusOnline
	if callErr != nil && isUnreachable(callErr) {
		status = store.StatusOffline
	}

	// Detached context: the dispatch deadline must not cancel the write.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.status.SetStatus(ctx, serviceID, status, time.Now().UTC()); err != nil {
		d.log.Warn("status write failed", map[string]interface{}{
			logger.FieldService: serviceID,
			logger.FieldError:   err.Error(),
		})
	}
}

func isUnreachable(err error) bool {
	return errors.Is(err, errors.CodeConnectionFailed) ||
		errors.Is(err, errors.CodeTimeout) ||
		errors.Is(err, errors.CodeTransport)
}

// buildParams merges the interpolation context: service configuration,
// then a default date range, then caller parameters. Later sources win.
func buildParams(svc *store.Service, params map[string]any) map[string]any {
	out := make(map[string]any, len(svc.Config)+len(params)+2)
	for k, v := range svc.Config {
		out[k] = v
	}

	now := time.Now().UTC()
	if _, ok := out["startDate"]; !ok {
		out["startDate"] = now.Format("2006-01-02")
	}
	if _, ok := out["endDate"]; !ok {
		out["endDate"] = now.AddDate(0, 0, 7).Format("2006-01-02")
	}

	for k, v := range params {
		out[k] = v
	}
	return out
}
